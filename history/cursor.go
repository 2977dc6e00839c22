package history

// Cursor is a read-only position over a recorder's log, bounded to
// [0, Len-1]. Moves past either bound clamp rather than fail. Trim is the
// only mutating operation and affects the log alone, never the live model.
type Cursor struct {
	rec *Recorder
	pos int
}

// NewCursor creates a cursor positioned at the start of the log.
func NewCursor(rec *Recorder) *Cursor {
	return &Cursor{rec: rec}
}

// Pos returns the current position.
func (c *Cursor) Pos() int {
	return c.pos
}

func (c *Cursor) clamp(pos int) int {
	if pos < 0 {
		return 0
	}
	if max := c.rec.Len() - 1; pos > max {
		if max < 0 {
			return 0
		}
		return max
	}
	return pos
}

// Step moves the cursor by delta records, clamping at the bounds, and
// returns the new position.
func (c *Cursor) Step(delta int) int {
	c.pos = c.clamp(c.pos + delta)
	return c.pos
}

// Seek moves the cursor to the given position, clamped.
func (c *Cursor) Seek(pos int) int {
	c.pos = c.clamp(pos)
	return c.pos
}

// End moves the cursor to the last record.
func (c *Cursor) End() int {
	return c.Seek(c.rec.Len() - 1)
}

// JumpTo moves the cursor to the named breakpoint. The cursor is unchanged
// when the name was never set.
func (c *Cursor) JumpTo(name string) (int, error) {
	index, err := c.rec.Lookup(name)
	if err != nil {
		return c.pos, err
	}
	return c.Seek(index), nil
}

// NextBreakpoint advances the cursor to the first breakpoint after the
// current position. It reports whether one was found.
func (c *Cursor) NextBreakpoint() (Breakpoint, bool) {
	bp, ok := c.rec.NextBreakpoint(c.pos)
	if ok {
		c.Seek(bp.Index)
	}
	return bp, ok
}

// PrevBreakpoint moves the cursor back to the last breakpoint before the
// current position. It reports whether one was found.
func (c *Cursor) PrevBreakpoint() (Breakpoint, bool) {
	bp, ok := c.rec.PrevBreakpoint(c.pos)
	if ok {
		c.Seek(bp.Index)
	}
	return bp, ok
}

// Trim discards all records after the cursor, producing a shortened trace.
func (c *Cursor) Trim() {
	c.rec.trim(c.pos)
}

package history

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func filled(n int) *Recorder {
	r := NewRecorder()
	for i := 0; i < n; i++ {
		r.Append(record(int64(i)))
	}
	return r
}

func TestCursorStepClamps(t *testing.T) {
	c := NewCursor(filled(5))
	require.Equal(t, 0, c.Pos())

	require.Equal(t, 2, c.Step(2))
	require.Equal(t, 4, c.Step(100))
	require.Equal(t, 0, c.Step(-100))
	require.Equal(t, 0, c.Step(-1))
}

func TestCursorSeekAndEnd(t *testing.T) {
	c := NewCursor(filled(3))
	require.Equal(t, 2, c.Seek(10))
	require.Equal(t, 0, c.Seek(-10))
	require.Equal(t, 2, c.End())
}

func TestCursorEmptyRecorder(t *testing.T) {
	c := NewCursor(NewRecorder())
	require.Equal(t, 0, c.Step(5))
	require.Equal(t, 0, c.End())
}

func TestCursorJumpTo(t *testing.T) {
	r := filled(2)
	r.SetBreakpoint("here")
	r.Append(record(9))
	r.Append(record(10))

	c := NewCursor(r)
	c.End()
	pos, err := c.JumpTo("here")
	require.NoError(t, err)
	require.Equal(t, 2, pos)

	pos, err = c.JumpTo("missing")
	require.ErrorIs(t, err, ErrBreakpointNotFound)
	require.Equal(t, 2, pos)
	require.Equal(t, 2, c.Pos())
}

func TestCursorBreakpointNavigation(t *testing.T) {
	r := filled(1)
	r.SetBreakpoint("a")
	r.Append(record(2))
	r.Append(record(3))
	r.SetBreakpoint("b")
	r.Append(record(4))

	c := NewCursor(r)
	bp, ok := c.NextBreakpoint()
	require.True(t, ok)
	require.Equal(t, "a", bp.Name)
	require.Equal(t, 1, c.Pos())

	bp, ok = c.NextBreakpoint()
	require.True(t, ok)
	require.Equal(t, "b", bp.Name)
	require.Equal(t, 3, c.Pos())

	_, ok = c.NextBreakpoint()
	require.False(t, ok)
	require.Equal(t, 3, c.Pos())

	bp, ok = c.PrevBreakpoint()
	require.True(t, ok)
	require.Equal(t, "a", bp.Name)
	require.Equal(t, 1, c.Pos())
}

func TestCursorTrim(t *testing.T) {
	r := filled(5)
	r.SetBreakpoint("late")

	c := NewCursor(r)
	c.Seek(2)
	c.Trim()

	require.Equal(t, 3, r.Len())
	require.Empty(t, r.Breakpoints())
	require.Equal(t, 2, c.Pos())
}

func TestCursorTrimAtEndIsNoop(t *testing.T) {
	r := filled(3)
	c := NewCursor(r)
	c.End()
	c.Trim()
	require.Equal(t, 3, r.Len())
}

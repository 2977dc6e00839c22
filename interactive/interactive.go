// Package interactive is a terminal front end for stepping through a
// recorded script run. The arrow keys move the replay cursor, n and p jump
// between breakpoints, and every position is rendered with the concrete
// stack values from the reference interpreter.
package interactive

import (
	"fmt"
	"io"
	"os"
	"strings"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
	"github.com/fatih/color"

	"github.com/scriptkit/scriptstack/debug"
	"github.com/scriptkit/scriptstack/history"
	"github.com/scriptkit/scriptstack/script"
	"github.com/scriptkit/scriptstack/stack"
)

const defaultWidth = 120

// Session holds the replay state between key presses.
type Session struct {
	script   script.Script
	rec      *history.Recorder
	cursor   *history.Cursor
	out      io.Writer
	bpName   string
	truncate bool
	width    int
}

// Option configures a Session.
type Option func(*Session)

// WithOutput redirects rendering away from stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Session) {
		s.out = w
	}
}

// WithWidth sets the column at which truncated rows are cut.
func WithWidth(width int) Option {
	return func(s *Session) {
		s.width = width
	}
}

// New builds a replay session over the tracker's generated script and
// recorded history.
func New(t *stack.Tracker, opts ...Option) *Session {
	s := &Session{
		script:   t.Script(),
		rec:      t.Recorder(),
		cursor:   history.NewCursor(t.Recorder()),
		out:      os.Stdout,
		truncate: true,
		width:    defaultWidth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run renders the first step and hands the terminal to the key loop. It
// returns when the user quits.
func (s *Session) Run() error {
	s.render()
	return keyboard.Listen(s.HandleKey)
}

// HandleKey processes one key press and re-renders. It reports true when
// the session should end.
func (s *Session) HandleKey(key keys.Key) (bool, error) {
	switch key.Code {
	case keys.Esc, keys.CtrlC:
		return true, nil
	case keys.Left:
		s.cursor.Step(-1)
	case keys.Right:
		s.cursor.Step(1)
	case keys.Up:
		s.cursor.Step(-100)
	case keys.Down:
		s.cursor.Step(100)
	case keys.PgUp:
		s.cursor.Step(-1000)
	case keys.PgDown:
		s.cursor.Step(1000)
	case keys.Home:
		s.cursor.Seek(0)
	case keys.End:
		s.cursor.End()
	case keys.RuneKey:
		switch key.String() {
		case "q":
			return true, nil
		case "n":
			if bp, ok := s.cursor.NextBreakpoint(); ok {
				s.bpName = bp.Name
			}
		case "p":
			if bp, ok := s.cursor.PrevBreakpoint(); ok {
				s.bpName = bp.Name
			}
		case "t":
			s.truncate = !s.truncate
		default:
			return false, nil
		}
	default:
		return false, nil
	}
	s.render()
	return false, nil
}

// Pos exposes the cursor position, mainly for inspection.
func (s *Session) Pos() int {
	return s.cursor.Pos()
}

var (
	cmdColor    = color.New(color.FgGreen, color.Bold)
	headerColor = color.New(color.FgBlue)
)

func (s *Session) render() {
	var b strings.Builder
	b.WriteString("Replay mode. ")
	for _, c := range [][2]string{
		{"n", ": next bp"},
		{"p", ": previous bp"},
		{"<-/->", " (+/-1)"},
		{"Up/Down", " (+/-100)"},
		{"PgUp/PgDn", " (+/-1000)"},
		{"Home/End", ""},
		{"t", " (truncate)"},
		{"q", " (exit)"},
	} {
		fmt.Fprintf(&b, "%s%s | ", cmdColor.Sprint(c[0]), c[1])
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %d", headerColor.Sprint("Step:"), s.cursor.Pos())
	if s.bpName != "" {
		fmt.Fprintf(&b, " %s %s", headerColor.Sprint("BP:"), s.bpName)
	}
	b.WriteString("\n")

	view := debug.ExecuteStep(s.script, s.rec, s.cursor.Pos())
	for _, line := range strings.Split(view.Format(), "\n") {
		if s.truncate && len(line) > s.width {
			line = line[:s.width]
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	fmt.Fprint(s.out, b.String())
}

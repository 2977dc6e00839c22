package interactive

import (
	"bytes"
	"strings"
	"testing"

	"atomicgo.dev/keyboard/keys"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/scriptkit/scriptstack/stack"
)

func init() {
	color.NoColor = true
}

func tracked(t *testing.T) *stack.Tracker {
	t.Helper()
	tr := stack.New()
	tr.Number(1)
	tr.Number(2)
	tr.SetBreakpoint("two")
	tr.Number(3)
	require.NoError(t, tr.Err())
	return tr
}

func press(t *testing.T, s *Session, key keys.Key) {
	t.Helper()
	stop, err := s.HandleKey(key)
	require.NoError(t, err)
	require.False(t, stop)
}

func TestCursorKeys(t *testing.T) {
	var out bytes.Buffer
	s := New(tracked(t), WithOutput(&out))
	require.Equal(t, 0, s.Pos())

	press(t, s, keys.Key{Code: keys.Right})
	require.Equal(t, 1, s.Pos())
	press(t, s, keys.Key{Code: keys.Left})
	require.Equal(t, 0, s.Pos())
	press(t, s, keys.Key{Code: keys.Left})
	require.Equal(t, 0, s.Pos())

	press(t, s, keys.Key{Code: keys.End})
	require.Equal(t, 2, s.Pos())
	press(t, s, keys.Key{Code: keys.Down})
	require.Equal(t, 2, s.Pos())
	press(t, s, keys.Key{Code: keys.Home})
	require.Equal(t, 0, s.Pos())
}

func TestBreakpointKeys(t *testing.T) {
	var out bytes.Buffer
	s := New(tracked(t), WithOutput(&out))

	press(t, s, keys.Key{Code: keys.RuneKey, Runes: []rune{'n'}})
	require.Equal(t, 2, s.Pos())
	out.Reset()
	s.render()
	require.Contains(t, out.String(), "BP: two")

	press(t, s, keys.Key{Code: keys.Home})
	press(t, s, keys.Key{Code: keys.RuneKey, Runes: []rune{'p'}})
	require.Equal(t, 0, s.Pos())
}

func TestQuitKeys(t *testing.T) {
	var out bytes.Buffer
	s := New(tracked(t), WithOutput(&out))

	stop, err := s.HandleKey(keys.Key{Code: keys.RuneKey, Runes: []rune{'q'}})
	require.NoError(t, err)
	require.True(t, stop)

	stop, err = s.HandleKey(keys.Key{Code: keys.Esc})
	require.NoError(t, err)
	require.True(t, stop)
}

func TestRenderShowsStack(t *testing.T) {
	var out bytes.Buffer
	s := New(tracked(t), WithOutput(&out))
	press(t, s, keys.Key{Code: keys.End})
	require.Contains(t, out.String(), "number(0x3)")
	require.Contains(t, out.String(), "STACK:")
}

func TestTruncation(t *testing.T) {
	var out bytes.Buffer
	s := New(tracked(t), WithOutput(&out), WithWidth(10))
	press(t, s, keys.Key{Code: keys.Right})

	lines := strings.Split(out.String(), "\n")
	require.Greater(t, len(lines[0]), 10, "command help is never cut")

	start := -1
	for i, line := range lines {
		if strings.Contains(line, "Step:") {
			start = i + 1
			break
		}
	}
	require.Positive(t, start)
	for _, line := range lines[start:] {
		require.LessOrEqual(t, len(line), 10)
	}
}

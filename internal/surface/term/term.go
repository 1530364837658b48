// Package term presents a memory grid on an ANSI terminal, one cell per
// display unit, using termenv for color profiles and cursor control.
package term

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/muesli/termenv"

	"marquee/internal/surface"
	"marquee/internal/surface/memory"
)

type Config struct {
	Width       int
	Height      int
	RefreshRate int
	// AltScreen switches to the alternate screen while the show runs.
	AltScreen bool
	// Profile overrides color detection (tests); nil means detect from Out.
	Profile *termenv.Profile
}

type Surface struct {
	*memory.Surface

	mu     sync.Mutex
	out    *termenv.Output
	cfg    Config
	buf    strings.Builder
	closed bool
}

func New(w io.Writer, cfg Config) *Surface {
	opts := []termenv.OutputOption{}
	if cfg.Profile != nil {
		opts = append(opts, termenv.WithProfile(*cfg.Profile))
	}
	t := &Surface{out: termenv.NewOutput(w, opts...), cfg: cfg}
	t.Surface = memory.New(cfg.Width, cfg.Height, cfg.RefreshRate, memory.WithFlushHook(t.present))

	if cfg.AltScreen {
		t.out.AltScreen()
	}
	t.out.HideCursor()
	t.out.ClearScreen()
	return t
}

// present writes the whole frame in a single Write so the terminal never
// shows a half-drawn frame.
func (t *Surface) present(front []memory.Cell, geo surface.Geometry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}

	t.buf.Reset()
	for y := 0; y < geo.Height; y++ {
		fmt.Fprintf(&t.buf, termenv.CSI+termenv.CursorPositionSeq, y+1, 1)
		row := front[y*geo.Width : (y+1)*geo.Width]
		t.writeRow(row)
	}
	_, err := io.WriteString(t.out, t.buf.String())
	return err
}

// writeRow groups consecutive cells of the same color into one styled run.
func (t *Surface) writeRow(row []memory.Cell) {
	var (
		run   strings.Builder
		color surface.Color
		lit   bool
	)
	emit := func() {
		if run.Len() == 0 {
			return
		}
		if lit {
			t.buf.WriteString(t.out.String(run.String()).Foreground(t.out.Color(color.Hex())).String())
		} else {
			t.buf.WriteString(run.String())
		}
		run.Reset()
	}
	for _, c := range row {
		if c.Cont {
			continue
		}
		on := c.Rune != 0
		if on != lit || (on && c.Color != color) {
			emit()
			lit, color = on, c.Color
		}
		if on {
			run.WriteRune(c.Rune)
		} else {
			run.WriteByte(' ')
		}
	}
	emit()
}

// Close blanks the display and restores the terminal.
func (t *Surface) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	err := t.Surface.Close()
	t.out.ClearScreen()
	t.out.ShowCursor()
	if t.cfg.AltScreen {
		t.out.ExitAltScreen()
	}
	return err
}

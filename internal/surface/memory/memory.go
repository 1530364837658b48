// Package memory implements an in-memory surface: a cell grid with one glyph
// per cell. It backs headless runs and is the drawing buffer of the terminal
// surface.
package memory

import (
	"errors"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"

	"marquee/internal/surface"
)

var ErrClosed = errors.New("surface closed")

// Cell is one grid position. Wide glyphs occupy their own cell plus Width-1
// continuation cells.
type Cell struct {
	Rune  rune
	Color surface.Color
	Cont  bool
}

// DrawOp records one DrawText call, in call order.
type DrawOp struct {
	X, Y  int
	Color surface.Color
	Text  string
	Width int
}

// Stats counts surface calls since creation.
type Stats struct {
	Clears  uint64
	Flushes uint64
	Draws   uint64
}

type Surface struct {
	mu     sync.Mutex
	geo    surface.Geometry
	fps    int
	back   []Cell
	front  []Cell
	ops    []DrawOp
	last   []DrawOp
	stats  Stats
	closed bool

	failText string
	onFlush  func(front []Cell, geo surface.Geometry) error
}

type Option func(*Surface)

// WithFailText makes DrawText return an error for texts containing s.
func WithFailText(s string) Option { return func(m *Surface) { m.failText = s } }

// WithFlushHook calls fn with the presented grid on every Flush.
func WithFlushHook(fn func(front []Cell, geo surface.Geometry) error) Option {
	return func(m *Surface) { m.onFlush = fn }
}

func New(width, height, refreshRate int, opts ...Option) *Surface {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	m := &Surface{
		geo:   surface.Geometry{Width: width, Height: height},
		fps:   refreshRate,
		back:  make([]Cell, width*height),
		front: make([]Cell, width*height),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Surface) Geometry() surface.Geometry { return m.geo }
func (m *Surface) RefreshRate() int           { return m.fps }

func (m *Surface) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	clear(m.back)
	m.ops = m.ops[:0]
	m.stats.Clears++
	return nil
}

// DrawText writes text starting at column x on row y. y is the text baseline;
// with one cell per glyph the baseline row is the row itself.
func (m *Surface) DrawText(x, y int, c surface.Color, text string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if m.failText != "" && strings.Contains(text, m.failText) {
		return 0, errors.New("draw failed: " + text)
	}

	width := 0
	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		m.put(x+width, y, Cell{Rune: r, Color: c})
		for i := 1; i < w; i++ {
			m.put(x+width+i, y, Cell{Color: c, Cont: true})
		}
		width += w
	}
	m.ops = append(m.ops, DrawOp{X: x, Y: y, Color: c, Text: text, Width: width})
	m.stats.Draws++
	return width, nil
}

func (m *Surface) put(x, y int, cell Cell) {
	if x < 0 || y < 0 || x >= m.geo.Width || y >= m.geo.Height {
		return
	}
	m.back[y*m.geo.Width+x] = cell
}

func (m *Surface) Flush() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	copy(m.front, m.back)
	m.last = append(m.last[:0], m.ops...)
	m.stats.Flushes++
	hook := m.onFlush
	var front []Cell
	if hook != nil {
		front = append([]Cell(nil), m.front...)
	}
	m.mu.Unlock()

	if hook != nil {
		return hook(front, m.geo)
	}
	return nil
}

func (m *Surface) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	clear(m.back)
	clear(m.front)
	m.closed = true
	return nil
}

// Frame returns the draw calls presented by the last Flush.
func (m *Surface) Frame() []DrawOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DrawOp(nil), m.last...)
}

// Row returns the presented text of row y, blanks as spaces.
func (m *Surface) Row(y int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if y < 0 || y >= m.geo.Height {
		return ""
	}
	var b strings.Builder
	for _, c := range m.front[y*m.geo.Width : (y+1)*m.geo.Width] {
		switch {
		case c.Cont:
		case c.Rune == 0:
			b.WriteByte(' ')
		default:
			b.WriteRune(c.Rune)
		}
	}
	return b.String()
}

func (m *Surface) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Surface) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

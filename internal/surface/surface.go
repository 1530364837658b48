// Package surface defines the Display Surface the show loop draws onto.
//
// The scheduler never touches pixels: it clears the surface once per tick,
// hands it to each visible object as a Canvas, and flushes it once per tick.
// Concrete surfaces live in subpackages (memory, term).
package surface

import (
	"errors"
	"fmt"
)

// ErrRenderContract reports a programmer error in an object's render
// implementation (e.g. rendering an object with no drawing behavior).
// The loop does not isolate it: it aborts the run.
var ErrRenderContract = errors.New("render contract violation")

// Color is a 24-bit RGB color.
type Color struct {
	R, G, B uint8
}

func RGB(r, g, b uint8) Color { return Color{R: r, G: g, B: b} }

func (c Color) Hex() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

var (
	White = Color{255, 255, 255}
	Black = Color{0, 0, 0}
)

// Geometry is the drawable area in surface units (pixels or terminal cells).
type Geometry struct {
	Width  int
	Height int
}

// Canvas is what an object sees while rendering.
type Canvas interface {
	Geometry() Geometry
	// DrawText draws text with its baseline-left at (x, y) and returns the
	// drawn width. Text outside the geometry is clipped, but the returned
	// width is the full width of the string.
	DrawText(x, y int, c Color, text string) (int, error)
}

// Surface is the full capability set the loop drives.
type Surface interface {
	Canvas
	// RefreshRate is the fixed frames-per-second rate of the show.
	RefreshRate() int
	Clear() error
	// Flush presents everything drawn since the last Clear.
	Flush() error
	// Close clears the physical display and releases it.
	Close() error
}

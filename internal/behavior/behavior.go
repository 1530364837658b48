// Package behavior holds the stock task behaviors and the name registry used
// by show files.
//
// Stateful behaviors keep their state per value: create one per task.
package behavior

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"

	"marquee/internal/scene"
	"marquee/internal/surface"
)

var ErrOwnerType = errors.New("behavior does not support owner type")

type texter interface{ SetText(string) }

type colorer interface{ SetColor(surface.Color) }

// Counter writes an increasing number into a text owner, starting at Start.
type Counter struct {
	Start int

	mu sync.Mutex
	n  int
}

func (c *Counter) Name() string { return "counter" }

func (c *Counter) Before(owner scene.Object, _ surface.Geometry) error {
	if _, ok := owner.(texter); !ok {
		return fmt.Errorf("%w: counter on %T", ErrOwnerType, owner)
	}
	c.mu.Lock()
	c.n = c.Start
	c.mu.Unlock()
	return nil
}

func (c *Counter) Update(owner scene.Object) error {
	t, ok := owner.(texter)
	if !ok {
		return fmt.Errorf("%w: counter on %T", ErrOwnerType, owner)
	}
	c.mu.Lock()
	n := c.n
	c.n++
	c.mu.Unlock()
	t.SetText(strconv.Itoa(n))
	return nil
}

// Sliding scrolls its owner right to left across the display. The owner
// enters at the right edge and wraps once it has fully left on the left,
// using the extent measured by the previous render.
type Sliding struct {
	// Step is the number of columns moved per fire. Default 1.
	Step int

	mu    sync.Mutex
	width int
	pos   int
}

func (s *Sliding) Name() string { return "sliding" }

func (s *Sliding) Before(_ scene.Object, geo surface.Geometry) error {
	s.mu.Lock()
	s.width = geo.Width
	s.pos = geo.Width
	s.mu.Unlock()
	return nil
}

func (s *Sliding) Update(owner scene.Object) error {
	ext := owner.Node().LastExtent()
	if ext <= 0 {
		// Not rendered yet: nothing to measure against.
		return nil
	}
	step := s.Step
	if step <= 0 {
		step = 1
	}

	s.mu.Lock()
	if s.pos <= -ext {
		s.pos = s.width
	} else {
		s.pos -= step
	}
	x := s.pos
	s.mu.Unlock()

	owner.Node().SetX(x)
	return nil
}

// RandomColor paints its owner a new random color on every fire.
type RandomColor struct {
	// Rand overrides the random source.
	Rand *rand.Rand

	mu sync.Mutex
}

func (r *RandomColor) Name() string { return "randomcolor" }

func (r *RandomColor) Update(owner scene.Object) error {
	c, ok := owner.(colorer)
	if !ok {
		return fmt.Errorf("%w: randomcolor on %T", ErrOwnerType, owner)
	}
	var v uint32
	if r.Rand != nil {
		r.mu.Lock()
		v = r.Rand.Uint32()
		r.mu.Unlock()
	} else {
		v = rand.Uint32()
	}
	c.SetColor(surface.RGB(uint8(v>>16), uint8(v>>8), uint8(v)))
	return nil
}

// Blink toggles the owner's visibility on every fire.
type Blink struct{}

func (Blink) Name() string { return "blink" }

func (Blink) Update(owner scene.Object) error {
	b := owner.Node()
	b.SetVisible(!b.Visible())
	return nil
}

// Center keeps its owner horizontally centered on the display.
type Center struct {
	mu    sync.Mutex
	width int
}

func (c *Center) Name() string { return "center" }

func (c *Center) Before(_ scene.Object, geo surface.Geometry) error {
	c.mu.Lock()
	c.width = geo.Width
	c.mu.Unlock()
	return nil
}

func (c *Center) Update(owner scene.Object) error {
	ext := owner.Node().LastExtent()
	if ext <= 0 {
		return nil
	}
	c.mu.Lock()
	w := c.width
	c.mu.Unlock()
	owner.Node().SetX((w - ext) / 2)
	return nil
}

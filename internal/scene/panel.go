package scene

import (
	"fmt"
	"reflect"

	"marquee/internal/surface"
)

// Panel is a visibility window: its objects are drawn for every relative
// frame in [delay, delay+duration], both ends inclusive.
//
// A panel without a duration is visible only on its delay frame.
type Panel struct {
	scene    *Scene
	index    int
	delay    uint64
	duration uint64
	objects  []Object
}

// Duration sets how long the panel stays visible, in seconds.
func (p *Panel) Duration(seconds float64) error {
	n, err := Frames(seconds, p.scene.fps)
	if err != nil {
		return fmt.Errorf("panel %d duration: %w", p.index, err)
	}
	return p.Frames(n)
}

// Frames sets the duration directly in frames.
func (p *Panel) Frames(n uint64) error {
	if p.scene.Frozen() {
		return ErrFrozen
	}
	if n > maxFrames {
		return fmt.Errorf("panel %d duration: %w: %d frames exceeds %d", p.index, ErrInvalidDuration, n, uint64(maxFrames))
	}
	p.duration = n
	return nil
}

// Delay sets when the panel becomes visible, in seconds from the start of
// the scene.
func (p *Panel) Delay(seconds float64) error {
	if p.scene.Frozen() {
		return ErrFrozen
	}
	n, err := Frames(seconds, p.scene.fps)
	if err != nil {
		return fmt.Errorf("panel %d delay: %w", p.index, err)
	}
	p.delay = n
	return nil
}

// Add appends an object. Nil objects and bare Base values are rejected:
// they have nothing to draw.
func (p *Panel) Add(obj Object) error {
	if p.scene.Frozen() {
		return ErrFrozen
	}
	if v := reflect.ValueOf(obj); v.Kind() == reflect.Pointer && v.IsNil() {
		return fmt.Errorf("%w: nil %T", surface.ErrRenderContract, obj)
	}
	switch o := obj.(type) {
	case nil:
		return fmt.Errorf("%w: nil object", surface.ErrRenderContract)
	case *Base:
		return fmt.Errorf("%w: bare Base %q is not drawable", surface.ErrRenderContract, o.Label())
	}
	if obj.Node() == nil {
		return fmt.Errorf("%w: object without Base", surface.ErrRenderContract)
	}

	b := obj.Node()
	b.mu.Lock()
	if b.self != nil && b.self != obj {
		b.mu.Unlock()
		return fmt.Errorf("%w: Base already bound to another object", surface.ErrRenderContract)
	}
	b.self = obj
	b.mu.Unlock()

	p.objects = append(p.objects, obj)
	return nil
}

func (p *Panel) DelayFrames() uint64    { return p.delay }
func (p *Panel) DurationFrames() uint64 { return p.duration }
func (p *Panel) End() uint64            { return p.delay + p.duration }

func (p *Panel) Objects() []Object { return append([]Object(nil), p.objects...) }

// Display reports whether the panel is drawn on frame and whether it has
// reached its end frame.
func (p *Panel) Display(frame uint64) (shouldRender, hasEnded bool) {
	end := p.End()
	return frame >= p.delay && frame <= end, frame >= end
}

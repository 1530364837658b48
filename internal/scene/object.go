package scene

import (
	"fmt"
	"sync"

	"marquee/internal/surface"
)

// Drawable is anything that can draw itself on a canvas. Render returns the
// drawn extent (the text width for Text), which is fed back into the object.
type Drawable interface {
	Render(c surface.Canvas) (int, error)
}

// Object is a visual object: a Drawable carrying a Base.
// Concrete objects embed Base and implement Render.
type Object interface {
	Drawable
	Node() *Base
}

// Base holds the state shared by every visual object. Its fields are written
// by task workers and read by the render step, so all access goes through the
// lock.
type Base struct {
	mu      sync.RWMutex
	x, y    int
	extent  int
	hidden  bool
	label   string
	self    Object
	pending []*TaskBuilder
	tasks   []*Task
	sealed  bool
}

func (b *Base) Node() *Base { return b }

// Render on a bare Base is a contract violation: Base has nothing to draw.
func (b *Base) Render(surface.Canvas) (int, error) {
	return 0, fmt.Errorf("%w: object %q has no renderer", surface.ErrRenderContract, b.Label())
}

func (b *Base) Position() (x, y int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.x, b.y
}

func (b *Base) SetPosition(x, y int) {
	b.mu.Lock()
	b.x, b.y = x, y
	b.mu.Unlock()
}

func (b *Base) SetX(x int) {
	b.mu.Lock()
	b.x = x
	b.mu.Unlock()
}

// LastExtent is the extent returned by the most recent successful render
// (0 before the first one).
func (b *Base) LastExtent() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.extent
}

func (b *Base) SetLastExtent(n int) {
	b.mu.Lock()
	b.extent = n
	b.mu.Unlock()
}

func (b *Base) Visible() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.hidden
}

func (b *Base) SetVisible(v bool) {
	b.mu.Lock()
	b.hidden = !v
	b.mu.Unlock()
}

// Label names the object in logs. Defaults to the text for Text objects.
func (b *Base) Label() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.label
}

func (b *Base) SetLabel(s string) {
	b.mu.Lock()
	b.label = s
	b.mu.Unlock()
}

// Every starts a recurring task definition that fires every seconds.
// The definition is validated and bound when the scene is frozen. Once the
// object's tasks are bound the builder is detached and Err reports ErrFrozen.
func (b *Base) Every(seconds float64) *TaskBuilder {
	tb := &TaskBuilder{seconds: seconds}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		tb.err = ErrFrozen
		return tb
	}
	b.pending = append(b.pending, tb)
	return tb
}

// Tasks returns the object's recurring tasks in declaration order.
// Empty until the scene is frozen.
func (b *Base) Tasks() []*Task {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*Task(nil), b.tasks...)
}

// Text is a colored string drawn at (x, y).
type Text struct {
	Base
	text  string
	color surface.Color
}

func NewText(text string, c surface.Color, x, y int) *Text {
	t := &Text{text: text, color: c}
	t.x, t.y = x, y
	t.label = text
	return t
}

func (t *Text) Text() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.text
}

func (t *Text) SetText(s string) {
	t.mu.Lock()
	t.text = s
	t.mu.Unlock()
}

func (t *Text) Color() surface.Color {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.color
}

func (t *Text) SetColor(c surface.Color) {
	t.mu.Lock()
	t.color = c
	t.mu.Unlock()
}

// Render draws the text. A hidden text draws nothing and keeps its previous
// extent so width-dependent behaviors are not disturbed by blinking.
func (t *Text) Render(c surface.Canvas) (int, error) {
	t.mu.RLock()
	x, y, s, col, hidden, ext := t.x, t.y, t.text, t.color, t.hidden, t.extent
	t.mu.RUnlock()

	if hidden {
		return ext, nil
	}
	return c.DrawText(x, y, col, s)
}

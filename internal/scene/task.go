package scene

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"marquee/internal/surface"
)

var (
	ErrInvalidPeriod = errors.New("invalid task period")
	ErrInvalidTimes  = errors.New("invalid task fire count")
	ErrNoBehavior    = errors.New("task has no behavior")
)

// Behavior is the code a recurring task runs each time it fires.
// Update may mutate the owner; it runs on a task worker goroutine.
type Behavior interface {
	Update(owner Object) error
}

// Initializer is implemented by behaviors that need one-time setup before
// the first tick (e.g. a starting slide position taken from the geometry).
type Initializer interface {
	Before(owner Object, geo surface.Geometry) error
}

// BehaviorFunc adapts a plain function to Behavior.
type BehaviorFunc func(owner Object) error

func (f BehaviorFunc) Update(owner Object) error { return f(owner) }

// TaskBuilder collects a recurring task definition:
//
//	text.Every(0.1).Do(counter).Times(3)
//
// It is finalized into an immutable TaskSpec when the scene is frozen.
type TaskBuilder struct {
	seconds  float64
	times    int
	behavior Behavior
	name     string
	err      error
}

// Err reports a definition that can no longer be bound (ErrFrozen).
func (tb *TaskBuilder) Err() error { return tb.err }

func (tb *TaskBuilder) Do(b Behavior) *TaskBuilder {
	tb.behavior = b
	return tb
}

// Times bounds the task to n fires. Without it the task fires forever.
func (tb *TaskBuilder) Times(n int) *TaskBuilder {
	tb.times = n
	if n == 0 {
		// Times(0) is never valid; keep it distinguishable from "unset".
		tb.times = -1
	}
	return tb
}

func (tb *TaskBuilder) Named(name string) *TaskBuilder {
	tb.name = strings.TrimSpace(name)
	return tb
}

// Spec validates the definition against fps.
func (tb *TaskBuilder) Spec(fps int) (TaskSpec, error) {
	if tb.err != nil {
		return TaskSpec{}, tb.err
	}
	if tb.behavior == nil {
		return TaskSpec{}, ErrNoBehavior
	}
	if tb.times < 0 {
		return TaskSpec{}, fmt.Errorf("%w: times must be > 0", ErrInvalidTimes)
	}
	if !(tb.seconds > 0) {
		return TaskSpec{}, fmt.Errorf("%w: every %v seconds", ErrInvalidPeriod, tb.seconds)
	}
	frames, err := Frames(tb.seconds, fps)
	if err != nil {
		return TaskSpec{}, fmt.Errorf("%w: %w", ErrInvalidPeriod, err)
	}
	if frames < 1 {
		return TaskSpec{}, fmt.Errorf("%w: every %v seconds is shorter than one frame at %d fps", ErrInvalidPeriod, tb.seconds, fps)
	}
	return TaskSpec{PeriodSeconds: tb.seconds, PeriodFrames: frames, MaxFires: tb.times}, nil
}

// TaskSpec is the validated, immutable schedule of a recurring task.
type TaskSpec struct {
	PeriodSeconds float64
	PeriodFrames  uint64
	// MaxFires == 0 means unbounded.
	MaxFires int
}

// Task is a recurring task bound to its owner object.
type Task struct {
	name     string
	owner    Object
	spec     TaskSpec
	behavior Behavior

	fires atomic.Int64
	// run serializes Update calls of this task when dispatch is not joined.
	run sync.Mutex
}

func newTask(name string, owner Object, spec TaskSpec, b Behavior) *Task {
	return &Task{name: name, owner: owner, spec: spec, behavior: b}
}

func (t *Task) Name() string       { return t.name }
func (t *Task) Owner() Object      { return t.owner }
func (t *Task) Spec() TaskSpec     { return t.spec }
func (t *Task) Behavior() Behavior { return t.behavior }
func (t *Task) Fires() int         { return int(t.fires.Load()) }

// Exhausted reports whether the fire budget is used up. Permanent.
func (t *Task) Exhausted() bool {
	return t.spec.MaxFires > 0 && t.Fires() >= t.spec.MaxFires
}

// Due reports whether the task fires on the given absolute frame. Pure query.
func (t *Task) Due(frame uint64) bool {
	return frame%t.spec.PeriodFrames == 0 && !t.Exhausted()
}

// Claim consumes one fire if the task is due on frame. Only the control
// goroutine calls it, so the check and the increment do not race.
func (t *Task) Claim(frame uint64) bool {
	if !t.Due(frame) {
		return false
	}
	t.fires.Add(1)
	return true
}

// Before runs the behavior's one-time setup, if it has one.
func (t *Task) Before(geo surface.Geometry) error {
	in, ok := t.behavior.(Initializer)
	if !ok {
		return nil
	}
	return in.Before(t.owner, geo)
}

// Update runs the behavior once against the owner.
func (t *Task) Update() error {
	t.run.Lock()
	defer t.run.Unlock()
	return t.behavior.Update(t.owner)
}

func behaviorName(b Behavior) string {
	if n, ok := b.(interface{ Name() string }); ok {
		return n.Name()
	}
	typ := reflect.TypeOf(b)
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Name() == "" {
		return "func"
	}
	return strings.ToLower(typ.Name())
}

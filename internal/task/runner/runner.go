// Package runner fires the recurring tasks of a frozen scene.
//
// Each tick the loop calls Dispatch with the current frame. Due tasks are
// claimed on the calling goroutine (so fire counts are deterministic) and each
// one then runs on its own goroutine. The returned Batch lets the loop join
// the tick's tasks before rendering.
package runner

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"marquee/internal/eventbus"
	"marquee/internal/scene"
	"marquee/internal/surface"
	logx "marquee/pkg/logx"
)

type Runner struct {
	cfg   Config
	log   logx.Logger
	bus   eventbus.Bus
	tasks []*scene.Task

	inFlight   atomic.Int64
	dispatched atomic.Uint64
	failed     atomic.Uint64
	panics     atomic.Uint64

	hmu     sync.Mutex
	history []HistoryItem
}

func New(tasks []*scene.Task, cfg Config, log logx.Logger, bus eventbus.Bus) *Runner {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 200
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{
		cfg:   cfg,
		log:   log,
		bus:   bus,
		tasks: append([]*scene.Task(nil), tasks...),
	}
}

// Prepare runs every task's one-time setup with the display geometry.
// It must complete before the first Dispatch.
func (r *Runner) Prepare(geo surface.Geometry) error {
	for _, t := range r.tasks {
		if err := t.Before(geo); err != nil {
			return fmt.Errorf("task %s: before: %w", t.Name(), err)
		}
	}
	r.log.Debug("tasks prepared", logx.Int("tasks", len(r.tasks)), logx.Int("width", geo.Width), logx.Int("height", geo.Height))
	return nil
}

// Dispatch claims every task due on fc.Absolute and starts each on its own
// goroutine. It never waits for them.
func (r *Runner) Dispatch(fc scene.FrameContext) *Batch {
	b := &Batch{}
	for _, t := range r.tasks {
		if !t.Claim(fc.Absolute) {
			continue
		}
		fire := t.Fires()
		b.n++
		b.wg.Add(1)
		r.inFlight.Add(1)
		r.dispatched.Add(1)
		go func(t *scene.Task, fire int) {
			defer b.wg.Done()
			defer r.inFlight.Add(-1)
			r.exec(t, fc.Absolute, fire)
		}(t, fire)

		if t.Exhausted() {
			r.log.Debug("task.exhausted", logx.String("task", t.Name()), logx.Int("fires", fire))
			r.publish(eventbus.TaskExhausted, fc.Absolute, TaskEvent{Task: t.Name(), Frame: fc.Absolute, Fire: fire})
		}
	}
	return b
}

func (r *Runner) exec(t *scene.Task, frame uint64, fire int) {
	start := time.Now()
	var err error
	// Behavior panics become task errors.
	func() {
		defer func() {
			if p := recover(); p != nil {
				r.panics.Add(1)
				err = fmt.Errorf("panic: %v", p)
				r.log.Error("task.panic", logx.String("task", t.Name()), logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
			}
		}()
		err = t.Update()
	}()
	dur := time.Since(start)

	item := HistoryItem{Task: t.Name(), Frame: frame, Fire: fire, Started: start, Duration: dur}
	if err != nil {
		r.failed.Add(1)
		item.Error = err.Error()
		r.log.Warn("task.failed", logx.String("task", t.Name()), logx.Uint64("frame", frame), logx.Int("fire", fire), logx.Err(err))
		r.publish(eventbus.TaskFailed, frame, TaskEvent{Task: t.Name(), Frame: frame, Fire: fire, Duration: dur, Error: item.Error})
	} else {
		r.log.Trace("task.completed", logx.String("task", t.Name()), logx.Uint64("frame", frame), logx.Duration("dur", dur))
	}

	r.hmu.Lock()
	r.history = append(r.history, item)
	if len(r.history) > r.cfg.HistorySize {
		r.history = r.history[len(r.history)-r.cfg.HistorySize:]
	}
	r.hmu.Unlock()
}

func (r *Runner) publish(typ string, frame uint64, data TaskEvent) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(eventbus.Event{Type: typ, Frame: frame, Data: data})
}

func (r *Runner) Tasks() []*scene.Task { return append([]*scene.Task(nil), r.tasks...) }

func (r *Runner) Snapshot() Snapshot {
	active := 0
	for _, t := range r.tasks {
		if !t.Exhausted() {
			active++
		}
	}
	r.hmu.Lock()
	hist := append([]HistoryItem(nil), r.history...)
	r.hmu.Unlock()
	return Snapshot{
		Tasks:      len(r.tasks),
		Active:     active,
		InFlight:   r.inFlight.Load(),
		Dispatched: r.dispatched.Load(),
		Failed:     r.failed.Load(),
		Panics:     r.panics.Load(),
		History:    hist,
	}
}

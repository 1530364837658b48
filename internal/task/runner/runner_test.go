package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"marquee/internal/eventbus"
	"marquee/internal/scene"
	"marquee/internal/surface"
	logx "marquee/pkg/logx"
)

func build(t *testing.T, defs ...func(o *scene.Text)) (*scene.Text, []*scene.Task) {
	t.Helper()
	s, err := scene.New(20)
	if err != nil {
		t.Fatal(err)
	}
	o := scene.NewText("Hello", surface.White, 10, 15)
	for _, d := range defs {
		d(o)
	}
	p := s.NewPanel()
	if err := p.Duration(1); err != nil {
		t.Fatal(err)
	}
	if err := p.Add(o); err != nil {
		t.Fatal(err)
	}
	tasks, err := s.Freeze()
	if err != nil {
		t.Fatal(err)
	}
	return o, tasks
}

func TestDispatchFiresOnScheduleUntilExhausted(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	_, tasks := build(t, func(o *scene.Text) {
		o.Every(0.1).Do(scene.BehaviorFunc(func(scene.Object) error {
			calls.Add(1)
			return nil
		})).Times(3)
	})
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()
	r := New(tasks, Config{}, logx.Nop(), bus)

	var firedAt []uint64
	for f := uint64(0); f < 20; f++ {
		b := r.Dispatch(scene.FrameContext{Absolute: f, Relative: f})
		b.Wait()
		if b.Len() > 0 {
			firedAt = append(firedAt, f)
		}
	}

	if got := calls.Load(); got != 3 {
		t.Fatalf("update calls = %d, want 3", got)
	}
	if len(firedAt) != 3 || firedAt[0] != 0 || firedAt[1] != 2 || firedAt[2] != 4 {
		t.Fatalf("fired at %v, want [0 2 4]", firedAt)
	}
	if tasks[0].Fires() != 3 {
		t.Fatalf("Fires = %d", tasks[0].Fires())
	}
	snap := r.Snapshot()
	if snap.Dispatched != 3 || snap.Active != 0 || len(snap.History) != 3 {
		t.Fatalf("snapshot = %+v", snap)
	}

	select {
	case e := <-events:
		if e.Type != eventbus.TaskExhausted || e.Frame != 4 {
			t.Fatalf("event = %+v", e)
		}
	default:
		t.Fatal("expected task.exhausted event")
	}
}

func TestDispatchIsolatesFailuresAndPanics(t *testing.T) {
	t.Parallel()
	var healthy atomic.Int32
	_, tasks := build(t,
		func(o *scene.Text) {
			o.Every(0.05).Do(scene.BehaviorFunc(func(scene.Object) error { return errors.New("boom") }))
		},
		func(o *scene.Text) {
			o.Every(0.05).Do(scene.BehaviorFunc(func(scene.Object) error { panic("bad behavior") }))
		},
		func(o *scene.Text) {
			o.Every(0.05).Do(scene.BehaviorFunc(func(scene.Object) error {
				healthy.Add(1)
				return nil
			}))
		},
	)
	r := New(tasks, Config{HistorySize: 4}, logx.Nop(), nil)

	for f := uint64(0); f < 3; f++ {
		r.Dispatch(scene.FrameContext{Absolute: f}).Wait()
	}

	if healthy.Load() != 3 {
		t.Fatalf("healthy task ran %d times, want 3", healthy.Load())
	}
	snap := r.Snapshot()
	if snap.Failed != 6 || snap.Panics != 3 {
		t.Fatalf("failed=%d panics=%d, want 6/3", snap.Failed, snap.Panics)
	}
	if len(snap.History) != 4 {
		t.Fatalf("history len = %d, want 4 (bounded)", len(snap.History))
	}
	// A failed fire still counts.
	if tasks[0].Fires() != 3 || tasks[1].Fires() != 3 {
		t.Fatalf("fires = %d/%d", tasks[0].Fires(), tasks[1].Fires())
	}
}

func TestDispatchDoesNotBlockOnSlowTasks(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	_, tasks := build(t, func(o *scene.Text) {
		o.Every(1).Do(scene.BehaviorFunc(func(scene.Object) error {
			<-release
			return nil
		}))
	})
	r := New(tasks, Config{}, logx.Nop(), nil)

	start := time.Now()
	b := r.Dispatch(scene.FrameContext{Absolute: 0})
	if time.Since(start) > time.Second {
		t.Fatal("Dispatch blocked on a running task")
	}
	if r.Snapshot().InFlight != 1 {
		t.Fatalf("InFlight = %d", r.Snapshot().InFlight)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := b.WaitContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitContext err = %v", err)
	}
	close(release)
	b.Wait()
	if r.Snapshot().InFlight != 0 {
		t.Fatal("InFlight should drop to 0")
	}
}

type slider struct{ start int }

func (s *slider) Before(_ scene.Object, geo surface.Geometry) error {
	s.start = geo.Width
	return nil
}
func (s *slider) Update(scene.Object) error { return nil }

type failingInit struct{}

func (failingInit) Before(scene.Object, surface.Geometry) error { return errors.New("no font") }
func (failingInit) Update(scene.Object) error                   { return nil }

func TestPrepare(t *testing.T) {
	t.Parallel()
	sl := &slider{}
	_, tasks := build(t, func(o *scene.Text) { o.Every(1).Do(sl) })
	r := New(tasks, Config{}, logx.Nop(), nil)
	if err := r.Prepare(surface.Geometry{Width: 64, Height: 32}); err != nil {
		t.Fatal(err)
	}
	if sl.start != 64 {
		t.Fatalf("start = %d, want 64", sl.start)
	}

	_, tasks = build(t, func(o *scene.Text) { o.Every(1).Do(failingInit{}) })
	if err := New(tasks, Config{}, logx.Nop(), nil).Prepare(surface.Geometry{}); err == nil {
		t.Fatal("expected Prepare error")
	}
}

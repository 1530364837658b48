package scene

import (
	"errors"
	"testing"

	"marquee/internal/surface"
)

func newScene(t *testing.T, fps int) *Scene {
	t.Helper()
	s, err := New(fps)
	if err != nil {
		t.Fatalf("New(%d): %v", fps, err)
	}
	return s
}

func mustPanel(t *testing.T, s *Scene, delay, duration float64) *Panel {
	t.Helper()
	p := s.NewPanel()
	if err := p.Delay(delay); err != nil {
		t.Fatalf("Delay: %v", err)
	}
	if err := p.Duration(duration); err != nil {
		t.Fatalf("Duration: %v", err)
	}
	return p
}

func TestPanelDisplayWindow(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		delay, frames uint64
	}{
		{name: "zero delay", delay: 0, frames: 20},
		{name: "delayed", delay: 40, frames: 100},
		{name: "no duration", delay: 7, frames: 0},
		{name: "instant zero", delay: 0, frames: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			s := newScene(t, 20)
			p := s.NewPanel()
			p.delay = tt.delay
			if err := p.Frames(tt.frames); err != nil {
				t.Fatal(err)
			}
			end := tt.delay + tt.frames
			for f := uint64(0); f < end+30; f++ {
				render, ended := p.Display(f)
				wantRender := f >= tt.delay && f <= end
				wantEnded := f >= end
				if render != wantRender || ended != wantEnded {
					t.Fatalf("Display(%d) = (%v, %v), want (%v, %v)", f, render, ended, wantRender, wantEnded)
				}
				// Pure query.
				if r2, e2 := p.Display(f); r2 != render || e2 != ended {
					t.Fatalf("Display(%d) not idempotent", f)
				}
			}
		})
	}
}

func TestOneSecondPanelAtTwentyFPS(t *testing.T) {
	t.Parallel()
	s := newScene(t, 20)
	p := mustPanel(t, s, 0, 1)

	for f := uint64(0); f <= 20; f++ {
		if render, _ := p.Display(f); !render {
			t.Fatalf("frame %d should render", f)
		}
	}
	if render, _ := p.Display(21); render {
		t.Fatal("frame 21 should not render")
	}
	if _, ended := p.Display(19); ended {
		t.Fatal("frame 19 should not be ended")
	}
	if _, ended := p.Display(20); !ended {
		t.Fatal("frame 20 should be ended")
	}
}

func TestDelayedPanelWindow(t *testing.T) {
	t.Parallel()
	s := newScene(t, 20)
	p := mustPanel(t, s, 2, 3)

	if p.DelayFrames() != 40 || p.End() != 100 {
		t.Fatalf("delay=%d end=%d, want 40/100", p.DelayFrames(), p.End())
	}
	for f := uint64(0); f < 40; f++ {
		if render, _ := p.Display(f); render {
			t.Fatalf("frame %d should be invisible", f)
		}
	}
	for f := uint64(40); f <= 100; f++ {
		if render, _ := p.Display(f); !render {
			t.Fatalf("frame %d should be visible", f)
		}
	}
	if _, ended := p.Display(100); !ended {
		t.Fatal("frame 100 should be ended")
	}
}

func TestOverlappingPanelsDrawSharedObjectTwice(t *testing.T) {
	t.Parallel()
	s := newScene(t, 20)
	x := NewText("X", surface.White, 0, 0)
	y := NewText("Y", surface.White, 0, 1)

	a := mustPanel(t, s, 0, 2)
	b := mustPanel(t, s, 1, 2)
	for _, step := range []struct {
		p *Panel
		o Object
	}{{a, x}, {b, y}, {b, x}} {
		if err := step.p.Add(step.o); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	objs, cont := s.Load(FrameContext{Absolute: 999, Relative: 30})
	if !cont {
		t.Fatal("continueRunning should be true while b is active")
	}
	want := []Object{x, y, x}
	if len(objs) != len(want) {
		t.Fatalf("len = %d, want %d", len(objs), len(want))
	}
	for i := range want {
		if objs[i] != want[i] {
			t.Fatalf("objs[%d] = %v, want %v", i, objs[i], want[i])
		}
	}
}

func TestLoadContinueRunningFalseOnlyWhenAllEnded(t *testing.T) {
	t.Parallel()
	s := newScene(t, 20)
	mustPanel(t, s, 0, 1)   // ends at 20
	mustPanel(t, s, 0, 1.5) // ends at 30

	for f := uint64(0); f <= 40; f++ {
		_, cont := s.Load(FrameContext{Relative: f})
		if want := f < 30; cont != want {
			t.Fatalf("frame %d: continueRunning = %v, want %v", f, cont, want)
		}
	}
}

func TestLoadEmptyScene(t *testing.T) {
	t.Parallel()
	s := newScene(t, 20)
	objs, cont := s.Load(FrameContext{})
	if len(objs) != 0 || cont {
		t.Fatalf("empty scene Load = (%v, %v)", objs, cont)
	}
}

func TestAddRejectsUndrawable(t *testing.T) {
	t.Parallel()
	s := newScene(t, 20)
	p := s.NewPanel()

	for _, tc := range []struct {
		name string
		obj  Object
	}{
		{"nil", nil},
		{"bare base", &Base{}},
		{"nil base", (*Base)(nil)},
		{"nil text", (*Text)(nil)},
	} {
		if err := p.Add(tc.obj); !errors.Is(err, surface.ErrRenderContract) {
			t.Fatalf("Add(%s) err = %v", tc.name, err)
		}
	}
	if len(p.Objects()) != 0 {
		t.Fatalf("rejected objects were kept: %d", len(p.Objects()))
	}
	if _, err := (&Base{}).Render(nil); !errors.Is(err, surface.ErrRenderContract) {
		t.Fatalf("Base.Render err = %v", err)
	}
}

func TestFrozenSceneRejectsConfiguration(t *testing.T) {
	t.Parallel()
	s := newScene(t, 20)
	p := mustPanel(t, s, 0, 1)
	if _, err := s.Freeze(); err != nil {
		t.Fatal(err)
	}
	if err := p.Duration(2); !errors.Is(err, ErrFrozen) {
		t.Fatalf("Duration after freeze: %v", err)
	}
	if err := p.Delay(2); !errors.Is(err, ErrFrozen) {
		t.Fatalf("Delay after freeze: %v", err)
	}
	if err := p.Add(NewText("late", surface.White, 0, 0)); !errors.Is(err, ErrFrozen) {
		t.Fatalf("Add after freeze: %v", err)
	}

	detached := s.NewPanel()
	if err := detached.Frames(5); !errors.Is(err, ErrFrozen) {
		t.Fatalf("Frames on detached panel: %v", err)
	}
	if len(s.Panels()) != 1 {
		t.Fatalf("panels = %d, want 1", len(s.Panels()))
	}
}

func TestEveryAfterFreezeReportsFrozen(t *testing.T) {
	t.Parallel()
	s := newScene(t, 20)
	txt := NewText("x", surface.White, 0, 0)
	if err := mustPanel(t, s, 0, 1).Add(txt); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Freeze(); err != nil {
		t.Fatal(err)
	}

	tb := txt.Every(0).Do(BehaviorFunc(func(Object) error { return nil }))
	if !errors.Is(tb.Err(), ErrFrozen) {
		t.Fatalf("Err = %v, want ErrFrozen", tb.Err())
	}
	if _, err := tb.Spec(20); !errors.Is(err, ErrFrozen) {
		t.Fatalf("Spec err = %v", err)
	}
	if len(txt.Tasks()) != 0 {
		t.Fatalf("late definition was bound: %d tasks", len(txt.Tasks()))
	}
}

func TestInvalidTiming(t *testing.T) {
	t.Parallel()
	if _, err := New(0); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("New(0) err = %v", err)
	}
	s := newScene(t, 20)
	if err := s.NewPanel().Duration(-1); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("Duration(-1) err = %v", err)
	}
}

func TestHugeTimingRejected(t *testing.T) {
	t.Parallel()
	s := newScene(t, 20)
	p := s.NewPanel()
	if err := p.Delay(1e300); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("Delay(1e300) err = %v", err)
	}
	if err := p.Duration(1e300); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("Duration(1e300) err = %v", err)
	}
	if err := p.Frames(1 << 63); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("Frames(1<<63) err = %v", err)
	}

	// Huge but accepted timings still end after they start.
	if err := p.Frames(maxFrames); err != nil {
		t.Fatal(err)
	}
	if err := p.Delay(float64(maxFrames / 40)); err != nil {
		t.Fatal(err)
	}
	if p.End() <= p.DelayFrames() {
		t.Fatalf("end %d <= delay %d", p.End(), p.DelayFrames())
	}
	if render, ended := p.Display(5); render || ended {
		t.Fatalf("Display(5) = %v, %v; want not yet visible", render, ended)
	}
}

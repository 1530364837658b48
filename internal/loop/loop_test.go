package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"marquee/internal/eventbus"
	"marquee/internal/scene"
	"marquee/internal/surface"
	"marquee/internal/surface/memory"
	logx "marquee/pkg/logx"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newScene(t *testing.T, fps int) *scene.Scene {
	t.Helper()
	s, err := scene.New(fps)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func run(t *testing.T, s *scene.Scene, m *memory.Surface, cfg Config, bus eventbus.Bus) (*Loop, error) {
	t.Helper()
	l, err := New(s, m, cfg, logx.Nop(), bus, WithSleep(noSleep))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l, l.Run(context.Background())
}

func TestRelativeFrameRestartsAfterAllPanelsEnd(t *testing.T) {
	t.Parallel()
	s := newScene(t, 10)
	if err := s.NewPanel().Frames(2); err != nil {
		t.Fatal(err)
	}
	m := memory.New(8, 1, 10)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(32)
	defer unsub()

	l, err := run(t, s, m, Config{MaxFrames: 7}, bus)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := l.Stats()
	if st.Ticks != 7 || st.Restarts != 2 {
		t.Fatalf("ticks=%d restarts=%d, want 7/2", st.Ticks, st.Restarts)
	}
	if st.Frame.Absolute != 7 || st.Frame.Relative != 0 {
		t.Fatalf("frame = %+v", st.Frame)
	}
	if ms := m.Stats(); ms.Clears != 7 || ms.Flushes != 7 {
		t.Fatalf("surface stats = %+v", ms)
	}
	if !m.Closed() {
		t.Fatal("surface should be closed after Run")
	}

	var restarts []uint64
	for len(events) > 0 {
		if e := <-events; e.Type == eventbus.SceneRestarted {
			restarts = append(restarts, e.Frame)
		}
	}
	if len(restarts) != 2 || restarts[0] != 3 || restarts[1] != 6 {
		t.Fatalf("restart frames = %v, want [3 6]", restarts)
	}
}

func TestDelayedPanelVisibilityAcrossCycles(t *testing.T) {
	t.Parallel()
	s := newScene(t, 10)
	a := s.NewPanel()
	if err := a.Delay(0.1); err != nil {
		t.Fatal(err)
	}
	if err := a.Frames(1); err != nil {
		t.Fatal(err)
	}
	if err := a.Add(scene.NewText("A", surface.White, 0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := s.NewPanel().Frames(3); err != nil {
		t.Fatal(err)
	}

	var seen []bool
	m := memory.New(4, 1, 10, memory.WithFlushHook(func(front []memory.Cell, _ surface.Geometry) error {
		seen = append(seen, front[0].Rune == 'A')
		return nil
	}))
	if _, err := run(t, s, m, Config{MaxFrames: 8}, nil); err != nil {
		t.Fatal(err)
	}
	// Relative frames 0 1 2 3 | 0 1 2 3; A is visible on 1..2.
	want := []bool{false, true, true, false, false, true, true, false}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Fatalf("visible = %v, want %v", seen, want)
	}
}

func TestJoinedTasksFinishBeforeRender(t *testing.T) {
	t.Parallel()
	s := newScene(t, 10)
	txt := scene.NewText("0", surface.White, 0, 0)
	var n atomic.Int64
	txt.Every(0.1).Do(scene.BehaviorFunc(func(owner scene.Object) error {
		time.Sleep(time.Millisecond)
		owner.(*scene.Text).SetText(fmt.Sprint(n.Add(1)))
		return nil
	}))
	p := s.NewPanel()
	if err := p.Duration(10); err != nil {
		t.Fatal(err)
	}
	if err := p.Add(txt); err != nil {
		t.Fatal(err)
	}

	var m *memory.Surface
	var drawn []string
	m = memory.New(8, 1, 10, memory.WithFlushHook(func([]memory.Cell, surface.Geometry) error {
		for _, op := range m.Frame() {
			drawn = append(drawn, op.Text)
		}
		return nil
	}))
	if _, err := run(t, s, m, Config{MaxFrames: 5}, nil); err != nil {
		t.Fatal(err)
	}
	want := []string{"1", "2", "3", "4", "5"}
	if strings.Join(drawn, ",") != strings.Join(want, ",") {
		t.Fatalf("drawn = %v, want %v", drawn, want)
	}
}

func TestRenderFailureIsIsolated(t *testing.T) {
	t.Parallel()
	s := newScene(t, 10)
	bad := scene.NewText("bad", surface.White, 0, 0)
	ok := scene.NewText("ok", surface.White, 0, 1)
	p := s.NewPanel()
	if err := p.Duration(10); err != nil {
		t.Fatal(err)
	}
	for _, o := range []scene.Object{bad, ok} {
		if err := p.Add(o); err != nil {
			t.Fatal(err)
		}
	}
	var rows []string
	var m *memory.Surface
	m = memory.New(4, 2, 10,
		memory.WithFailText("bad"),
		memory.WithFlushHook(func([]memory.Cell, surface.Geometry) error {
			rows = append(rows, m.Row(1))
			return nil
		}),
	)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(32)
	defer unsub()

	l, err := run(t, s, m, Config{MaxFrames: 3}, bus)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := l.Stats().RenderFailures; got != 3 {
		t.Fatalf("RenderFailures = %d, want 3", got)
	}
	for i, r := range rows {
		if r != "ok  " {
			t.Fatalf("frame %d row = %q", i, r)
		}
	}
	if ok.LastExtent() != 2 || bad.LastExtent() != 0 {
		t.Fatalf("extents ok=%d bad=%d", ok.LastExtent(), bad.LastExtent())
	}
	failed := 0
	for len(events) > 0 {
		if e := <-events; e.Type == eventbus.RenderFailed {
			failed++
		}
	}
	if failed != 3 {
		t.Fatalf("render.failed events = %d, want 3", failed)
	}
}

type blank struct{ scene.Base }

func TestRenderContractViolationAbortsRun(t *testing.T) {
	t.Parallel()
	s := newScene(t, 10)
	p := s.NewPanel()
	if err := p.Duration(1); err != nil {
		t.Fatal(err)
	}
	if err := p.Add(&blank{}); err != nil {
		t.Fatal(err)
	}
	m := memory.New(4, 1, 10)
	_, err := run(t, s, m, Config{MaxFrames: 5}, nil)
	if !errors.Is(err, surface.ErrRenderContract) {
		t.Fatalf("Run err = %v, want ErrRenderContract", err)
	}
	if !m.Closed() {
		t.Fatal("surface should be closed on abort")
	}
}

func TestCancelStopsAndClearsSurface(t *testing.T) {
	t.Parallel()
	s := newScene(t, 10)
	if err := s.NewPanel().Duration(1); err != nil {
		t.Fatal(err)
	}
	m := memory.New(4, 1, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var slept atomic.Int32
	l, err := New(s, m, Config{}, logx.Nop(), nil, WithSleep(func(ctx context.Context, _ time.Duration) error {
		if slept.Add(1) == 4 {
			cancel()
		}
		return ctx.Err()
	}))
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if l.Progress() != 4 {
		t.Fatalf("Progress = %d, want 4", l.Progress())
	}
	if !m.Closed() {
		t.Fatal("surface should be closed")
	}
	if l.Stats().Running {
		t.Fatal("Running should be false after Run")
	}
}

func TestNewValidatesSceneAgainstSurface(t *testing.T) {
	t.Parallel()
	s := newScene(t, 20)
	if _, err := New(s, memory.New(4, 1, 10), Config{}, logx.Nop(), nil); !errors.Is(err, ErrRateMismatch) {
		t.Fatalf("err = %v, want ErrRateMismatch", err)
	}

	s = newScene(t, 20)
	o := scene.NewText("x", surface.White, 0, 0)
	o.Every(0.01).Do(scene.BehaviorFunc(func(scene.Object) error { return nil }))
	if err := s.NewPanel().Add(o); err != nil {
		t.Fatal(err)
	}
	if _, err := New(s, memory.New(4, 1, 20), Config{}, logx.Nop(), nil); !errors.Is(err, scene.ErrInvalidPeriod) {
		t.Fatalf("err = %v, want ErrInvalidPeriod", err)
	}
}

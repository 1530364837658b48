// Package loop drives a frozen scene at the surface's refresh rate.
//
// One tick is: clear the surface, dispatch due tasks (and join them unless
// configured otherwise), load the scene for the relative frame, render every
// returned object, flush. Then the absolute frame advances, the loop sleeps
// one frame period and the relative frame either advances or, once every
// panel has ended, restarts from zero.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"marquee/internal/eventbus"
	"marquee/internal/scene"
	"marquee/internal/surface"
	"marquee/internal/task/runner"
	logx "marquee/pkg/logx"
)

var (
	ErrRunning      = errors.New("loop already running")
	ErrRateMismatch = errors.New("scene and surface refresh rates differ")
)

type Config struct {
	// JoinTasks waits for the tick's tasks before rendering. Default true.
	JoinTasks *bool
	// MaxFrames stops the loop after that many ticks. 0 runs until cancelled.
	MaxFrames uint64
	// RenderLogRate caps render failure log lines per second. Default 1.
	RenderLogRate float64
	Runner        runner.Config
}

func (c Config) joinTasks() bool { return c.JoinTasks == nil || *c.JoinTasks }

// Stats is a point-in-time view of the loop.
type Stats struct {
	Frame          scene.FrameContext
	Ticks          uint64
	Restarts       uint64
	RenderFailures uint64
	Overruns       uint64
	LastTick       time.Duration
	Running        bool
}

type Option func(*Loop)

// WithSleep replaces the wall-clock pause between ticks.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Loop) {
		if fn != nil {
			l.sleep = fn
		}
	}
}

type Loop struct {
	cfg    Config
	log    logx.Logger
	rlog   logx.Logger
	bus    eventbus.Bus
	scene  *scene.Scene
	surf   surface.Surface
	runner *runner.Runner
	period time.Duration
	sleep  func(ctx context.Context, d time.Duration) error

	running        atomic.Bool
	absolute       atomic.Uint64
	relative       atomic.Uint64
	ticks          atomic.Uint64
	restarts       atomic.Uint64
	renderFailures atomic.Uint64
	overruns       atomic.Uint64
	lastTick       atomic.Int64
}

// New freezes sc and prepares a loop drawing it onto surf. Task definitions
// are validated here, so a bad period fails before anything is drawn.
func New(sc *scene.Scene, surf surface.Surface, cfg Config, log logx.Logger, bus eventbus.Bus, opts ...Option) (*Loop, error) {
	if sc == nil || surf == nil {
		return nil, errors.New("loop: scene and surface are required")
	}
	if sc.RefreshRate() != surf.RefreshRate() {
		return nil, fmt.Errorf("%w: scene %d fps, surface %d fps", ErrRateMismatch, sc.RefreshRate(), surf.RefreshRate())
	}
	tasks, err := sc.Freeze()
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.RenderLogRate <= 0 {
		cfg.RenderLogRate = 1
	}
	l := &Loop{
		cfg:    cfg,
		log:    log,
		rlog:   log.Throttled(cfg.RenderLogRate, 3),
		bus:    bus,
		scene:  sc,
		surf:   surf,
		runner: runner.New(tasks, cfg.Runner, log.With(logx.String("comp", "runner")), bus),
		period: time.Second / time.Duration(sc.RefreshRate()),
		sleep:  sleepCtx,
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

func (l *Loop) Runner() *runner.Runner { return l.runner }

// Run ticks until ctx is cancelled, MaxFrames is reached, or a fatal error
// occurs. The surface is closed (cleared) on every exit path.
// A cancelled context is a clean stop and returns nil.
func (l *Loop) Run(ctx context.Context) (err error) {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.running.Store(false)

	defer func() {
		if cerr := l.surf.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close surface: %w", cerr)
		}
		l.publish(eventbus.LoopStopped, l.absolute.Load(), err)
		l.log.Info("loop stopped", logx.Uint64("ticks", l.ticks.Load()), logx.Uint64("restarts", l.restarts.Load()))
	}()

	if err := l.runner.Prepare(l.surf.Geometry()); err != nil {
		return err
	}

	join := l.cfg.joinTasks()
	l.log.Info("loop started",
		logx.Int("fps", l.scene.RefreshRate()),
		logx.Int("panels", len(l.scene.Panels())),
		logx.Int("tasks", len(l.runner.Tasks())),
		logx.Bool("join_tasks", join),
		logx.Uint64("max_frames", l.cfg.MaxFrames),
	)
	l.publish(eventbus.LoopStarted, 0, nil)

	var fc scene.FrameContext
	objs := make([]scene.Object, 0, 16)
	for {
		if ctx.Err() != nil {
			return nil
		}

		start := time.Now()
		var cont bool
		objs, cont, err = l.tick(ctx, fc, objs, join)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		}
		elapsed := time.Since(start)
		l.lastTick.Store(int64(elapsed))
		if elapsed > l.period {
			l.overruns.Add(1)
		}
		l.ticks.Add(1)

		fc.Absolute++
		l.absolute.Store(fc.Absolute)
		if l.cfg.MaxFrames > 0 && fc.Absolute >= l.cfg.MaxFrames {
			return nil
		}

		if err := l.sleep(ctx, l.period); err != nil {
			return nil
		}

		if cont {
			fc.Relative++
		} else {
			fc.Relative = 0
			l.restarts.Add(1)
			l.log.Debug("scene restarted", logx.Uint64("frame", fc.Absolute))
			l.publish(eventbus.SceneRestarted, fc.Absolute, nil)
		}
		l.relative.Store(fc.Relative)
	}
}

func (l *Loop) tick(ctx context.Context, fc scene.FrameContext, objs []scene.Object, join bool) ([]scene.Object, bool, error) {
	if err := l.surf.Clear(); err != nil {
		return objs, false, fmt.Errorf("frame %d: clear: %w", fc.Absolute, err)
	}

	batch := l.runner.Dispatch(fc)
	if join {
		if err := batch.WaitContext(ctx); err != nil {
			return objs, false, err
		}
	}

	objs, cont := l.scene.LoadInto(objs, fc)
	for _, obj := range objs {
		n, err := l.render(obj)
		if err != nil {
			if errors.Is(err, surface.ErrRenderContract) {
				return objs, false, fmt.Errorf("frame %d: %w", fc.Absolute, err)
			}
			l.renderFailures.Add(1)
			label := obj.Node().Label()
			l.rlog.Warn("render failed", logx.String("object", label), logx.Uint64("frame", fc.Absolute), logx.Err(err))
			l.publish(eventbus.RenderFailed, fc.Absolute, fmt.Errorf("%s: %w", label, err))
			continue
		}
		obj.Node().SetLastExtent(n)
	}

	if err := l.surf.Flush(); err != nil {
		return objs, cont, fmt.Errorf("frame %d: flush: %w", fc.Absolute, err)
	}
	return objs, cont, nil
}

// render isolates a panicking object like a failing one.
func (l *Loop) render(obj scene.Object) (n int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("render panic: %v", p)
		}
	}()
	return obj.Render(l.surf)
}

func (l *Loop) publish(typ string, frame uint64, err error) {
	if l.bus == nil {
		return
	}
	e := eventbus.Event{Type: typ, Frame: frame}
	if err != nil {
		e.Data = err.Error()
	}
	l.bus.Publish(e)
}

// Progress is the number of completed ticks. It only moves while the loop is
// healthy, which makes it a liveness signal.
func (l *Loop) Progress() uint64 { return l.ticks.Load() }

func (l *Loop) Stats() Stats {
	return Stats{
		Frame:          scene.FrameContext{Absolute: l.absolute.Load(), Relative: l.relative.Load()},
		Ticks:          l.ticks.Load(),
		Restarts:       l.restarts.Load(),
		RenderFailures: l.renderFailures.Load(),
		Overruns:       l.overruns.Load(),
		LastTick:       time.Duration(l.lastTick.Load()),
		Running:        l.running.Load(),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

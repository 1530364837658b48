package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"marquee/internal/config"
	"marquee/internal/eventbus"
	"marquee/internal/loop"
	"marquee/internal/runtime/supervisor"
	"marquee/internal/scene"
	"marquee/internal/surface"
	"marquee/internal/task/runner"
	logx "marquee/pkg/logx"
	"marquee/pkg/systemd"
)

type App struct {
	cfgm *config.Manager
	cfg  *config.Config

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	surf    surface.Surface
	backend string
	scene   *scene.Scene
	loop    *loop.Loop

	report *reporter
	notify *systemd.Notifier
	sup    *supervisor.Supervisor
}

type Option func(*options)

type options struct {
	out     io.Writer
	console io.Writer
	surface surface.Surface
	sleep   func(ctx context.Context, d time.Duration) error
}

// WithOutput sets where the terminal display is written. Default os.Stdout.
func WithOutput(w io.Writer) Option { return func(o *options) { o.out = w } }

// WithConsole sets the console log sink. Default stderr.
func WithConsole(w io.Writer) Option { return func(o *options) { o.console = w } }

// WithSurface bypasses display.backend and draws onto s.
func WithSurface(s surface.Surface) Option { return func(o *options) { o.surface = s } }

// WithSleep replaces the loop's pause between ticks.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = fn }
}

// New loads the config at cfgPath and builds every component. Nothing runs
// until Start.
func New(cfgPath string, opts ...Option) (*App, error) {
	o := options{out: os.Stdout, console: logx.Console()}
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logSvc, log := logx.NewWithConsole(cfg.Logging.Logx(), o.console)
	bus := eventbus.New()

	show := cfg.Show
	if len(show.Panels) == 0 {
		log.Info("no show configured; playing the demo show")
		show = DemoShow()
	}
	sc, err := BuildScene(show, cfg.Display.RefreshRate)
	if err != nil {
		return nil, fmt.Errorf("show: %w", err)
	}

	surf, backend := o.surface, "custom"
	if surf == nil {
		surf, backend, err = openSurface(cfg.Display, o.out)
		if err != nil {
			return nil, err
		}
	}

	var loopOpts []loop.Option
	if o.sleep != nil {
		loopOpts = append(loopOpts, loop.WithSleep(o.sleep))
	}
	lp, err := loop.New(sc, surf, loop.Config{
		JoinTasks:     cfg.Loop.JoinTasks,
		MaxFrames:     cfg.Loop.MaxFrames,
		RenderLogRate: cfg.Loop.RenderLogRate,
		Runner:        runner.Config{HistorySize: cfg.Loop.HistorySize},
	}, log.With(logx.String("comp", "loop")), bus, loopOpts...)
	if err != nil {
		_ = surf.Close()
		return nil, fmt.Errorf("show: %w", err)
	}

	a := &App{
		cfgm:    cfgm,
		cfg:     cfg,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     bus,
		surf:    surf,
		backend: backend,
		scene:   sc,
		loop:    lp,
		notify:  systemd.New(cfg.Systemd.Notify),
	}
	a.report = newReporter(log.With(logx.String("comp", "report")), a.statsFields, a.statusLine, a.notify.Status)
	return a, nil
}

func (a *App) Loop() *loop.Loop { return a.loop }

func (a *App) Bus() eventbus.Bus { return a.bus }

// Done is closed once the app stopped running: Stop, a fatal error, or the
// loop reaching loop.max_frames.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err is the first fatal error, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))), supervisor.WithCancelOnError(true))

	if err := a.report.Apply(a.cfg.Report); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	a.report.Start()

	a.sup.Go("loop", func(c context.Context) error {
		err := a.loop.Run(c)
		if err == nil && c.Err() == nil {
			// Bounded run finished.
			a.log.Info("show finished", logx.Uint64("frames", a.loop.Progress()))
			a.sup.Cancel()
		}
		return err
	})

	a.sup.Go("eventbus.log", a.logEvents)

	if iv := a.notify.WatchdogInterval(); iv > 0 && a.cfg.Systemd.Watchdog {
		a.sup.Go("systemd.watchdog", func(c context.Context) error {
			return a.notify.RunWatchdog(c, iv, a.loop.Progress)
		})
	}

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validateReload)
	sub := a.cfgm.Subscribe(4)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return nil
			case next, ok := <-sub:
				if !ok {
					return nil
				}
				a.applyConfig(next)
			}
		}
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, 250*time.Millisecond, 5*time.Second)

	if err := a.notify.Ready(); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	}
	a.log.Info("app started",
		logx.String("display", a.backend),
		logx.Int("width", a.cfg.Display.Width),
		logx.Int("height", a.cfg.Display.Height),
		logx.Int("fps", a.cfg.Display.RefreshRate),
	)
	return nil
}

// applyConfig applies the live sections of a reloaded config.
func (a *App) applyConfig(next *config.Config) {
	change := config.SummarizeConfigChange(a.cfg, next)
	if change.Empty() {
		a.log.Debug("config reload received, no effective changes")
		return
	}
	a.logs.Apply(next.Logging.Logx())
	if err := a.report.Apply(next.Report); err != nil {
		a.log.Warn("report schedule rejected; reporting disabled", logx.Err(err))
	}
	if len(change.RestartRequired) > 0 {
		a.log.Warn("config changed; restart required to take effect", logx.String("sections", strings.Join(change.RestartRequired, ",")))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(change.Sections, ","))}, change.Attrs...)
	a.log.Info("config reloaded", fields...)
	a.cfg = next
}

func (a *App) logEvents(ctx context.Context) error {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			a.log.Trace("event", logx.String("type", e.Type), logx.Uint64("frame", e.Frame), logx.Any("data", e.Data))
		}
	}
}

// validateReload rejects a reloaded file whose show would not build, so a
// broken edit is reported now rather than at the next restart.
func validateReload(_ context.Context, next *config.Config) error {
	show := next.Show
	if len(show.Panels) == 0 {
		show = DemoShow()
	}
	sc, err := BuildScene(show, next.Display.RefreshRate)
	if err != nil {
		return fmt.Errorf("show: %w", err)
	}
	if _, err := sc.Freeze(); err != nil {
		return fmt.Errorf("show: %w", err)
	}
	return nil
}

// statusLine is the one-line STATUS= form of the stats report.
func (a *App) statusLine() string {
	ls := a.loop.Stats()
	return fmt.Sprintf("frame %d, %d restarts, %d render failures", ls.Frame.Absolute, ls.Restarts, ls.RenderFailures)
}

func (a *App) statsFields() []logx.Field {
	ls := a.loop.Stats()
	rs := a.loop.Runner().Snapshot()
	return []logx.Field{
		logx.Uint64("frame", ls.Frame.Absolute),
		logx.Uint64("relative", ls.Frame.Relative),
		logx.Uint64("restarts", ls.Restarts),
		logx.Uint64("render_failures", ls.RenderFailures),
		logx.Uint64("overruns", ls.Overruns),
		logx.Duration("last_tick", ls.LastTick),
		logx.Int("tasks_active", rs.Active),
		logx.Uint64("tasks_fired", rs.Dispatched),
		logx.Uint64("tasks_failed", rs.Failed),
		logx.Int64("tasks_in_flight", rs.InFlight),
		logx.Uint64("events_dropped", a.bus.Dropped()),
	}
}

// Stop shuts everything down within ctx. The display is cleared before it
// returns.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.surf.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if err := a.notify.Stopping(); err != nil {
		a.log.Debug("sd_notify stopping failed", logx.Err(err))
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfgm.Get().Shutdown())
		defer cancel()
	}

	a.sup.Cancel()
	if err := a.report.Stop(ctx); err != nil {
		a.log.Warn("report stop", logx.Err(err))
	}
	err := a.sup.Wait(ctx)
	if cerr := a.surf.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		a.log.Error("stopped with error", logx.Err(err))
	} else {
		a.log.Info("stopped", a.statsFields()...)
	}
	_ = a.logs.Close()
	return err
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/robfig/cron/v3"

	"marquee/internal/behavior"
	"marquee/internal/surface"
	logx "marquee/pkg/logx"
)

const (
	DefaultWidth          = 64
	DefaultHeight         = 32
	DefaultRefreshRate    = 20
	DefaultReportSchedule = "@every 1m"
	DefaultShutdown       = "5s"
)

var ErrInvalid = errors.New("invalid config")

// ApplyDefaults fills omitted values in place.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	d := &cfg.Display
	d.Backend = strings.ToLower(strings.TrimSpace(d.Backend))
	if d.Backend == "" {
		d.Backend = "auto"
	}
	if d.Width == 0 {
		d.Width = DefaultWidth
	}
	if d.Height == 0 {
		d.Height = DefaultHeight
	}
	if d.RefreshRate == 0 {
		d.RefreshRate = DefaultRefreshRate
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		cfg.Logging.File.Path = "./marquee.log"
	}
	if strings.TrimSpace(cfg.Report.Schedule) == "" {
		cfg.Report.Schedule = DefaultReportSchedule
	}
	if strings.TrimSpace(cfg.ShutdownTimeout) == "" {
		cfg.ShutdownTimeout = DefaultShutdown
	}
}

// Validate checks a defaulted config. All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	switch cfg.Display.Backend {
	case "auto", "terminal", "memory":
	default:
		add("display.backend %q (want auto, terminal or memory)", cfg.Display.Backend)
	}
	if cfg.Display.Width <= 0 || cfg.Display.Height <= 0 {
		add("display size %dx%d", cfg.Display.Width, cfg.Display.Height)
	}
	if cfg.Display.RefreshRate <= 0 {
		add("display.refresh_rate %d", cfg.Display.RefreshRate)
	}
	if cfg.Loop.RenderLogRate < 0 {
		add("loop.render_log_rate %v", cfg.Loop.RenderLogRate)
	}
	if !logx.ValidLevel(cfg.Logging.Level) {
		add("logging.level %q", cfg.Logging.Level)
	}
	if _, err := cron.ParseStandard(cfg.Report.Schedule); err != nil {
		add("report.schedule %q: %v", cfg.Report.Schedule, err)
	}
	if _, err := ParseDurationField("shutdown_timeout", cfg.ShutdownTimeout); err != nil {
		add("%v", err)
	}
	errs = append(errs, validateShow(&cfg.Show)...)
	return errors.Join(errs...)
}

func validateShow(show *ShowConfig) []error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	ids := map[string]bool{}
	for i, p := range show.Panels {
		if p.Delay < 0 || p.Duration < 0 {
			add("show.panels[%d]: delay and duration must be >= 0", i)
		}
		for j, o := range p.Objects {
			at := fmt.Sprintf("show.panels[%d].objects[%d]", i, j)
			if o.Ref != "" {
				if o.Text != "" || o.ID != "" || len(o.Tasks) > 0 {
					add("%s: ref cannot be combined with an object definition", at)
				}
				if !ids[o.Ref] {
					add("%s: ref %q does not name an earlier object", at, o.Ref)
				}
				continue
			}
			if o.ID != "" {
				if ids[o.ID] {
					add("%s: duplicate id %q", at, o.ID)
				}
				ids[o.ID] = true
			}
			if o.Color != "" {
				if _, err := ParseColor(o.Color); err != nil {
					add("%s: %v", at, err)
				}
			}
			for k, t := range o.Tasks {
				tat := fmt.Sprintf("%s.tasks[%d]", at, k)
				if !behavior.Known(t.Behavior) {
					add("%s: unknown behavior %q (known: %s)", tat, t.Behavior, strings.Join(behavior.Names(), ", "))
				}
				if !(t.Every > 0) {
					add("%s: every must be > 0", tat)
				}
				if t.Times != nil && *t.Times <= 0 {
					add("%s: times must be > 0", tat)
				}
			}
		}
	}
	return errs
}

// ParseColor parses "#rrggbb" (or "#rgb"). Empty means white.
func ParseColor(s string) (surface.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return surface.White, nil
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return surface.Color{}, fmt.Errorf("color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return surface.RGB(r, g, b), nil
}

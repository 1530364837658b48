package config

import (
	"reflect"
	"sort"
	"strings"

	logx "marquee/pkg/logx"
)

// Change describes what differs between two configs.
type Change struct {
	// Sections lists changed top-level sections, sorted.
	Sections []string
	// Attrs are structured log fields describing the new values.
	Attrs []logx.Field
	// RestartRequired lists changed sections that only take effect on restart.
	RestartRequired []string
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

// SummarizeConfigChange compares two configs section by section.
func SummarizeConfigChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var c Change
	mark := func(section string, restart bool, attrs ...logx.Field) {
		c.Sections = append(c.Sections, section)
		c.Attrs = append(c.Attrs, attrs...)
		if restart {
			c.RestartRequired = append(c.RestartRequired, section)
		}
	}

	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		mark("logging", false,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Report != newCfg.Report {
		mark("report", false,
			logx.Bool("report.enabled", newCfg.Report.Enabled),
			logx.String("report.schedule", newCfg.Report.Schedule),
		)
	}

	if oldCfg.Display != newCfg.Display {
		mark("display", true,
			logx.String("display.backend", newCfg.Display.Backend),
			logx.Int("display.width", newCfg.Display.Width),
			logx.Int("display.height", newCfg.Display.Height),
			logx.Int("display.refresh_rate", newCfg.Display.RefreshRate),
		)
	}

	if !reflect.DeepEqual(oldCfg.Loop, newCfg.Loop) {
		mark("loop", true, logx.Uint64("loop.max_frames", newCfg.Loop.MaxFrames))
	}

	if oldCfg.Systemd != newCfg.Systemd {
		mark("systemd", true,
			logx.Bool("systemd.notify", newCfg.Systemd.Notify),
			logx.Bool("systemd.watchdog", newCfg.Systemd.Watchdog),
		)
	}

	if strings.TrimSpace(oldCfg.ShutdownTimeout) != strings.TrimSpace(newCfg.ShutdownTimeout) {
		mark("shutdown_timeout", false, logx.String("shutdown_timeout", newCfg.ShutdownTimeout))
	}

	if !reflect.DeepEqual(oldCfg.Show, newCfg.Show) {
		mark("show", true, logx.Int("show.panels", len(newCfg.Show.Panels)))
	}

	sort.Strings(c.Sections)
	sort.Strings(c.RestartRequired)
	return c
}

package app

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"marquee/internal/config"
	logx "marquee/pkg/logx"
)

// reporter logs a stats line on a cron schedule and mirrors a short form of
// it to the service manager status. The schedule can change at runtime
// through Apply.
type reporter struct {
	log    logx.Logger
	stats  func() []logx.Field
	status func() string
	notify func(string) error

	mu    sync.Mutex
	c     *cron.Cron
	entry cron.EntryID
	cfg   config.ReportConfig
}

func newReporter(log logx.Logger, stats func() []logx.Field, status func() string, notify func(string) error) *reporter {
	return &reporter{
		log:    log,
		stats:  stats,
		status: status,
		notify: notify,
		c:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
	}
}

// Apply replaces the scheduled report.
func (r *reporter) Apply(cfg config.ReportConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entry != 0 {
		r.c.Remove(r.entry)
		r.entry = 0
	}
	r.cfg = cfg
	if !cfg.Enabled {
		return nil
	}
	id, err := r.c.AddFunc(cfg.Schedule, r.report)
	if err != nil {
		return err
	}
	r.entry = id
	r.log.Debug("report scheduled", logx.String("schedule", cfg.Schedule))
	return nil
}

func (r *reporter) report() {
	r.log.Info("show stats", r.stats()...)
	if r.status == nil || r.notify == nil {
		return
	}
	if err := r.notify(r.status()); err != nil {
		r.log.Debug("sd_notify status failed", logx.Err(err))
	}
}

func (r *reporter) Start() { r.c.Start() }

// Stop halts the schedule and waits for a running report, bounded by ctx.
func (r *reporter) Stop(ctx context.Context) error {
	done := r.c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

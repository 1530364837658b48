// Package systemd speaks the sd_notify protocol: readiness, status, stopping
// and watchdog keep-alives. Outside a systemd unit every call is a no-op.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

type Notifier struct {
	enabled bool
	send    func(unsetEnv bool, state string) (bool, error)
	// interval reports the watchdog interval (0 when disabled).
	interval func(unsetEnv bool) (time.Duration, error)
}

func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled, send: daemon.SdNotify, interval: daemon.SdWatchdogEnabled}
}

func (n *Notifier) notify(state string) error {
	if n == nil || !n.enabled {
		return nil
	}
	_, err := n.send(false, state)
	return err
}

func (n *Notifier) Ready() error { return n.notify(daemon.SdNotifyReady) }

func (n *Notifier) Stopping() error { return n.notify(daemon.SdNotifyStopping) }

func (n *Notifier) Status(s string) error { return n.notify("STATUS=" + s) }

// WatchdogInterval is the keep-alive deadline configured for the unit, or 0.
func (n *Notifier) WatchdogInterval() time.Duration {
	if n == nil || !n.enabled {
		return 0
	}
	d, err := n.interval(false)
	if err != nil {
		return 0
	}
	return d
}

// RunWatchdog pings the watchdog every interval/2 for as long as progress
// keeps moving. A stalled progress counter withholds the ping so systemd
// restarts the unit. It returns when ctx ends.
func (n *Notifier) RunWatchdog(ctx context.Context, interval time.Duration, progress func() uint64) error {
	if interval <= 0 || progress == nil {
		return nil
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()

	last := progress()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			cur := progress()
			if cur == last {
				continue
			}
			last = cur
			if err := n.notify(daemon.SdNotifyWatchdog); err != nil {
				return err
			}
		}
	}
}

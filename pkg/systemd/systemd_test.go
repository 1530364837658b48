package systemd

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	states []string
}

func (r *recorder) send(_ bool, state string) (bool, error) {
	r.mu.Lock()
	r.states = append(r.states, state)
	r.mu.Unlock()
	return true, nil
}

func (r *recorder) count(state string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.states {
		if s == state {
			n++
		}
	}
	return n
}

func TestDisabledNotifierIsSilent(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	n := &Notifier{enabled: false, send: rec.send}
	_ = n.Ready()
	_ = n.Stopping()
	if len(rec.states) != 0 {
		t.Fatalf("states = %v", rec.states)
	}
	if n.WatchdogInterval() != 0 {
		t.Fatal("disabled notifier has no watchdog")
	}
}

func TestLifecycleStates(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	n := &Notifier{enabled: true, send: rec.send}
	_ = n.Ready()
	_ = n.Status("frame 10")
	_ = n.Stopping()
	want := []string{"READY=1", "STATUS=frame 10", "STOPPING=1"}
	for i, s := range want {
		if rec.states[i] != s {
			t.Fatalf("states = %v, want %v", rec.states, want)
		}
	}
}

func TestWatchdogOnlyPingsOnProgress(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	n := &Notifier{enabled: true, send: rec.send}
	var frames atomic.Uint64
	var moving atomic.Bool
	moving.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = n.RunWatchdog(ctx, 10*time.Millisecond, func() uint64 {
			if moving.Load() {
				return frames.Add(1)
			}
			return frames.Load()
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for rec.count("WATCHDOG=1") < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rec.count("WATCHDOG=1") < 2 {
		t.Fatal("watchdog never pinged while progressing")
	}

	moving.Store(false)
	time.Sleep(30 * time.Millisecond) // let any in-flight tick settle
	stalled := rec.count("WATCHDOG=1")
	time.Sleep(60 * time.Millisecond)
	if got := rec.count("WATCHDOG=1"); got != stalled {
		t.Fatalf("pinged %d times while stalled", got-stalled)
	}
	cancel()
	<-done
}

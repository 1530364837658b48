package runner

import (
	"context"
	"sync"
	"time"
)

// Config controls the task runner.
type Config struct {
	// HistorySize bounds the ring of recent task executions kept for
	// diagnostics. Default 200.
	HistorySize int
}

// HistoryItem is one finished task execution.
type HistoryItem struct {
	Task     string
	Frame    uint64
	Fire     int
	Started  time.Time
	Duration time.Duration
	Error    string
}

// TaskEvent is the payload of task events on the event bus.
type TaskEvent struct {
	Task     string        `json:"task"`
	Frame    uint64        `json:"frame"`
	Fire     int           `json:"fire"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Snapshot is a lightweight view for diagnostics.
type Snapshot struct {
	Tasks      int
	Active     int
	InFlight   int64
	Dispatched uint64
	Failed     uint64
	Panics     uint64
	History    []HistoryItem
}

// Batch is the set of task executions dispatched for one tick.
type Batch struct {
	wg sync.WaitGroup
	n  int
}

// Len is the number of tasks dispatched in this batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return b.n
}

// Wait blocks until every task of the batch has returned.
func (b *Batch) Wait() {
	if b == nil {
		return
	}
	b.wg.Wait()
}

// WaitContext is Wait bounded by ctx. Tasks keep running if ctx ends first.
func (b *Batch) WaitContext(ctx context.Context) error {
	if b == nil || b.n == 0 {
		return nil
	}
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

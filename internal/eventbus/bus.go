package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the show runtime.
const (
	TaskFailed     = "task.failed"
	TaskExhausted  = "task.exhausted"
	RenderFailed   = "render.failed"
	SceneRestarted = "scene.restarted"
	LoopStarted    = "loop.started"
	LoopStopped    = "loop.stopped"
)

// Event is a lightweight, in-memory signal used to decouple the loop and
// task runner from observers (reporter, watchdog, tests).
//
// Contract:
//   - Publish MUST be non-blocking; it runs on the render goroutine.
//   - Subscribers MUST use buffered channels.
//   - Slow subscribers drop events.
type Event struct {
	Type  string
	Time  time.Time
	Frame uint64
	Data  any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
	Dropped() uint64
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	seq     atomic.Uint64
	dropped atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Send under the read lock: unsubscribe takes the write lock before
	// closing, so a send never races a close.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

func (b *memBus) Dropped() uint64 { return b.dropped.Load() }

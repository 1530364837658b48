package scene

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Scene is an ordered set of panels sharing one refresh rate.
type Scene struct {
	fps    int
	panels []*Panel

	freezeOnce sync.Once
	frozen     atomic.Bool
	freezeErr  error
	tasks      []*Task
}

func New(fps int) (*Scene, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRate, fps)
	}
	return &Scene{fps: fps}, nil
}

func (s *Scene) RefreshRate() int { return s.fps }

// NewPanel appends a panel. Panels are evaluated in creation order.
// NewPanel appends an empty panel. On a frozen scene the panel is detached:
// it is never drawn and every setter returns ErrFrozen.
func (s *Scene) NewPanel() *Panel {
	if s.Frozen() {
		return &Panel{scene: s, index: -1}
	}
	p := &Panel{scene: s, index: len(s.panels)}
	s.panels = append(s.panels, p)
	return p
}

func (s *Scene) Panels() []*Panel { return append([]*Panel(nil), s.panels...) }

func (s *Scene) Frozen() bool { return s.frozen.Load() }

// Freeze validates every task definition and binds tasks to their objects.
// After it returns, panels and objects can no longer be configured.
// Calling it again returns the first result.
//
// An object shared by several panels gets its tasks bound once.
func (s *Scene) Freeze() ([]*Task, error) {
	s.freezeOnce.Do(func() {
		s.tasks, s.freezeErr = s.bind()
		s.frozen.Store(true)
	})
	return s.tasks, s.freezeErr
}

func (s *Scene) bind() ([]*Task, error) {
	seen := make(map[*Base]bool)
	var tasks []*Task
	for _, p := range s.panels {
		for i, obj := range p.objects {
			b := obj.Node()
			if seen[b] {
				continue
			}
			seen[b] = true

			b.mu.Lock()
			pending := b.pending
			label := b.label
			b.mu.Unlock()

			bound := make([]*Task, 0, len(pending))
			for j, tb := range pending {
				spec, err := tb.Spec(s.fps)
				if err != nil {
					return nil, fmt.Errorf("panel %d object %d (%q) task %d: %w", p.index, i, label, j, err)
				}
				name := tb.name
				if name == "" {
					name = fmt.Sprintf("%s/%s#%d", label, behaviorName(tb.behavior), j)
				}
				bound = append(bound, newTask(name, obj, spec, tb.behavior))
			}

			b.mu.Lock()
			b.tasks = bound
			b.sealed = true
			b.mu.Unlock()
			tasks = append(tasks, bound...)
		}
	}
	return tasks, nil
}

// Tasks returns the bound tasks (nil before Freeze).
func (s *Scene) Tasks() []*Task { return append([]*Task(nil), s.tasks...) }

// Load returns the objects to draw on fc.Relative, in panel then object
// order (an object in two visible panels appears twice), and whether any
// panel has not ended yet.
func (s *Scene) Load(fc FrameContext) ([]Object, bool) {
	return s.LoadInto(nil, fc)
}

// LoadInto is Load appending to dst[:0], so the loop can reuse one slice.
func (s *Scene) LoadInto(dst []Object, fc FrameContext) ([]Object, bool) {
	dst = dst[:0]
	cont := false
	for _, p := range s.panels {
		render, ended := p.Display(fc.Relative)
		if render {
			dst = append(dst, p.objects...)
		}
		if !ended {
			cont = true
		}
	}
	return dst, cont
}

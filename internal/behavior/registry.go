package behavior

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"marquee/internal/scene"
)

var (
	ErrUnknownBehavior = errors.New("unknown behavior")
	ErrBadParam        = errors.New("invalid behavior parameter")
)

// Params are the free-form options of a behavior in a show file.
// Numbers arrive as float64 (JSON decoding).
type Params map[string]any

// Factory builds a fresh behavior value for one task.
type Factory func(p Params) (scene.Behavior, error)

var registry = map[string]Factory{
	"counter": func(p Params) (scene.Behavior, error) {
		start, err := p.Int("start", 0)
		if err != nil {
			return nil, err
		}
		return &Counter{Start: start}, nil
	},
	"sliding": func(p Params) (scene.Behavior, error) {
		step, err := p.Int("step", 1)
		if err != nil {
			return nil, err
		}
		if step <= 0 {
			return nil, fmt.Errorf("%w: step must be > 0", ErrBadParam)
		}
		return &Sliding{Step: step}, nil
	},
	"randomcolor": func(p Params) (scene.Behavior, error) {
		seed, err := p.Int("seed", 0)
		if err != nil {
			return nil, err
		}
		rc := &RandomColor{}
		if seed != 0 {
			rc.Rand = rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
		}
		return rc, nil
	},
	"blink":  func(Params) (scene.Behavior, error) { return Blink{}, nil },
	"center": func(Params) (scene.Behavior, error) { return &Center{}, nil },
}

// New builds the behavior registered under name (case-insensitive).
func New(name string, p Params) (scene.Behavior, error) {
	f, ok := registry[normalize(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBehavior, name)
	}
	b, err := f(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", normalize(name), err)
	}
	return b, nil
}

// Known reports whether name is registered.
func Known(name string) bool {
	_, ok := registry[normalize(name)]
	return ok
}

// Names lists registered behavior names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("_", "", "-", "").Replace(name)
}

// Int reads an integer parameter, accepting whole float64 values.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %s=%v is not an integer", ErrBadParam, key, v)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %s=%v (%T)", ErrBadParam, key, v, v)
	}
}

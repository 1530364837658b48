package scene

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrFrozen          = errors.New("scene is frozen")
	ErrInvalidRate     = errors.New("refresh rate must be > 0")
	ErrInvalidDuration = errors.New("panel timing must be >= 0")
)

// maxFrames bounds any single frame count so delay+duration cannot overflow.
const maxFrames = 1 << 62

// FrameContext is the clock reading for one tick.
//
// Absolute never resets. Relative restarts from 0 after every panel of the
// scene has ended, which is what loops the show.
type FrameContext struct {
	Absolute uint64
	Relative uint64
}

// Frames converts seconds to whole frames at fps, rounding to the nearest frame.
func Frames(seconds float64, fps int) (uint64, error) {
	if fps <= 0 {
		return 0, ErrInvalidRate
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0, fmt.Errorf("%w: %v seconds", ErrInvalidDuration, seconds)
	}
	f := math.Round(seconds * float64(fps))
	if f > maxFrames {
		return 0, fmt.Errorf("%w: %v seconds exceeds %d frames", ErrInvalidDuration, seconds, uint64(maxFrames))
	}
	return uint64(f), nil
}

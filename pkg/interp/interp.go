// Package interp provides scalar interpolation curves used for
// scheduling values across a render sequence.
package interp

import (
	"fmt"
	"math"
)

// Curve selects the interpolation function.
type Curve string

const (
	Constant Curve = "constant"
	Linear   Curve = "linear"
	// Cosine runs from end at x=0 to start at x=1: the half-cosine
	// factor (1+cos(x^power*pi))/2 falls from 1 to 0, so start and end
	// trade places relative to the other curves. Schedules that want a
	// cosine ramp-down therefore configure start as the low value.
	Cosine      Curve = "cosine"
	Exponential Curve = "exponential"
)

// ParseCurve converts a configuration string into a Curve.
func ParseCurve(s string) (Curve, error) {
	switch Curve(s) {
	case Constant, Linear, Cosine, Exponential:
		return Curve(s), nil
	default:
		return "", fmt.Errorf("unknown interpolation curve %q", s)
	}
}

// Interpolate maps a progress value x in [0, 1] to a value between
// start and end along the given curve. Power controls the curviness:
// greater than 1 is slower at the start and faster at the end, less
// than 1 is the reverse. Power must be non-negative.
func Interpolate(x, start, end, power float64, curve Curve) (float64, error) {
	if x < 0 || x > 1 {
		return 0, fmt.Errorf("interpolation progress %v outside [0, 1]", x)
	}
	if power < 0 {
		return 0, fmt.Errorf("interpolation power %v is negative", power)
	}

	switch curve {
	case Constant:
		return start, nil
	case Linear:
		return start + (end-start)*math.Pow(x, power), nil
	case Cosine:
		return start + (end-start)*(1+math.Cos(math.Pow(x, power)*math.Pi))/2, nil
	case Exponential:
		if start == 0 {
			return 0, fmt.Errorf("exponential interpolation undefined for start == 0")
		}
		return start * math.Pow(end/start, math.Pow(x, power)), nil
	default:
		return 0, fmt.Errorf("unknown interpolation curve %q", curve)
	}
}

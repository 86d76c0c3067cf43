package interp

import (
	"math"
	"testing"
)

func TestInterpolateCurves(t *testing.T) {
	tests := []struct {
		name          string
		x, start, end float64
		power         float64
		curve         Curve
		want          float64
	}{
		{"constant ignores x", 0.7, 3, 9, 1, Constant, 3},
		{"linear start", 0, 2, 10, 1, Linear, 2},
		{"linear end", 1, 2, 10, 1, Linear, 10},
		{"linear midpoint", 0.5, 0, 10, 1, Linear, 5},
		{"linear power squares progress", 0.5, 0, 10, 2, Linear, 2.5},
		{"cosine starts at end value", 0, 1, 0, 1, Cosine, 0},
		{"cosine ends at start value", 1, 1, 0, 1, Cosine, 1},
		{"cosine midpoint", 0.5, 0, 1, 1, Cosine, 0.5},
		{"exponential start", 0, 1, 100, 1, Exponential, 1},
		{"exponential end", 1, 1, 100, 1, Exponential, 100},
		{"exponential midpoint is geometric mean", 0.5, 1, 100, 1, Exponential, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Interpolate(tc.x, tc.start, tc.end, tc.power, tc.curve)
			if err != nil {
				t.Fatalf("Interpolate returned error: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Interpolate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestInterpolateErrors(t *testing.T) {
	tests := []struct {
		name          string
		x, start, end float64
		power         float64
		curve         Curve
	}{
		{"x below range", -0.1, 0, 1, 1, Linear},
		{"x above range", 1.1, 0, 1, 1, Linear},
		{"negative power", 0.5, 0, 1, -1, Linear},
		{"unknown curve", 0.5, 0, 1, 1, Curve("spline")},
		{"exponential with zero start", 0.5, 0, 1, 1, Exponential},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Interpolate(tc.x, tc.start, tc.end, tc.power, tc.curve); err == nil {
				t.Errorf("Interpolate accepted invalid arguments")
			}
		})
	}
}

func TestParseCurve(t *testing.T) {
	for _, s := range []string{"constant", "linear", "cosine", "exponential"} {
		if _, err := ParseCurve(s); err != nil {
			t.Errorf("ParseCurve(%q) returned error: %v", s, err)
		}
	}
	if _, err := ParseCurve("hermite"); err == nil {
		t.Errorf("ParseCurve accepted unknown curve")
	}
}

// Package schedule maps inference progress (step or timestep) to
// scheduled scalar values such as blend strength and kernel radius.
package schedule

import (
	"fmt"
	"math"

	"stable-render/pkg/interp"
)

// Scheduler produces a value for the current step or timestep by
// interpolating between Start and End along Curve.
//
// Progress is derived from the step counter when TotalSteps is set,
// otherwise from the timestep when MaxTimestep is set (timesteps count
// down toward zero, so progress rises as the timestep falls). With
// neither set the scheduler is effectively constant at Start.
type Scheduler struct {
	Start float64
	End   float64
	Power float64
	Curve interp.Curve

	TotalSteps  int
	MaxTimestep float64
}

// Config is the YAML-taggable form of a Scheduler.
type Config struct {
	Curve       string  `yaml:"curve"`
	Start       float64 `yaml:"start"`
	End         float64 `yaml:"end"`
	Power       float64 `yaml:"power"`
	TotalSteps  int     `yaml:"total_steps"`
	MaxTimestep float64 `yaml:"max_timestep"`
}

// FromConfig builds a Scheduler from its configuration form.
// An empty curve defaults to constant and a zero power to 1.
func FromConfig(c Config) (*Scheduler, error) {
	curve := interp.Constant
	if c.Curve != "" {
		var err error
		curve, err = interp.ParseCurve(c.Curve)
		if err != nil {
			return nil, err
		}
	}
	power := c.Power
	if power == 0 {
		power = 1
	}
	if power < 0 {
		return nil, fmt.Errorf("scheduler power %v is negative", power)
	}
	return &Scheduler{
		Start:       c.Start,
		End:         c.End,
		Power:       power,
		Curve:       curve,
		TotalSteps:  c.TotalSteps,
		MaxTimestep: c.MaxTimestep,
	}, nil
}

// Progress converts the current step or timestep into a ratio in [0, 1].
func (s *Scheduler) Progress(step int, timestep float64) float64 {
	var x float64
	switch {
	case s.TotalSteps > 1:
		x = float64(step) / float64(s.TotalSteps-1)
	case s.MaxTimestep > 0:
		x = 1 - timestep/s.MaxTimestep
	}
	if x < 0 {
		x = 0
	}
	if x > 1 {
		x = 1
	}
	return x
}

// Value returns the scheduled value for the current progress.
func (s *Scheduler) Value(step int, timestep float64) (float64, error) {
	power := s.Power
	if power == 0 {
		power = 1
	}
	curve := s.Curve
	if curve == "" {
		curve = interp.Constant
	}
	return interp.Interpolate(s.Progress(step, timestep), s.Start, s.End, power, curve)
}

// Alpha returns the scheduled blend strength, clamped to [0, 1].
func (s *Scheduler) Alpha(step int, timestep float64) (float64, error) {
	v, err := s.Value(step, timestep)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v, nil
}

// Radius returns the scheduled neighborhood radius, truncated to an
// integer and clamped to be non-negative.
func (s *Scheduler) Radius(step int, timestep float64) (int, error) {
	v, err := s.Value(step, timestep)
	if err != nil {
		return 0, err
	}
	r := int(math.Trunc(v))
	if r < 0 {
		r = 0
	}
	return r, nil
}

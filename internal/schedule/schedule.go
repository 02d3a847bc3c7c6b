// Package schedule produces the ordered sampling instants of a shading run.
package schedule

import (
	"errors"
	"fmt"
	"iter"
)

// MinutesPerDay is the length of a sweep.
const MinutesPerDay = 1440

// ErrInvalidInterval is returned for a sweep with a non-positive interval.
var ErrInvalidInterval = errors.New("invalid sweep interval")

// Mode identifies how instants are generated
type Mode string

const (
	// ModeOneTime yields a single caller-supplied instant
	ModeOneTime Mode = "onetime"

	// ModeSweep yields fixed-interval instants across a 24-hour day
	ModeSweep Mode = "sweep"
)

// Instant is one time-of-day sample. Index is its position in the sequence.
type Instant struct {
	Index  int
	Hour   int
	Minute int
}

// MinuteOfDay returns the instant's offset from local midnight in minutes.
func (in Instant) MinuteOfDay() int {
	return in.Hour*60 + in.Minute
}

// Scheduler describes the sampling instants of a run.
type Scheduler struct {
	Mode            Mode
	IntervalMinutes int

	// Hour and Minute are used in ModeOneTime only
	Hour   int
	Minute int
}

// OneTime returns a scheduler yielding exactly the given clock time.
func OneTime(hour, minute int) Scheduler {
	return Scheduler{Mode: ModeOneTime, Hour: hour, Minute: minute}
}

// Sweep returns a scheduler stepping through a day every intervalMinutes.
func Sweep(intervalMinutes int) Scheduler {
	return Scheduler{Mode: ModeSweep, IntervalMinutes: intervalMinutes}
}

// Validate checks the scheduler parameters.
func (s Scheduler) Validate() error {
	switch s.Mode {
	case ModeOneTime:
		if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
			return fmt.Errorf("one-time instant %02d:%02d is not a valid clock time", s.Hour, s.Minute)
		}
	case ModeSweep:
		if s.IntervalMinutes <= 0 {
			return fmt.Errorf("%w: %d minutes", ErrInvalidInterval, s.IntervalMinutes)
		}
	default:
		return fmt.Errorf("unknown schedule mode %q", s.Mode)
	}
	return nil
}

// Len returns the number of instants the scheduler yields.
func (s Scheduler) Len() int {
	if s.Mode == ModeOneTime {
		return 1
	}
	if s.IntervalMinutes <= 0 {
		return 0
	}
	return (MinutesPerDay + s.IntervalMinutes - 1) / s.IntervalMinutes
}

// Instants yields the instants in emission order. The sequence can be ranged over
// any number of times.
func (s Scheduler) Instants() iter.Seq[Instant] {
	return func(yield func(Instant) bool) {
		if s.Mode == ModeOneTime {
			yield(Instant{Index: 0, Hour: s.Hour, Minute: s.Minute})
			return
		}

		n := s.Len()
		for i := 0; i < n; i++ {
			minute := s.IntervalMinutes * i
			hour := 0
			if minute >= 60 {
				hour = minute / 60
				minute -= hour * 60
			}
			if !yield(Instant{Index: i, Hour: hour, Minute: minute}) {
				return
			}
		}
	}
}

// All collects the instants into a slice.
func (s Scheduler) All() []Instant {
	instants := make([]Instant, 0, s.Len())
	for in := range s.Instants() {
		instants = append(instants, in)
	}
	return instants
}

package sensor

import (
	"math"
	"time"

	"github.com/kvn-sato/focsim/internal/units"
)

const twoPi = 2 * math.Pi

// wrapThreshold is the single-tick angle delta treated as a 0/2π
// crossing rather than real motion. 1.6π catches any true wrap while
// tolerating the fastest plausible per-tick rotation.
const wrapThreshold = 1.6 * math.Pi

// State unwraps a bounded [0, 2π) absolute angle reading into a
// continuous shaft angle, a signed revolution counter and an angular
// velocity estimate. It holds no hardware; feed it one reading per
// control tick through Record.
type State struct {
	angle       float64
	revolutions int
	velocity    units.Velocity
	last        snapshot
}

// snapshot of the previous Record call. dt is the interval between the
// two records before it, which makes the velocity estimate lag one
// tick on purpose: the control loop reads elapsed time once per tick
// and every consumer sees the same interval.
type snapshot struct {
	dt         time.Duration
	at         time.Time
	continuous float64
}

// NewState returns a zeroed tracker. The initial interval is 1µs so
// the first Record never divides by zero.
func NewState() State {
	return State{
		last: snapshot{dt: time.Microsecond},
	}
}

// NewStateAt primes the tracker with a creation instant so the first
// Record sees a sane elapsed time.
func NewStateAt(now time.Time) State {
	s := NewState()
	s.last.at = now
	return s
}

// Record folds a new bounded angle reading into the continuous state.
// newAngle must already be normalized to [0, 2π).
func (s *State) Record(newAngle float64, now time.Time) {
	delta := newAngle - s.angle

	if math.Abs(delta) > wrapThreshold {
		if delta > 0 {
			s.revolutions--
		} else {
			s.revolutions++
		}
	}

	s.angle = newAngle
	continuous := float64(s.revolutions)*twoPi + s.angle

	s.velocity = units.PerSecond((continuous - s.last.continuous) / s.last.dt.Seconds())

	s.last = snapshot{
		dt:         now.Sub(s.last.at),
		at:         now,
		continuous: continuous,
	}
}

// Reset clears the revolution counter and velocity estimate, keeping
// the current bounded angle. Called after alignment so the forcing
// pulse's motion does not leak into control.
func (s *State) Reset() {
	s.revolutions = 0
	s.velocity = units.Zero
	s.last.continuous = s.angle
}

// Angle is the current bounded angle in [0, 2π).
func (s *State) Angle() float64 {
	return s.angle
}

// TotalAngle is the continuous shaft angle in radians.
func (s *State) TotalAngle() float64 {
	return float64(s.revolutions)*twoPi + s.angle
}

// Revolutions is the signed full-rotation counter.
func (s *State) Revolutions() int {
	return s.revolutions
}

// Velocity is the current angular velocity estimate.
func (s *State) Velocity() units.Velocity {
	return s.velocity
}

// LastDt is the interval between the last two records.
func (s *State) LastDt() time.Duration {
	return s.last.dt
}

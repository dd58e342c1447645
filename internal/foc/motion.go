package foc

import (
	"math"

	"github.com/kvn-sato/focsim/internal/units"
)

// MotionControl selects what the cascade drives toward on each tick.
// It is a closed set: exactly the types in this file implement it.
type MotionControl interface {
	motionControl()
}

// VelocityTarget holds a constant angular-velocity setpoint.
type VelocityTarget struct {
	Target units.Velocity
}

// AngleTarget holds an absolute continuous-angle setpoint.
type AngleTarget struct {
	Target float64
}

// TorqueTarget requests torque directly, bypassing both PID stages.
// With no current sensing in the design the request maps straight
// onto the q-axis voltage law, the same formula the velocity path
// uses. TODO: replace with a real current loop if current sensing is
// ever added.
type TorqueTarget struct {
	Target float64
}

// Ratchet divides the revolution into detents and pulls the shaft to
// the nearest one, like a mechanical indexing knob.
type Ratchet struct {
	Steps      int
	RadPerStep float64
}

// NewRatchet builds a ratchet with steps evenly spaced over one
// revolution.
func NewRatchet(steps int) Ratchet {
	return Ratchet{
		Steps:      steps,
		RadPerStep: 2 * math.Pi / float64(steps),
	}
}

// Nearest returns the detent angle closest to the given continuous
// angle.
func (r Ratchet) Nearest(total float64) float64 {
	return math.Round(total/r.RadPerStep) * r.RadPerStep
}

// PositionLimit keeps the shaft inside [Low, High]: inside the band
// the controller stays passive, outside it drives back to the nearest
// bound.
type PositionLimit struct {
	Low  float64
	High float64
}

func (VelocityTarget) motionControl() {}
func (AngleTarget) motionControl()    {}
func (TorqueTarget) motionControl()   {}
func (Ratchet) motionControl()        {}
func (PositionLimit) motionControl()  {}

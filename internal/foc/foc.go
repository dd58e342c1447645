// Package foc runs the field-oriented control cascade over a
// [drive.BLDC]: sensor refresh, mode-specific target computation,
// rotor-frame voltage transform and PWM commit, one step per Tick.
//
//   - [Foc]: closed-loop controller with a [MotionControl] mode
//   - [OpenLoop]: sensorless dead-reckoned drive
//
// Tick is synchronous and single-threaded; the caller owns the
// polling cadence. Sensor and PWM errors surface per tick with no
// internal retry.
package foc

import (
	"fmt"
	"math"
	"time"

	"github.com/kvn-sato/focsim/internal/drive"
	"github.com/kvn-sato/focsim/internal/pid"
	"github.com/kvn-sato/focsim/internal/units"
)

const (
	// rpmToRads converts RPM to rad/s (π/30).
	rpmToRads = 0.10471976

	sqrt3 = 1.7320508075688772

	// angleDeadband is the tolerance inside which angle-domain modes
	// issue no correction, preventing chatter at rest.
	angleDeadband = 3e-2

	// ratchetDeadband is tighter so detents still feel crisp.
	ratchetDeadband = 1e-2
)

// Foc wraps a motor with the motion-control state machine and the two
// cascaded PID controllers. Create with New, pick a mode with the To*
// setters, then call Tick at a roughly fixed cadence.
type Foc struct {
	motor       drive.BLDC
	motion      MotionControl
	velocityPID pid.VelocityController
	anglePID    pid.Controller

	lastQ float64
	lastD float64
}

// New wraps an assembled motor. The default mode holds zero velocity;
// the default gains suit a small gimbal-class motor at a ~1kHz tick.
func New(motor drive.BLDC) *Foc {
	return &Foc{
		motor:       motor,
		motion:      VelocityTarget{Target: units.Zero},
		velocityPID: pid.NewVelocity(pid.New().P(0.02).I(3).Ramp(1000).Limit(12)),
		anglePID:    pid.New().P(10).Limit(10),
	}
}

// Motor exposes the wrapped motor for telemetry and inspection.
func (f *Foc) Motor() *drive.BLDC {
	return &f.motor
}

// LastQD reports the rotor-frame voltage pair committed by the most
// recent non-idle tick.
func (f *Foc) LastQD() (q, d float64) {
	return f.lastQ, f.lastD
}

// ToVelocity switches to constant-velocity control starting next tick.
func (f *Foc) ToVelocity(target units.Velocity) *Foc {
	f.motion = VelocityTarget{Target: target}
	return f
}

// ToAngle switches to absolute-angle control starting next tick.
func (f *Foc) ToAngle(target float64) *Foc {
	f.motion = AngleTarget{Target: target}
	return f
}

// ToTorque switches to direct torque request starting next tick.
func (f *Foc) ToTorque(target float64) *Foc {
	f.motion = TorqueTarget{Target: target}
	return f
}

// ToRatchet switches to detent control with steps evenly spaced over
// one revolution. Both controllers are re-tuned stiffer: holding a
// detent against finger pressure needs far more angle gain than
// smooth tracking does.
func (f *Foc) ToRatchet(steps int) *Foc {
	f.motion = NewRatchet(steps)
	f.anglePID = f.anglePID.P(240).Limit(240)
	f.velocityPID = f.velocityPID.Update(func(c pid.Controller) pid.Controller {
		return c.P(0.03).I(0)
	})
	return f
}

// ToLimitPos switches to position-band control: free inside
// [low, high], pulled back to the nearest bound outside it.
func (f *Foc) ToLimitPos(low, high float64) error {
	if low >= high {
		return fmt.Errorf("foc: position limit low %v must be below high %v", low, high)
	}
	f.motion = PositionLimit{Low: low, High: high}
	return nil
}

// WithVelocityPID replaces the velocity-domain controller.
func (f *Foc) WithVelocityPID(c pid.VelocityController) *Foc {
	f.velocityPID = c
	return f
}

// WithAnglePID replaces the angle-domain controller.
func (f *Foc) WithAnglePID(c pid.Controller) *Foc {
	f.anglePID = c
	return f
}

// Motion returns the active motion-control mode.
func (f *Foc) Motion() MotionControl {
	return f.motion
}

// Tick advances the control loop by one step: refresh the sensor, run
// the active mode's cascade to a rotor-frame (q, d) pair, transform
// and commit to PWM. A sensor or PWM error aborts the tick and is
// returned for the caller to handle; dead-band ticks return nil with
// the last committed phase voltages untouched.
func (f *Foc) Tick() error {
	if err := f.motor.UpdateSensor(); err != nil {
		return err
	}

	state := f.motor.SensorState()
	electricalAngle := f.motor.ElectricalAngle()
	elapsed := state.LastDt()

	var q, d float64

	switch mc := f.motion.(type) {
	case VelocityTarget:
		v := f.velocityPID.Compute(mc.Target, state.Velocity(), elapsed)
		q, d = f.calculateQD(v)

	case AngleTarget:
		total := state.TotalAngle()
		if math.Abs(mc.Target-total) < angleDeadband {
			return nil
		}
		setpoint := f.angleCascade(mc.Target, total, elapsed)
		q, d = f.calculateQD(setpoint)

	case TorqueTarget:
		q, d = f.calculateQD(units.PerSecond(mc.Target))

	case Ratchet:
		total := state.TotalAngle()
		target := mc.Nearest(total)
		if math.Abs(target-total) < ratchetDeadband {
			return nil
		}
		setpoint := f.angleCascade(target, total, elapsed)
		limit := f.motor.VelocityLimit()
		setpoint = setpoint.Clamp(limit.Neg(), limit)
		q, d = f.calculateQD(setpoint)

	case PositionLimit:
		total := state.TotalAngle()
		target := math.Min(math.Max(total, mc.Low), mc.High)
		if target == total {
			return nil
		}
		setpoint := f.angleCascade(target, total, elapsed)
		q, d = f.calculateQD(setpoint)

	default:
		return fmt.Errorf("foc: unsupported motion control %T", f.motion)
	}

	f.lastQ, f.lastD = q, d

	va, vb, vc := f.motor.PhaseVoltage(q, d, electricalAngle)
	return f.motor.Pwm().SetVoltage(va, vb, vc, f.motor.SupplyVoltage())
}

// angleCascade runs the outer angle loop into the inner velocity
// loop, both against the same tick interval.
func (f *Foc) angleCascade(target, total float64, elapsed time.Duration) units.Velocity {
	velocityTarget := units.PerSecond(f.anglePID.Compute(target, total, elapsed))
	return f.velocityPID.Compute(velocityTarget, f.motor.SensorState().Velocity(), elapsed)
}

// calculateQD turns a velocity-domain request into the rotor-frame
// voltage pair. With phase resistance configured, q follows the
// resistive voltage law plus back-EMF compensation; with inductance
// configured, d decouples the cross-axis term. Without motor
// parameters both collapse to pure q-axis voltage proportional to the
// request.
func (f *Foc) calculateQD(target units.Velocity) (q, d float64) {
	measured := f.motor.SensorState().Velocity().RadPerSec()
	limit := f.motor.VoltageLimit()

	t := target.RadPerSec()

	bemf := 0.0
	if kv := f.motor.Kv(); kv != 0 {
		bemf = measured / (kv * sqrt3) / rpmToRads
	}

	q = t
	if r := f.motor.PhaseResistance(); r != 0 {
		q = t*r + bemf
	}
	q = clampAbs(q, limit)

	if l := f.motor.PhaseInductance(); l != 0 {
		d = -t * measured * float64(f.motor.PolePairs()) * l
	}
	d = clampAbs(d, limit)

	return q, d
}

func clampAbs(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

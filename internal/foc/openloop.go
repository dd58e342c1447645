package foc

import (
	"time"

	"github.com/kvn-sato/focsim/internal/drive"
	"github.com/kvn-sato/focsim/internal/units"
)

// OpenLoop drives the motor with no sensor feedback: the shaft angle
// is dead-reckoned by integrating the target velocity, stepper style.
// Useful with no sensor fitted or before alignment.
type OpenLoop struct {
	motor      drive.BLDC
	prevTick   time.Time
	shaftAngle float64
	velocity   units.Velocity
}

// NewOpenLoop wraps a motor for open-loop drive at the given target
// velocity.
func NewOpenLoop(motor drive.BLDC, velocity units.Velocity) *OpenLoop {
	return &OpenLoop{
		motor:    motor,
		prevTick: motor.Clock().Now(),
		velocity: velocity,
	}
}

func (o *OpenLoop) Velocity() units.Velocity {
	return o.velocity
}

func (o *OpenLoop) SetVelocity(v units.Velocity) {
	o.velocity = v
}

// AdjustVelocity shifts the target, e.g. from an encoder knob.
func (o *OpenLoop) AdjustVelocity(delta units.Velocity) {
	o.velocity = o.velocity.Add(delta)
}

// Motor exposes the wrapped motor.
func (o *OpenLoop) Motor() *drive.BLDC {
	return &o.motor
}

// ShaftAngle is the dead-reckoned continuous shaft angle.
func (o *OpenLoop) ShaftAngle() float64 {
	return o.shaftAngle
}

// Tick integrates the target velocity into the shaft angle and drives
// the corresponding electrical angle at half the voltage limit on the
// q axis.
func (o *OpenLoop) Tick() error {
	now := o.motor.Clock().Now()
	dt := now.Sub(o.prevTick).Seconds()
	limit := o.motor.VoltageLimit()

	o.shaftAngle += dt * o.velocity.RadPerSec()

	electricalAngle := o.shaftAngle * float64(o.motor.PolePairs())

	va, vb, vc := o.motor.PhaseVoltage(limit/2, 0, electricalAngle)
	if err := o.motor.Pwm().SetVoltage(va, vb, vc, limit); err != nil {
		return err
	}
	o.prevTick = now

	return nil
}

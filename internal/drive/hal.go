// Package drive holds the hardware-facing half of the motor core:
// the capability interfaces a board has to satisfy, the three-phase
// PWM output stage, and the [BLDC] aggregate with its transform math
// and alignment procedure.
//
//   - [AngleSensor]: absolute rotor angle in [0, 2π)
//   - [DutyCycle]: one PWM channel, duty in percent
//   - [Clock]: time source for sensor and alignment timing
//   - [ThreePhasePwm]: voltage triple -> three duty commits
//   - [BLDC]: motor aggregate, staged configuration then Align
package drive

import "time"

// AngleSensor reads the absolute mechanical rotor angle, normalized
// to [0, 2π). A read error is transient; the caller decides whether
// to retry on the next tick.
type AngleSensor interface {
	ReadAngle() (float64, error)
}

// DutyCycle drives a single PWM channel with a duty in [0, 100]
// percent.
type DutyCycle interface {
	SetDutyPercent(pct uint8) error
}

// Clock supplies time to the sensor state and the alignment delay.
// The simulated plant substitutes its own so alignment works without
// real elapsed time.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// WallClock is the real-time Clock.
type WallClock struct{}

func (WallClock) Now() time.Time        { return time.Now() }
func (WallClock) Sleep(d time.Duration) { time.Sleep(d) }

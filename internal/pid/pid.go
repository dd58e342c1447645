// Package pid implements the discrete PID controller used by the
// motion-control cascade.
//
// The controller is configured through a value chain and then driven
// with [Controller.Compute] once per tick:
//
//	c := pid.New().P(0.02).I(3).Ramp(1000).Limit(12)
//	out := c.Compute(target, measured, dt)
//
// Integration is trapezoidal with a direct clamp on the integral term
// (anti-windup); the output is clamped to the same limit and may be
// slew-rate limited with [Controller.Ramp].
package pid

import (
	"math"
	"time"

	"github.com/kvn-sato/focsim/internal/units"
)

// Controller is a discrete PID controller. Construct with [New] and
// configure through the P/I/D/Ramp/Limit chain before use. Compute
// requires a positive elapsed time.
type Controller struct {
	p float64
	i float64
	d float64

	// Output slew-rate limit per second, 0 means unlimited.
	ramp float64

	// Magnitude limit of output and integral.
	limit float64

	state state
}

type state struct {
	integral float64
	err      float64
	output   float64
}

func New() Controller {
	return Controller{limit: math.MaxFloat64}
}

func (c Controller) P(p float64) Controller {
	c.p = p
	return c
}

func (c Controller) I(i float64) Controller {
	c.i = i
	return c
}

func (c Controller) D(d float64) Controller {
	c.d = d
	return c
}

// Ramp bounds the change of output per second.
func (c Controller) Ramp(ramp float64) Controller {
	c.ramp = ramp
	return c
}

// Limit bounds the magnitude of both the output and the integral term.
func (c Controller) Limit(limit float64) Controller {
	c.limit = limit
	return c
}

// Compute advances the controller by one step and returns the new
// output. elapsed must be positive.
func (c *Controller) Compute(target, measured float64, elapsed time.Duration) float64 {
	dt := elapsed.Seconds()

	err := target - measured

	p := c.p * err
	i := clamp(c.state.integral+c.i*dt*0.5*(err+c.state.err), c.limit)
	d := c.d * (err - c.state.err) / dt

	output := clamp(p+i+d, c.limit)

	if c.ramp > 0 {
		rate := (output - c.state.output) / dt
		if rate > c.ramp {
			output = c.state.output + c.ramp*dt
		} else if rate < -c.ramp {
			output = c.state.output - c.ramp*dt
		}
	}

	c.state.integral = i
	c.state.err = err
	c.state.output = output

	return output
}

// Reset clears the accumulated state, keeping the gains.
func (c *Controller) Reset() {
	c.state = state{}
}

func clamp(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// VelocityController is a Controller operating on [units.Velocity].
// Conversion to scalar rad/s happens at the boundary so gains keep
// the same meaning as in the scalar controller.
type VelocityController struct {
	inner Controller
}

func NewVelocity(inner Controller) VelocityController {
	return VelocityController{inner: inner}
}

// Update applies f to the wrapped controller, preserving its state.
func (v VelocityController) Update(f func(Controller) Controller) VelocityController {
	return VelocityController{inner: f(v.inner)}
}

func (v *VelocityController) Compute(target, measured units.Velocity, elapsed time.Duration) units.Velocity {
	return units.PerSecond(v.inner.Compute(target.RadPerSec(), measured.RadPerSec(), elapsed))
}

func (v *VelocityController) Reset() {
	v.inner.Reset()
}

// Package sim orchestrates closed-loop runs of a controller against
// the simulated plant: it advances the plant and the controller in
// lockstep at a fixed tick, fans every step out to observers and
// metrics, and collects the telemetry into a [Result].
package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kvn-sato/focsim/internal/drive"
	"github.com/kvn-sato/focsim/internal/plant"
	"github.com/kvn-sato/focsim/internal/units"
)

// Controller is the common surface of foc.Foc and foc.OpenLoop.
type Controller interface {
	Tick() error
	Motor() *drive.BLDC
}

// qdReporter is implemented by controllers that expose the last
// rotor-frame voltage pair.
type qdReporter interface {
	LastQD() (q, d float64)
}

// shaftReporter is implemented by sensorless controllers that
// dead-reckon the shaft instead of feeding the sensor state.
type shaftReporter interface {
	ShaftAngle() float64
	Velocity() units.Velocity
}

// Sample is one tick of telemetry.
type Sample struct {
	T        float64 // simulated seconds since start
	Angle    float64 // bounded sensor angle
	Total    float64 // continuous shaft angle
	Velocity float64 // rad/s estimate
	Q        float64
	D        float64
	DutyA    float64
	DutyB    float64
	DutyC    float64
}

// Observer receives every sample as it is produced.
type Observer interface {
	OnStep(s Sample)
}

// Metric accumulates a scalar over a run.
type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Config struct {
	Dt       time.Duration
	Duration time.Duration
}

type Result struct {
	Samples    []Sample
	Metrics    map[string]float64
	StepsTaken int
	Err        error
}

// Runner steps a controller against the simulated plant.
type Runner struct {
	motor     *plant.Motor
	ctl       Controller
	metrics   []Metric
	observers []Observer
}

func NewRunner(motor *plant.Motor, ctl Controller) *Runner {
	return &Runner{motor: motor, ctl: ctl}
}

func (r *Runner) AddMetric(m Metric)     { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o Observer) { r.observers = append(r.observers, o) }

// Run advances the loop for the configured duration. A controller
// error stops the run and is recorded in the result; context
// cancellation stops it with the samples gathered so far.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Dt <= 0 {
		return nil, fmt.Errorf("sim: tick must be positive, got %v", cfg.Dt)
	}
	if cfg.Duration < cfg.Dt {
		return nil, fmt.Errorf("sim: duration %v shorter than tick %v", cfg.Duration, cfg.Dt)
	}

	steps := int(cfg.Duration / cfg.Dt)
	result := &Result{
		Samples: make([]Sample, 0, steps),
		Metrics: make(map[string]float64),
	}

	for _, m := range r.metrics {
		m.Reset()
	}

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			r.finish(result)
			return result, ctx.Err()
		default:
		}

		r.motor.Advance(cfg.Dt)

		if err := r.ctl.Tick(); err != nil {
			result.Err = fmt.Errorf("step %d: %w", i, err)
			break
		}
		result.StepsTaken++

		s := r.sample(float64(i+1) * cfg.Dt.Seconds())
		result.Samples = append(result.Samples, s)

		for _, m := range r.metrics {
			m.Observe(s)
		}
		for _, o := range r.observers {
			o.OnStep(s)
		}
	}

	r.finish(result)
	return result, nil
}

func (r *Runner) sample(t float64) Sample {
	a, b, c := r.motor.Duties()

	s := Sample{T: t, DutyA: a, DutyB: b, DutyC: c}

	if sr, ok := r.ctl.(shaftReporter); ok {
		s.Total = sr.ShaftAngle()
		s.Angle = boundAngle(s.Total)
		s.Velocity = sr.Velocity().RadPerSec()
	} else {
		state := r.ctl.Motor().SensorState()
		s.Angle = state.Angle()
		s.Total = state.TotalAngle()
		s.Velocity = state.Velocity().RadPerSec()
	}

	if qd, ok := r.ctl.(qdReporter); ok {
		s.Q, s.D = qd.LastQD()
	}
	return s
}

func boundAngle(a float64) float64 {
	b := math.Mod(a, 2*math.Pi)
	if b < 0 {
		b += 2 * math.Pi
	}
	return b
}

func (r *Runner) finish(result *Result) {
	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}

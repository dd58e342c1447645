// Package plant simulates a BLDC motor well enough to close the
// control loop without hardware: committed PWM duties become phase
// voltages, a first-order electrical model turns them into q-axis
// torque, and a rigid-body rotor integrates under RK4.
//
// The model implements the drive capability interfaces itself:
// [Motor.Phases] for the PWM channels, [Motor] as the angle sensor,
// [Motor.Clock] for simulated time. A [drive.BLDC] wired to it cannot
// tell it apart from a board.
package plant

import (
	"math"
	"math/rand"
	"time"

	"github.com/kvn-sato/focsim/internal/drive"
)

const twoPi = 2 * math.Pi

// Motor is an electromechanical BLDC model. State is the continuous
// mechanical angle and angular velocity; inputs are the three duty
// percentages last committed to its phases.
type Motor struct {
	PolePairs  int
	Supply     float64 // bridge supply voltage
	Resistance float64 // per-phase winding resistance, ohms
	Kt         float64 // torque constant, N·m/A
	Ke         float64 // back-EMF constant, V·s/rad
	Inertia    float64 // rotor inertia, kg·m²
	Damping    float64 // viscous damping, N·m·s/rad

	theta float64
	omega float64
	duty  [3]float64

	noise float64
	rng   *rand.Rand

	now time.Time
}

// NewMotor builds a small gimbal-class motor with plausible defaults.
func NewMotor(polePairs int) *Motor {
	return &Motor{
		PolePairs:  polePairs,
		Supply:     12,
		Resistance: 5,
		Kt:         0.1,
		Ke:         0.1,
		Inertia:    1e-4,
		Damping:    1e-3,
		now:        time.Unix(0, 0),
	}
}

// WithNoise adds uniform sensor noise of the given amplitude in
// radians, seeded for reproducible runs.
func (m *Motor) WithNoise(amplitude float64, seed int64) *Motor {
	m.noise = amplitude
	m.rng = rand.New(rand.NewSource(seed))
	return m
}

// Omega is the mechanical angular velocity in rad/s.
func (m *Motor) Omega() float64 {
	return m.omega
}

// Theta is the continuous mechanical angle in radians.
func (m *Motor) Theta() float64 {
	return m.theta
}

// derive evaluates d(theta, omega)/dt with the committed duties held.
func (m *Motor) derive(theta, omega float64) (dTheta, dOmega float64) {
	va := m.duty[0] / 100 * m.Supply
	vb := m.duty[1] / 100 * m.Supply
	vc := m.duty[2] / 100 * m.Supply

	// Strip the common mode the space-vector centering added, then
	// collapse three phases onto the stationary two-axis frame.
	mean := (va + vb + vc) / 3
	alpha := va - mean
	beta := (vb - vc) / sqrt3

	sin, cos := math.Sincos(theta * float64(m.PolePairs))
	vq := -sin*alpha + cos*beta

	iq := (vq - m.Ke*omega) / m.Resistance
	torque := m.Kt * iq

	return omega, (torque - m.Damping*omega) / m.Inertia
}

const sqrt3 = 1.7320508075688772

// Step integrates the model forward by dt seconds with a single RK4
// step.
func (m *Motor) Step(dt float64) {
	t1, w1 := m.derive(m.theta, m.omega)
	t2, w2 := m.derive(m.theta+dt*0.5*t1, m.omega+dt*0.5*w1)
	t3, w3 := m.derive(m.theta+dt*0.5*t2, m.omega+dt*0.5*w2)
	t4, w4 := m.derive(m.theta+dt*t3, m.omega+dt*w3)

	dt6 := dt / 6
	m.theta += dt6 * (t1 + 2*t2 + 2*t3 + t4)
	m.omega += dt6 * (w1 + 2*w2 + 2*w3 + w4)
}

// Advance steps the model and the simulated clock together.
func (m *Motor) Advance(dt time.Duration) {
	m.Step(dt.Seconds())
	m.now = m.now.Add(dt)
}

// ReadAngle implements [drive.AngleSensor]: the bounded mechanical
// angle, with optional noise folded back into [0, 2π).
func (m *Motor) ReadAngle() (float64, error) {
	a := math.Mod(m.theta, twoPi)
	if a < 0 {
		a += twoPi
	}
	if m.noise > 0 {
		a = math.Mod(a+m.noise*(2*m.rng.Float64()-1)+twoPi, twoPi)
	}
	return a, nil
}

// Phases returns the three PWM channels of the simulated bridge.
func (m *Motor) Phases() (a, b, c drive.DutyCycle) {
	return &phase{m, 0}, &phase{m, 1}, &phase{m, 2}
}

type phase struct {
	m   *Motor
	idx int
}

func (p *phase) SetDutyPercent(pct uint8) error {
	p.m.duty[p.idx] = float64(pct)
	return nil
}

// Clock returns the simulated clock. Sleep advances the model in 1ms
// chunks so blocking procedures like alignment play out in simulated
// time.
func (m *Motor) Clock() drive.Clock {
	return simClock{m}
}

type simClock struct {
	m *Motor
}

func (c simClock) Now() time.Time {
	return c.m.now
}

func (c simClock) Sleep(d time.Duration) {
	const chunk = time.Millisecond
	for d >= chunk {
		c.m.Advance(chunk)
		d -= chunk
	}
	if d > 0 {
		c.m.Advance(d)
	}
}

// Duties reports the last committed duty percentages.
func (m *Motor) Duties() (a, b, c float64) {
	return m.duty[0], m.duty[1], m.duty[2]
}

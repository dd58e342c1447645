package drive

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kvn-sato/focsim/internal/sensor"
	"github.com/kvn-sato/focsim/internal/units"
)

const (
	twoPi  = 2 * math.Pi
	sqrt3  = 1.7320508075688772
	sqrt32 = sqrt3 / 2

	defaultVoltageLimit  = 12.0
	defaultVoltageSupply = 12.0

	// alignSettle is how long the forcing vector is held during
	// alignment before re-reading the sensor.
	alignSettle = 700 * time.Millisecond
)

// ErrAlignFailed means the rotor did not move during the forced
// alignment pulse: miswiring, a mechanical stall, or a dead sensor.
// Continuing with an uncalibrated offset would command unsafe
// voltages, so callers must abort.
var ErrAlignFailed = errors.New("drive: rotor did not move during alignment")

// BLDC aggregates an angle sensor, the three-phase output stage and
// the motor's electrical parameters. Configuration is staged through
// the With* chain, finished by Aligned (or Align), after which the
// motor is normally handed to a controller for the rest of its life.
type BLDC struct {
	source AngleSensor
	state  sensor.State
	pwm    ThreePhasePwm
	clock  Clock

	polePairs int

	// Calibration offset between electrical and sensor zero.
	// Meaningless until aligned is set.
	zeroElectricalAngle float64
	aligned             bool

	voltageLimit  float64
	velocityLimit units.Velocity
	voltageSupply float64

	// Motor parameters. Zero means not configured, collapsing the
	// control law to pure q-axis voltage.
	kv              float64
	phaseResistance float64
	phaseInductance float64
}

// NewBLDC assembles a motor with default limits: 12V limit and
// supply, 1800 RPM velocity limit, no Kv/R/L.
func NewBLDC(polePairs int, source AngleSensor, pwm ThreePhasePwm, clock Clock) BLDC {
	return BLDC{
		source:        source,
		state:         sensor.NewStateAt(clock.Now()),
		pwm:           pwm,
		clock:         clock,
		polePairs:     polePairs,
		voltageLimit:  defaultVoltageLimit,
		velocityLimit: units.PerSecond(60 * math.Pi), // 30 RPS or 1800 RPM
		voltageSupply: defaultVoltageSupply,
	}
}

func (m BLDC) WithVoltageLimit(limit float64) BLDC {
	m.voltageLimit = limit
	return m
}

func (m BLDC) WithSupplyVoltage(supply float64) BLDC {
	m.voltageSupply = supply
	return m
}

func (m BLDC) WithVelocityLimit(limit units.Velocity) BLDC {
	m.velocityLimit = limit
	return m
}

// WithKv sets the motor velocity constant in RPM/V, enabling back-EMF
// compensation.
func (m BLDC) WithKv(kv float64) BLDC {
	m.kv = kv
	return m
}

// WithPhaseResistance sets the per-phase winding resistance in ohms.
func (m BLDC) WithPhaseResistance(r float64) BLDC {
	m.phaseResistance = r
	return m
}

// WithPhaseInductance sets the per-phase winding inductance in henry,
// enabling d-axis decoupling.
func (m BLDC) WithPhaseInductance(l float64) BLDC {
	m.phaseInductance = l
	return m
}

// WithSensor swaps the angle source, resetting the tracked state.
func (m BLDC) WithSensor(source AngleSensor) BLDC {
	m.source = source
	m.state = sensor.NewStateAt(m.clock.Now())
	return m
}

func (m *BLDC) PolePairs() int                { return m.polePairs }
func (m *BLDC) VoltageLimit() float64         { return m.voltageLimit }
func (m *BLDC) VelocityLimit() units.Velocity { return m.velocityLimit }
func (m *BLDC) SupplyVoltage() float64        { return m.voltageSupply }
func (m *BLDC) Kv() float64                   { return m.kv }
func (m *BLDC) PhaseResistance() float64      { return m.phaseResistance }
func (m *BLDC) PhaseInductance() float64      { return m.phaseInductance }
func (m *BLDC) SensorState() *sensor.State    { return &m.state }
func (m *BLDC) Pwm() *ThreePhasePwm           { return &m.pwm }
func (m *BLDC) Clock() Clock                  { return m.clock }

// UpdateSensor reads the angle source once and folds the reading into
// the continuous sensor state.
func (m *BLDC) UpdateSensor() error {
	angle, err := m.source.ReadAngle()
	if err != nil {
		return fmt.Errorf("drive: sensor read: %w", err)
	}
	m.state.Record(angle, m.clock.Now())
	return nil
}

// ElectricalAngle derives the electrical angle from the latest sensor
// state. Call UpdateSensor first for an up-to-date value.
func (m *BLDC) ElectricalAngle() float64 {
	offset := 0.0
	if m.aligned {
		offset = m.zeroElectricalAngle
	}
	return normalizeAngle(m.state.Angle()*float64(m.polePairs) - offset)
}

// PhaseVoltage turns a rotor-frame (q, d) voltage pair at the given
// electrical angle into three phase voltages: inverse Park into the
// stationary frame, two-to-three-phase expansion, then space-vector
// centering so the triple sits mid-supply with maximum linear range.
func (m *BLDC) PhaseVoltage(voltQ, voltD, angle float64) (float64, float64, float64) {
	sin, cos := math.Sincos(angle)
	alpha := cos*voltD - sin*voltQ
	beta := sin*voltD + cos*voltQ

	a := alpha
	b := -0.5*alpha + sqrt32*beta
	c := -0.5*alpha - sqrt32*beta

	min := math.Min(a, math.Min(b, c))
	max := math.Max(a, math.Max(b, c))

	center := m.voltageSupply/2 - (max+min)/2

	return a + center, b + center, c + center
}

// Align discovers the electrical-to-mechanical calibration offset by
// holding a half-supply voltage vector at a fixed reference angle for
// 700ms, forcing the rotor onto a known electrical position. The
// electrical angle must change across the pulse; an unchanged angle
// is fatal. Blocks for the settle time, so never call it from inside
// the steady-state control loop.
func (m *BLDC) Align() error {
	if err := m.UpdateSensor(); err != nil {
		return err
	}
	before := m.ElectricalAngle()

	va, vb, vc := m.PhaseVoltage(m.voltageSupply/2, 0, 1.5*math.Pi)
	if err := m.pwm.SetVoltage(va, vb, vc, m.voltageSupply); err != nil {
		return fmt.Errorf("drive: alignment pulse: %w", err)
	}
	m.clock.Sleep(alignSettle)

	m.aligned = false
	if err := m.UpdateSensor(); err != nil {
		return err
	}

	if m.ElectricalAngle() == before {
		return ErrAlignFailed
	}
	m.zeroElectricalAngle = m.ElectricalAngle()
	m.aligned = true

	// The forcing pulse spun the rotor; its rotations and velocity
	// must not leak into control.
	m.state.Reset()

	return nil
}

// Aligned runs Align and returns the calibrated motor.
func (m BLDC) Aligned() (BLDC, error) {
	if err := m.Align(); err != nil {
		return m, err
	}
	return m, nil
}

// IsAligned reports whether the calibration offset has been set.
func (m *BLDC) IsAligned() bool {
	return m.aligned
}

func normalizeAngle(angle float64) float64 {
	a := math.Mod(angle, twoPi)
	if a < 0 {
		return a + twoPi
	}
	return a
}

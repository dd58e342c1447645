package drive

import (
	"errors"
	"math"
	"testing"
	"time"
)

// scriptedSensor replays a fixed sequence of angle readings.
type scriptedSensor struct {
	angles []float64
	idx    int
	err    error
}

func (s *scriptedSensor) ReadAngle() (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	a := s.angles[s.idx]
	if s.idx < len(s.angles)-1 {
		s.idx++
	}
	return a, nil
}

// testClock advances a fixed amount per Now call and jumps on Sleep.
type testClock struct {
	now  time.Time
	tick time.Duration
}

func (c *testClock) Now() time.Time {
	c.now = c.now.Add(c.tick)
	return c.now
}

func (c *testClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
}

func testMotor(src AngleSensor) BLDC {
	pwm := ThreePhasePwm{A: &fakeChannel{}, B: &fakeChannel{}, C: &fakeChannel{}}
	return NewBLDC(7, src, pwm, &testClock{tick: time.Millisecond})
}

func TestElectricalAngleNormalized(t *testing.T) {
	m := testMotor(&scriptedSensor{angles: []float64{5.0}})
	if err := m.UpdateSensor(); err != nil {
		t.Fatal(err)
	}

	// 5.0 * 7 = 35 rad, normalized into [0, 2π).
	got := m.ElectricalAngle()
	want := math.Mod(35.0, 2*math.Pi)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("electrical angle: got %v, want %v", got, want)
	}
	if got < 0 || got >= 2*math.Pi {
		t.Errorf("electrical angle out of range: %v", got)
	}
}

func TestPhaseVoltageRoundTrip(t *testing.T) {
	m := testMotor(&scriptedSensor{angles: []float64{0}})

	q, d := 3.0, 1.0
	for i := 0; i < 16; i++ {
		angle := float64(i) * 2 * math.Pi / 16

		va, vb, vc := m.PhaseVoltage(q, d, angle)

		// Undo the space-vector centering: the common-mode shift is
		// whatever moved phase a away from pure alpha.
		alpha := va - (va+vb+vc)/3
		beta := (vb - vc) / sqrt3

		sin, cos := math.Sincos(angle)
		gotD := cos*alpha + sin*beta
		gotQ := -sin*alpha + cos*beta

		if math.Abs(gotQ-q) > 1e-9 || math.Abs(gotD-d) > 1e-9 {
			t.Errorf("angle %v: recovered (q=%v, d=%v), want (%v, %v)", angle, gotQ, gotD, q, d)
		}
	}
}

func TestPhaseVoltageCentering(t *testing.T) {
	m := testMotor(&scriptedSensor{angles: []float64{0}}).WithSupplyVoltage(12)

	va, vb, vc := m.PhaseVoltage(4, 0, 1.0)

	min := math.Min(va, math.Min(vb, vc))
	max := math.Max(va, math.Max(vb, vc))

	// After centering the envelope is symmetric around supply/2.
	if math.Abs((max+min)/2-6.0) > 1e-9 {
		t.Errorf("envelope midpoint: got %v, want 6", (max+min)/2)
	}
}

func TestAlignSetsOffsetAndResets(t *testing.T) {
	// Rotor moves during the pulse: second reading differs.
	src := &scriptedSensor{angles: []float64{1.0, 2.0}}
	m := testMotor(src)

	if err := m.Align(); err != nil {
		t.Fatalf("align: %v", err)
	}
	if !m.IsAligned() {
		t.Fatal("motor should report aligned")
	}

	// Post-pulse electrical angle became the offset, so the current
	// electrical angle reads zero.
	if got := m.ElectricalAngle(); math.Abs(got) > 1e-12 && math.Abs(got-2*math.Pi) > 1e-12 {
		t.Errorf("electrical angle after align: got %v, want 0", got)
	}

	st := m.SensorState()
	if st.Revolutions() != 0 || st.Velocity() != 0 {
		t.Errorf("sensor state not reset: rev=%d vel=%v", st.Revolutions(), st.Velocity())
	}
}

func TestAlignFailsWhenRotorStuck(t *testing.T) {
	src := &scriptedSensor{angles: []float64{1.0, 1.0}}
	m := testMotor(src)

	if err := m.Align(); !errors.Is(err, ErrAlignFailed) {
		t.Fatalf("expected ErrAlignFailed, got %v", err)
	}
	if m.IsAligned() {
		t.Error("failed alignment must not mark the motor aligned")
	}
}

func TestAlignPropagatesSensorError(t *testing.T) {
	readErr := errors.New("bus stuck")
	m := testMotor(&scriptedSensor{err: readErr})

	if err := m.Align(); !errors.Is(err, readErr) {
		t.Fatalf("expected sensor error, got %v", err)
	}
}

func TestStagedConfiguration(t *testing.T) {
	m := testMotor(&scriptedSensor{angles: []float64{0}}).
		WithVoltageLimit(6).
		WithSupplyVoltage(24).
		WithKv(120).
		WithPhaseResistance(0.5).
		WithPhaseInductance(0.001)

	if m.VoltageLimit() != 6 || m.SupplyVoltage() != 24 {
		t.Errorf("limits: %v/%v", m.VoltageLimit(), m.SupplyVoltage())
	}
	if m.Kv() != 120 || m.PhaseResistance() != 0.5 || m.PhaseInductance() != 0.001 {
		t.Errorf("motor params: %v/%v/%v", m.Kv(), m.PhaseResistance(), m.PhaseInductance())
	}
}

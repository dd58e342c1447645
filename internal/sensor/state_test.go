package sensor

import (
	"math"
	"testing"
	"time"
)

func record(s *State, t0 time.Time, dt time.Duration, angles []float64) time.Time {
	now := t0
	for _, a := range angles {
		now = now.Add(dt)
		s.Record(a, now)
	}
	return now
}

func TestWraparoundClockwise(t *testing.T) {
	s := NewState()
	t0 := time.Unix(0, 0)

	// 0.1 -> 6.2 rad is a small clockwise step across the 0/2π
	// boundary, not a +6.1 rad jump.
	record(&s, t0, time.Millisecond, []float64{0.1, 6.2})

	if s.Revolutions() != -1 {
		t.Fatalf("revolutions: got %d, want -1", s.Revolutions())
	}

	total := s.TotalAngle()
	want := 6.2 - 2*math.Pi
	if math.Abs(total-want) > 1e-9 {
		t.Errorf("total angle: got %v, want %v", total, want)
	}
	if total > 0.1 {
		t.Errorf("continuous angle should decrease across the boundary, got %v", total)
	}
}

func TestWraparoundCounterClockwise(t *testing.T) {
	s := NewState()
	t0 := time.Unix(0, 0)

	// Walk up in sub-threshold steps first; 6.0 -> 0.1 is then a small
	// counter-clockwise step across the 0/2π boundary.
	record(&s, t0, time.Millisecond, []float64{2.0, 4.0, 6.0, 0.1})

	if s.Revolutions() != 1 {
		t.Fatalf("revolutions: got %d, want 1", s.Revolutions())
	}
	want := 2*math.Pi + 0.1
	if math.Abs(s.TotalAngle()-want) > 1e-9 {
		t.Errorf("total angle: got %v, want %v", s.TotalAngle(), want)
	}
}

func TestRevolutionPerFullRotation(t *testing.T) {
	s := NewState()
	t0 := time.Unix(0, 0)
	now := t0

	// Three full counter-clockwise revolutions in 0.1 rad steps.
	steps := 63 // per revolution, ~0.0997 rad each
	for rev := 0; rev < 3; rev++ {
		for i := 0; i < steps; i++ {
			a := math.Mod(float64(i)*2*math.Pi/float64(steps), 2*math.Pi)
			now = now.Add(time.Millisecond)
			s.Record(a, now)
		}
	}
	now = now.Add(time.Millisecond)
	s.Record(0, now)

	if s.Revolutions() != 3 {
		t.Errorf("revolutions after 3 turns: got %d, want 3", s.Revolutions())
	}
}

func TestNoSpuriousRevolutions(t *testing.T) {
	s := NewState()
	t0 := time.Unix(0, 0)

	// Oscillation well below the wrap threshold.
	record(&s, t0, time.Millisecond, []float64{1.0, 2.5, 1.0, 2.5, 1.0})

	if s.Revolutions() != 0 {
		t.Errorf("revolutions: got %d, want 0", s.Revolutions())
	}
}

func TestContinuousAngleInvariant(t *testing.T) {
	s := NewState()
	t0 := time.Unix(0, 0)
	now := t0

	angles := []float64{0.5, 2.0, 4.0, 6.0, 0.3, 1.5, 6.1, 4.9}
	for _, a := range angles {
		now = now.Add(2 * time.Millisecond)
		s.Record(a, now)

		want := float64(s.Revolutions())*2*math.Pi + s.Angle()
		if math.Abs(s.TotalAngle()-want) > 1e-12 {
			t.Fatalf("invariant broken at angle %v: total %v, want %v", a, s.TotalAngle(), want)
		}
	}
}

func TestVelocityUsesPreviousInterval(t *testing.T) {
	s := NewState()
	t0 := time.Unix(0, 0)

	s.Record(0.0, t0.Add(10*time.Millisecond))
	s.Record(0.1, t0.Add(20*time.Millisecond)) // interval now 10ms
	s.Record(0.3, t0.Add(40*time.Millisecond))

	// The 0.2 rad step is divided by the interval recorded one tick
	// earlier (10ms), not the 20ms that actually elapsed.
	got := s.Velocity().RadPerSec()
	if math.Abs(got-20.0) > 1e-9 {
		t.Errorf("velocity: got %v, want 20 rad/s", got)
	}

	if s.LastDt() != 20*time.Millisecond {
		t.Errorf("LastDt: got %v, want 20ms", s.LastDt())
	}
}

func TestReset(t *testing.T) {
	s := NewState()
	t0 := time.Unix(0, 0)

	record(&s, t0, time.Millisecond, []float64{6.2, 0.1, 0.5})
	s.Reset()

	if s.Revolutions() != 0 {
		t.Errorf("revolutions after reset: got %d", s.Revolutions())
	}
	if s.Velocity() != 0 {
		t.Errorf("velocity after reset: got %v", s.Velocity())
	}
	if s.Angle() != 0.5 {
		t.Errorf("bounded angle should survive reset: got %v", s.Angle())
	}
}

package units

import (
	"math"
	"testing"
	"time"
)

func TestConstructorsAgree(t *testing.T) {
	cases := []struct {
		name string
		got  Velocity
		want float64
	}{
		{"per_second", PerSecond(3.5), 3.5},
		{"per_millisecond", PerMillisecond(0.002), 2.0},
		{"per_microsecond", PerMicrosecond(2e-6), 2.0},
		{"per_duration", Per(math.Pi, 500*time.Millisecond), 2 * math.Pi},
		{"degrees", DegreesPerSecond(180), math.Pi},
		{"rpm", RPM, math.Pi / 30},
		{"rps", RPS, 2 * math.Pi},
	}

	for _, c := range cases {
		if math.Abs(c.got.RadPerSec()-c.want) > 1e-12 {
			t.Errorf("%s: got %v, want %v rad/s", c.name, c.got.RadPerSec(), c.want)
		}
	}
}

func TestTimeBaseAccessors(t *testing.T) {
	v := PerSecond(1000)
	if v.RadPerMilli() != 1.0 {
		t.Errorf("RadPerMilli: got %v, want 1", v.RadPerMilli())
	}
	if v.RadPerMicro() != 1e-3 {
		t.Errorf("RadPerMicro: got %v, want 1e-3", v.RadPerMicro())
	}
}

func TestArithmeticPreservesUnit(t *testing.T) {
	a := PerSecond(4)
	b := PerSecond(1.5)

	if got := a.Add(b).RadPerSec(); got != 5.5 {
		t.Errorf("Add: got %v", got)
	}
	if got := a.Sub(b).RadPerSec(); got != 2.5 {
		t.Errorf("Sub: got %v", got)
	}
	if got := a.Neg().RadPerSec(); got != -4 {
		t.Errorf("Neg: got %v", got)
	}
	if got := a.Scale(0.5).RadPerSec(); got != 2 {
		t.Errorf("Scale: got %v", got)
	}
	if got := a.Div(2).RadPerSec(); got != 2 {
		t.Errorf("Div: got %v", got)
	}
}

func TestClamp(t *testing.T) {
	lim := PerSecond(10)

	if got := PerSecond(25).Clamp(lim.Neg(), lim); got != lim {
		t.Errorf("clamp high: got %v", got)
	}
	if got := PerSecond(-25).Clamp(lim.Neg(), lim); got != lim.Neg() {
		t.Errorf("clamp low: got %v", got)
	}
	if got := PerSecond(3).Clamp(lim.Neg(), lim); got.RadPerSec() != 3 {
		t.Errorf("clamp inside: got %v", got)
	}
}

func TestString(t *testing.T) {
	if s := PerSecond(3.14159).String(); s != "3.14rad/s" {
		t.Errorf("String: got %q", s)
	}
}

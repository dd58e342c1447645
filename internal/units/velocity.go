package units

import (
	"fmt"
	"math"
	"time"
)

// Velocity is an angular velocity. The underlying value is radians
// per second; constructors and accessors convert at the boundary so
// callers never mix time bases by accident.
type Velocity float64

const (
	Zero Velocity = 0

	// RPM is one revolution per minute.
	RPM Velocity = math.Pi / 30

	// RPS is one revolution (2π rad) per second.
	RPS Velocity = 2 * math.Pi
)

func PerSecond(rad float64) Velocity {
	return Velocity(rad)
}

func PerMillisecond(rad float64) Velocity {
	return Velocity(rad * 1e3)
}

func PerMicrosecond(rad float64) Velocity {
	return Velocity(rad * 1e6)
}

// Per returns the velocity covering rad radians in d.
func Per(rad float64, d time.Duration) Velocity {
	return Velocity(rad / d.Seconds())
}

// DegreesPerSecond converts from degrees per second.
func DegreesPerSecond(deg float64) Velocity {
	return Velocity(deg * math.Pi / 180)
}

func (v Velocity) RadPerSec() float64 {
	return float64(v)
}

func (v Velocity) RadPerMilli() float64 {
	return float64(v) * 1e-3
}

func (v Velocity) RadPerMicro() float64 {
	return float64(v) * 1e-6
}

func (v Velocity) Add(o Velocity) Velocity {
	return v + o
}

func (v Velocity) Sub(o Velocity) Velocity {
	return v - o
}

func (v Velocity) Neg() Velocity {
	return -v
}

func (v Velocity) Scale(f float64) Velocity {
	return Velocity(float64(v) * f)
}

func (v Velocity) Div(f float64) Velocity {
	return Velocity(float64(v) / f)
}

func (v Velocity) Clamp(min, max Velocity) Velocity {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func (v Velocity) Abs() Velocity {
	return Velocity(math.Abs(float64(v)))
}

func (v Velocity) String() string {
	return fmt.Sprintf("%.2frad/s", float64(v))
}

package metrics

import (
	"math"

	"github.com/kvn-sato/focsim/internal/sim"
)

// TrackingError is the RMS deviation of the measured velocity from a
// constant target.
type TrackingError struct {
	target  float64
	sumSq   float64
	samples int
}

func NewTrackingError(target float64) *TrackingError {
	return &TrackingError{target: target}
}

func (t *TrackingError) Name() string {
	return "tracking_error_rms"
}

func (t *TrackingError) Observe(s sim.Sample) {
	e := s.Velocity - t.target
	t.sumSq += e * e
	t.samples++
}

func (t *TrackingError) Value() float64 {
	if t.samples == 0 {
		return 0
	}
	return math.Sqrt(t.sumSq / float64(t.samples))
}

func (t *TrackingError) Reset() {
	t.sumSq = 0
	t.samples = 0
}

// SettlingTime records when the velocity last left a band around the
// target: everything after that point stayed settled.
type SettlingTime struct {
	target      float64
	band        float64
	lastOutside float64
}

func NewSettlingTime(target, band float64) *SettlingTime {
	return &SettlingTime{target: target, band: band}
}

func (s *SettlingTime) Name() string {
	return "settling_time"
}

func (s *SettlingTime) Observe(smp sim.Sample) {
	if math.Abs(smp.Velocity-s.target) > s.band {
		s.lastOutside = smp.T
	}
}

func (s *SettlingTime) Value() float64 {
	return s.lastOutside
}

func (s *SettlingTime) Reset() {
	s.lastOutside = 0
}

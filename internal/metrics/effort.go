package metrics

import (
	"math"

	"github.com/kvn-sato/focsim/internal/sim"
)

// ControlEffort averages the commanded rotor-frame voltage magnitude
// over a run.
type ControlEffort struct {
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{}
}

func (c *ControlEffort) Name() string {
	return "control_effort"
}

func (c *ControlEffort) Observe(s sim.Sample) {
	c.sum += math.Abs(s.Q) + math.Abs(s.D)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

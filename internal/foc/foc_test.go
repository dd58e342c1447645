package foc_test

import (
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kvn-sato/focsim/internal/drive"
	"github.com/kvn-sato/focsim/internal/foc"
	"github.com/kvn-sato/focsim/internal/units"
)

type stubSensor struct {
	angle float64
	err   error
}

func (s *stubSensor) ReadAngle() (float64, error) {
	return s.angle, s.err
}

type recordChannel struct {
	history []uint8
	err     error
}

func (c *recordChannel) SetDutyPercent(pct uint8) error {
	if c.err != nil {
		return c.err
	}
	c.history = append(c.history, pct)
	return nil
}

type stepClock struct {
	now  time.Time
	tick time.Duration
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(c.tick)
	return c.now
}

func (c *stepClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
}

type rig struct {
	sensor  *stubSensor
	a, b, c *recordChannel
	ctl     *foc.Foc
}

func newRig(polePairs int) *rig {
	r := &rig{
		sensor: &stubSensor{},
		a:      &recordChannel{},
		b:      &recordChannel{},
		c:      &recordChannel{},
	}
	motor := drive.NewBLDC(polePairs,
		r.sensor,
		drive.ThreePhasePwm{A: r.a, B: r.b, C: r.c},
		&stepClock{tick: time.Millisecond},
	)
	r.ctl = foc.New(motor)
	return r
}

func (r *rig) commits() int {
	return len(r.a.history)
}

var _ = Describe("Foc", func() {
	Describe("angle mode", func() {
		It("holds still inside the dead-band", func() {
			r := newRig(7)
			r.sensor.angle = math.Pi/2 - 0.01
			r.ctl.ToAngle(math.Pi / 2)

			Expect(r.ctl.Tick()).To(Succeed())
			Expect(r.commits()).To(BeZero(), "phase voltages must stay untouched")
		})

		It("drives toward the target outside the dead-band", func() {
			r := newRig(7)
			r.sensor.angle = 1.0
			r.ctl.ToAngle(2.0)

			Expect(r.ctl.Tick()).To(Succeed())
			Expect(r.commits()).To(Equal(1))
			Expect(r.b.history).To(HaveLen(1))
			Expect(r.c.history).To(HaveLen(1))
		})
	})

	Describe("ratchet mode", func() {
		It("snaps to the nearest detent", func() {
			ratchet := foc.NewRatchet(4)
			Expect(ratchet.RadPerStep).To(BeNumerically("~", math.Pi/2, 1e-12))
			Expect(ratchet.Nearest(0.1)).To(BeZero())
			Expect(ratchet.Nearest(0.9)).To(BeNumerically("~", math.Pi/2, 1e-12))
			Expect(ratchet.Nearest(-0.9)).To(BeNumerically("~", -math.Pi/2, 1e-12))
		})

		It("is passive at a detent and active off one", func() {
			r := newRig(7)
			r.sensor.angle = 0.005 // inside the 1e-2 band around detent 0
			r.ctl.ToRatchet(4)

			Expect(r.ctl.Tick()).To(Succeed())
			Expect(r.commits()).To(BeZero())

			r.sensor.angle = 0.4 // well off the detent
			Expect(r.ctl.Tick()).To(Succeed())
			Expect(r.commits()).To(Equal(1))
		})
	})

	Describe("torque mode", func() {
		It("feeds the request straight into the voltage law", func() {
			r := newRig(7)
			r.ctl.ToTorque(5)

			Expect(r.ctl.Tick()).To(Succeed())

			q, d := r.ctl.LastQD()
			Expect(q).To(Equal(5.0))
			Expect(d).To(BeZero())
		})

		It("clamps the request to the voltage limit", func() {
			r := newRig(7)
			*r.ctl.Motor() = r.ctl.Motor().WithVoltageLimit(3)
			r.ctl.ToTorque(5)

			Expect(r.ctl.Tick()).To(Succeed())

			q, _ := r.ctl.LastQD()
			Expect(q).To(Equal(3.0))
		})
	})

	Describe("position limit mode", func() {
		It("stays passive inside the band", func() {
			r := newRig(7)
			r.sensor.angle = 1.0
			Expect(r.ctl.ToLimitPos(0.5, 2.0)).To(Succeed())

			Expect(r.ctl.Tick()).To(Succeed())
			Expect(r.commits()).To(BeZero())
		})

		It("pulls back toward the nearest bound outside the band", func() {
			r := newRig(7)
			r.sensor.angle = 3.0
			Expect(r.ctl.ToLimitPos(0.5, 2.0)).To(Succeed())

			Expect(r.ctl.Tick()).To(Succeed())
			Expect(r.commits()).To(Equal(1))
		})

		It("rejects an inverted band", func() {
			r := newRig(7)
			Expect(r.ctl.ToLimitPos(2.0, 0.5)).NotTo(Succeed())
		})
	})

	Describe("velocity mode", func() {
		It("commits a tick on every call", func() {
			r := newRig(7)
			r.ctl.ToVelocity(units.PerSecond(5))

			for i := 0; i < 3; i++ {
				r.sensor.angle += 0.01
				Expect(r.ctl.Tick()).To(Succeed())
			}
			Expect(r.commits()).To(Equal(3))
		})
	})

	Describe("mode changes", func() {
		It("take effect on the next tick", func() {
			r := newRig(7)
			r.sensor.angle = 1.0
			r.ctl.ToVelocity(units.PerSecond(5))
			Expect(r.ctl.Tick()).To(Succeed())
			Expect(r.commits()).To(Equal(1))

			// Angle mode with the shaft already on target: dead-band.
			r.ctl.ToAngle(1.0)
			Expect(r.ctl.Tick()).To(Succeed())
			Expect(r.commits()).To(Equal(1))
		})
	})

	Describe("failure handling", func() {
		It("aborts the tick on a sensor error", func() {
			r := newRig(7)
			r.sensor.err = errors.New("bus timeout")
			r.ctl.ToVelocity(units.PerSecond(5))

			Expect(r.ctl.Tick()).NotTo(Succeed())
			Expect(r.commits()).To(BeZero())
		})

		It("propagates a PWM error without rolling back", func() {
			r := newRig(7)
			chanErr := errors.New("channel b dead")
			r.b.err = chanErr
			r.ctl.ToVelocity(units.PerSecond(5))

			err := r.ctl.Tick()
			Expect(errors.Is(err, chanErr)).To(BeTrue())
			Expect(r.a.history).To(HaveLen(1), "committed channel stays committed")
			Expect(r.c.history).To(BeEmpty())
		})
	})

	Describe("calculateQD with motor parameters", func() {
		It("applies the resistive law and d-axis decoupling", func() {
			r := newRig(7)
			*r.ctl.Motor() = r.ctl.Motor().
				WithVoltageLimit(100).
				WithPhaseResistance(2).
				WithPhaseInductance(0.001)
			r.ctl.ToTorque(5)

			// Settle the velocity estimate near zero first.
			r.sensor.angle = 1.0
			Expect(r.ctl.Tick()).To(Succeed())
			Expect(r.ctl.Tick()).To(Succeed())

			q, d := r.ctl.LastQD()
			// Stationary rotor: q = target*R, d ~ 0.
			Expect(q).To(BeNumerically("~", 10.0, 1e-9))
			Expect(d).To(BeNumerically("~", 0.0, 1e-9))
		})
	})
})

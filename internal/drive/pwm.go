package drive

// ThreePhasePwm maps three phase voltages onto three independent
// duty-cycle channels.
type ThreePhasePwm struct {
	A DutyCycle
	B DutyCycle
	C DutyCycle
}

// voltToPercent converts a phase voltage to a duty percentage against
// the supply ceiling, clamped to [0, 100]. The fraction truncates.
func voltToPercent(volt, voltMax float64) uint8 {
	pct := volt * 100 / voltMax
	if pct <= 0 {
		return 0
	}
	if pct >= 100 {
		return 100
	}
	return uint8(pct)
}

// SetVoltage commits the three phase voltages as duty cycles, A then
// B then C. The first failing channel aborts the commit; channels
// already written are left as they are. Rolling back would need a
// read-modify path the hardware does not offer.
func (p *ThreePhasePwm) SetVoltage(va, vb, vc, voltMax float64) error {
	return p.SetDuty(
		voltToPercent(va, voltMax),
		voltToPercent(vb, voltMax),
		voltToPercent(vc, voltMax),
	)
}

// SetDuty commits raw duty percentages in channel order.
func (p *ThreePhasePwm) SetDuty(a, b, c uint8) error {
	if err := p.A.SetDutyPercent(a); err != nil {
		return err
	}
	if err := p.B.SetDutyPercent(b); err != nil {
		return err
	}
	return p.C.SetDutyPercent(c)
}

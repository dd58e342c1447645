package config

// Presets are ready-made motor/mode combinations. The gimbal profiles
// match a small 7-pole-pair gimbal motor, the drive profiles a larger
// outrunner with known electrical parameters.
var Presets = map[string]*Config{
	"gimbal-velocity": {
		Motor: MotorConfig{PolePairs: 7, SupplyVoltage: 12, VoltageLimit: 12, VelocityLimit: 188.5},
		Pid: PidConfig{
			Velocity: GainsConfig{Kp: 0.02, Ki: 3, Ramp: 1000, Limit: 12},
			Angle:    GainsConfig{Kp: 10, Limit: 10},
		},
		Mode:  ModeConfig{Name: "velocity", Target: 10},
		Run:   RunConfig{Dt: 0.001, Duration: 5, Align: true},
		Plant: PlantConfig{Resistance: 5, Kt: 0.1, Ke: 0.1, Inertia: 1e-4, Damping: 1e-3},
	},
	"gimbal-ratchet": {
		Motor: MotorConfig{PolePairs: 7, SupplyVoltage: 12, VoltageLimit: 12, VelocityLimit: 62.8},
		Pid: PidConfig{
			Velocity: GainsConfig{Kp: 0.02, Ki: 3, Ramp: 1000, Limit: 12},
			Angle:    GainsConfig{Kp: 10, Limit: 10},
		},
		Mode:  ModeConfig{Name: "ratchet", Steps: 12},
		Run:   RunConfig{Dt: 0.001, Duration: 3, Align: true},
		Plant: PlantConfig{Resistance: 5, Kt: 0.1, Ke: 0.1, Inertia: 1e-4, Damping: 1e-3},
	},
	"drive-velocity": {
		Motor: MotorConfig{
			PolePairs: 11, SupplyVoltage: 24, VoltageLimit: 20, VelocityLimit: 314,
			Kv: 140, Resistance: 0.2, Inductance: 0.0001,
		},
		Pid: PidConfig{
			Velocity: GainsConfig{Kp: 0.05, Ki: 5, Ramp: 2000, Limit: 20},
			Angle:    GainsConfig{Kp: 10, Limit: 10},
		},
		Mode:  ModeConfig{Name: "velocity", Target: 50},
		Run:   RunConfig{Dt: 0.0005, Duration: 5, Align: true},
		Plant: PlantConfig{Resistance: 0.2, Kt: 0.07, Ke: 0.07, Inertia: 5e-4, Damping: 2e-3},
	},
	"angle-hold": {
		Motor: MotorConfig{PolePairs: 7, SupplyVoltage: 12, VoltageLimit: 12, VelocityLimit: 188.5},
		Pid: PidConfig{
			Velocity: GainsConfig{Kp: 0.02, Ki: 3, Ramp: 1000, Limit: 12},
			Angle:    GainsConfig{Kp: 10, Limit: 10},
		},
		Mode:  ModeConfig{Name: "angle", Target: 1.5708},
		Run:   RunConfig{Dt: 0.001, Duration: 4, Align: true},
		Plant: PlantConfig{Resistance: 5, Kt: 0.1, Ke: 0.1, Inertia: 1e-4, Damping: 1e-3},
	},
}

func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDt        = 0.001
	DefaultDuration  = 5.0
	DefaultPolePairs = 7
	DefaultSupply    = 12.0
	DefaultVoltLimit = 12.0
	DefaultVelLimit  = 188.5 // 60π rad/s, 1800 RPM
)

type Config struct {
	Motor MotorConfig `yaml:"motor"`
	Pid   PidConfig   `yaml:"pid"`
	Mode  ModeConfig  `yaml:"mode"`
	Run   RunConfig   `yaml:"run"`
	Plant PlantConfig `yaml:"plant"`
}

type MotorConfig struct {
	PolePairs     int     `yaml:"pole_pairs"`
	SupplyVoltage float64 `yaml:"supply_voltage"`
	VoltageLimit  float64 `yaml:"voltage_limit"`
	VelocityLimit float64 `yaml:"velocity_limit"`
	Kv            float64 `yaml:"kv"`
	Resistance    float64 `yaml:"resistance"`
	Inductance    float64 `yaml:"inductance"`
}

type PidConfig struct {
	Velocity GainsConfig `yaml:"velocity"`
	Angle    GainsConfig `yaml:"angle"`
}

type GainsConfig struct {
	Kp    float64 `yaml:"kp"`
	Ki    float64 `yaml:"ki"`
	Kd    float64 `yaml:"kd"`
	Ramp  float64 `yaml:"ramp"`
	Limit float64 `yaml:"limit"`
}

type ModeConfig struct {
	Name   string  `yaml:"name"` // velocity, angle, torque, ratchet, limitpos
	Target float64 `yaml:"target"`
	Steps  int     `yaml:"steps"`
	Low    float64 `yaml:"low"`
	High   float64 `yaml:"high"`
}

type RunConfig struct {
	Dt       float64 `yaml:"dt"`
	Duration float64 `yaml:"duration"`
	Seed     int64   `yaml:"seed"`
	Align    bool    `yaml:"align"`
}

type PlantConfig struct {
	Resistance  float64 `yaml:"resistance"`
	Kt          float64 `yaml:"kt"`
	Ke          float64 `yaml:"ke"`
	Inertia     float64 `yaml:"inertia"`
	Damping     float64 `yaml:"damping"`
	SensorNoise float64 `yaml:"sensor_noise"`
}

func DefaultConfig() *Config {
	return &Config{
		Motor: MotorConfig{
			PolePairs:     DefaultPolePairs,
			SupplyVoltage: DefaultSupply,
			VoltageLimit:  DefaultVoltLimit,
			VelocityLimit: DefaultVelLimit,
		},
		Pid: PidConfig{
			Velocity: GainsConfig{Kp: 0.02, Ki: 3, Ramp: 1000, Limit: 12},
			Angle:    GainsConfig{Kp: 10, Limit: 10},
		},
		Mode: ModeConfig{
			Name:   "velocity",
			Target: 5.0,
			Steps:  12,
		},
		Run: RunConfig{
			Dt:       DefaultDt,
			Duration: DefaultDuration,
			Align:    true,
		},
		Plant: PlantConfig{
			Resistance: 5,
			Kt:         0.1,
			Ke:         0.1,
			Inertia:    1e-4,
			Damping:    1e-3,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate catches configurations the control core would reject.
func (c *Config) Validate() error {
	if c.Motor.PolePairs <= 0 {
		return fmt.Errorf("config: pole_pairs must be positive, got %d", c.Motor.PolePairs)
	}
	if c.Motor.SupplyVoltage <= 0 {
		return fmt.Errorf("config: supply_voltage must be positive, got %v", c.Motor.SupplyVoltage)
	}
	if c.Run.Dt <= 0 {
		return fmt.Errorf("config: run dt must be positive, got %v", c.Run.Dt)
	}
	switch c.Mode.Name {
	case "velocity", "angle", "torque":
	case "ratchet":
		if c.Mode.Steps <= 0 {
			return fmt.Errorf("config: ratchet steps must be positive, got %d", c.Mode.Steps)
		}
	case "limitpos":
		if c.Mode.Low >= c.Mode.High {
			return fmt.Errorf("config: limitpos low %v must be below high %v", c.Mode.Low, c.Mode.High)
		}
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode.Name)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kvn-sato/focsim/internal/config"
	"github.com/kvn-sato/focsim/internal/drive"
	"github.com/kvn-sato/focsim/internal/foc"
	"github.com/kvn-sato/focsim/internal/metrics"
	"github.com/kvn-sato/focsim/internal/pid"
	"github.com/kvn-sato/focsim/internal/plant"
	"github.com/kvn-sato/focsim/internal/sim"
	"github.com/kvn-sato/focsim/internal/storage"
	"github.com/kvn-sato/focsim/internal/units"
	"github.com/kvn-sato/focsim/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string

	mode     string
	target   float64
	steps    int
	limLow   float64
	limHigh  float64
	dt       float64
	duration float64
	seed     int64
	noise    float64
	noAlign  bool

	polePairs  int
	supply     float64
	voltLimit  float64
	velLimit   float64
	kv         float64
	resistance float64
	inductance float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "focsim",
		Short: "field-oriented motor control lab",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".focsim", "data directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a closed-loop simulation",
		RunE:  runSimulation,
	}
	addLoopFlags(runCmd)

	openLoopCmd := &cobra.Command{
		Use:   "openloop",
		Short: "run sensorless open-loop drive",
		RunE:  runOpenLoop,
	}
	openLoopCmd.Flags().Float64Var(&target, "velocity", 5.0, "target velocity rad/s")
	openLoopCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "tick seconds")
	openLoopCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration seconds")
	openLoopCmd.Flags().IntVar(&polePairs, "poles", config.DefaultPolePairs, "pole pairs")

	alignCmd := &cobra.Command{
		Use:   "align",
		Short: "run the alignment procedure against the simulated motor",
		RunE:  runAlign,
	}
	addLoopFlags(alignCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "watch the loop run in real time",
		RunE:  runLive,
	}
	addLoopFlags(liveCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
		},
	}

	rootCmd.AddCommand(runCmd, openLoopCmd, alignCmd, listCmd, plotCmd, liveCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addLoopFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&mode, "mode", "velocity", "motion mode: velocity, angle, torque, ratchet, limitpos")
	cmd.Flags().Float64Var(&target, "target", 5.0, "mode target (rad/s, rad or torque)")
	cmd.Flags().IntVar(&steps, "steps", 12, "ratchet detents per revolution")
	cmd.Flags().Float64Var(&limLow, "low", 0, "limitpos lower bound rad")
	cmd.Flags().Float64Var(&limHigh, "high", 0, "limitpos upper bound rad")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "tick seconds")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration seconds")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "sensor noise seed")
	cmd.Flags().Float64Var(&noise, "noise", 0, "sensor noise amplitude rad")
	cmd.Flags().BoolVar(&noAlign, "no-align", false, "skip the alignment procedure")
	cmd.Flags().IntVar(&polePairs, "poles", config.DefaultPolePairs, "pole pairs")
	cmd.Flags().Float64Var(&supply, "supply", config.DefaultSupply, "supply voltage")
	cmd.Flags().Float64Var(&voltLimit, "volt-limit", config.DefaultVoltLimit, "voltage limit")
	cmd.Flags().Float64Var(&velLimit, "vel-limit", config.DefaultVelLimit, "velocity limit rad/s")
	cmd.Flags().Float64Var(&kv, "kv", 0, "motor Kv (RPM/V), 0 disables back-EMF compensation")
	cmd.Flags().Float64Var(&resistance, "resistance", 0, "phase resistance ohms, 0 disables resistive law")
	cmd.Flags().Float64Var(&inductance, "inductance", 0, "phase inductance henry, 0 disables d-axis decoupling")
}

// resolveConfig merges preset, config file and flags, flags winning.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		*cfg = *p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flagSets := []struct {
		name  string
		apply func()
	}{
		{"mode", func() { cfg.Mode.Name = mode }},
		{"target", func() { cfg.Mode.Target = target }},
		{"steps", func() { cfg.Mode.Steps = steps }},
		{"low", func() { cfg.Mode.Low = limLow }},
		{"high", func() { cfg.Mode.High = limHigh }},
		{"dt", func() { cfg.Run.Dt = dt }},
		{"time", func() { cfg.Run.Duration = duration }},
		{"seed", func() { cfg.Run.Seed = seed }},
		{"noise", func() { cfg.Plant.SensorNoise = noise }},
		{"no-align", func() { cfg.Run.Align = !noAlign }},
		{"poles", func() { cfg.Motor.PolePairs = polePairs }},
		{"supply", func() { cfg.Motor.SupplyVoltage = supply }},
		{"volt-limit", func() { cfg.Motor.VoltageLimit = voltLimit }},
		{"vel-limit", func() { cfg.Motor.VelocityLimit = velLimit }},
		{"kv", func() { cfg.Motor.Kv = kv }},
		{"resistance", func() { cfg.Motor.Resistance = resistance }},
		{"inductance", func() { cfg.Motor.Inductance = inductance }},
	}
	for _, f := range flagSets {
		if cmd.Flags().Changed(f.name) {
			f.apply()
		}
	}

	if cfg.Run.Seed == 0 {
		cfg.Run.Seed = time.Now().UnixNano()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildLoop wires the simulated plant to a freshly configured
// controller according to cfg.
func buildLoop(cfg *config.Config) (*plant.Motor, *foc.Foc, error) {
	motor := plant.NewMotor(cfg.Motor.PolePairs)
	motor.Supply = cfg.Motor.SupplyVoltage
	motor.Resistance = cfg.Plant.Resistance
	motor.Kt = cfg.Plant.Kt
	motor.Ke = cfg.Plant.Ke
	motor.Inertia = cfg.Plant.Inertia
	motor.Damping = cfg.Plant.Damping
	if cfg.Plant.SensorNoise > 0 {
		motor.WithNoise(cfg.Plant.SensorNoise, cfg.Run.Seed)
	}

	a, b, c := motor.Phases()
	bldc := drive.NewBLDC(cfg.Motor.PolePairs, motor, drive.ThreePhasePwm{A: a, B: b, C: c}, motor.Clock()).
		WithVoltageLimit(cfg.Motor.VoltageLimit).
		WithSupplyVoltage(cfg.Motor.SupplyVoltage).
		WithVelocityLimit(units.PerSecond(cfg.Motor.VelocityLimit))
	if cfg.Motor.Kv > 0 {
		bldc = bldc.WithKv(cfg.Motor.Kv)
	}
	if cfg.Motor.Resistance > 0 {
		bldc = bldc.WithPhaseResistance(cfg.Motor.Resistance)
	}
	if cfg.Motor.Inductance > 0 {
		bldc = bldc.WithPhaseInductance(cfg.Motor.Inductance)
	}

	if cfg.Run.Align {
		var err error
		bldc, err = bldc.Aligned()
		if err != nil {
			return nil, nil, err
		}
	}

	ctl := foc.New(bldc).
		WithVelocityPID(pid.NewVelocity(buildPid(cfg.Pid.Velocity))).
		WithAnglePID(buildPid(cfg.Pid.Angle))

	// Mode last: ratchet re-tunes the controllers.
	switch cfg.Mode.Name {
	case "velocity":
		ctl.ToVelocity(units.PerSecond(cfg.Mode.Target))
	case "angle":
		ctl.ToAngle(cfg.Mode.Target)
	case "torque":
		ctl.ToTorque(cfg.Mode.Target)
	case "ratchet":
		ctl.ToRatchet(cfg.Mode.Steps)
	case "limitpos":
		if err := ctl.ToLimitPos(cfg.Mode.Low, cfg.Mode.High); err != nil {
			return nil, nil, err
		}
	}

	return motor, ctl, nil
}

func buildPid(g config.GainsConfig) pid.Controller {
	c := pid.New().P(g.Kp).I(g.Ki).D(g.Kd)
	if g.Ramp > 0 {
		c = c.Ramp(g.Ramp)
	}
	if g.Limit > 0 {
		c = c.Limit(g.Limit)
	}
	return c
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	motor, ctl, err := buildLoop(cfg)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	runner := sim.NewRunner(motor, ctl)
	runner.AddMetric(metrics.NewControlEffort())
	if cfg.Mode.Name == "velocity" {
		runner.AddMetric(metrics.NewTrackingError(cfg.Mode.Target))
		runner.AddMetric(metrics.NewSettlingTime(cfg.Mode.Target, 0.5))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := runner.Run(ctx, sim.Config{
		Dt:       time.Duration(cfg.Run.Dt * float64(time.Second)),
		Duration: time.Duration(cfg.Run.Duration * float64(time.Second)),
	})
	if err != nil {
		return err
	}
	if result.Err != nil {
		return result.Err
	}

	id, err := st.Save(cfg.Mode.Name, cfg.Run.Dt, cfg.Run.Duration, cfg.Run.Seed, cfg.Motor.PolePairs, result)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", id)
	fmt.Printf("steps: %d\n\n", result.StepsTaken)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for name, value := range result.Metrics {
		fmt.Fprintf(w, "%s\t%.4f\n", name, value)
	}
	w.Flush()

	if len(result.Samples) > 0 {
		last := result.Samples[len(result.Samples)-1]
		fmt.Printf("\nfinal: angle=%.3frad velocity=%.2frad/s\n", last.Total, last.Velocity)
	}

	return nil
}

func runOpenLoop(cmd *cobra.Command, args []string) error {
	motor := plant.NewMotor(polePairs)
	a, b, c := motor.Phases()
	bldc := drive.NewBLDC(polePairs, motor, drive.ThreePhasePwm{A: a, B: b, C: c}, motor.Clock())

	ol := foc.NewOpenLoop(bldc, units.PerSecond(target))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := sim.NewRunner(motor, ol)
	result, err := runner.Run(ctx, sim.Config{
		Dt:       time.Duration(dt * float64(time.Second)),
		Duration: time.Duration(duration * float64(time.Second)),
	})
	if err != nil {
		return err
	}
	if result.Err != nil {
		return result.Err
	}

	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Printf("dead-reckoned shaft: %.3frad, rotor: %.3frad at %.2frad/s\n",
		ol.ShaftAngle(), motor.Theta(), motor.Omega())
	fmt.Print(viz.PlotSamples(result.Samples))

	return nil
}

func runAlign(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Run.Align = false

	motor, ctl, err := buildLoop(cfg)
	if err != nil {
		return err
	}

	if err := ctl.Motor().Align(); err != nil {
		return err
	}

	fmt.Printf("aligned: rotor settled at %.3frad, electrical angle %.3frad\n",
		motor.Theta(), ctl.Motor().ElectricalAngle())
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tDT\tDURATION\tWHEN")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.1f\t%s\n",
			r.ID, r.Mode, r.Dt, r.Duration, r.Timestamp.Format(time.RFC3339))
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)

	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\nmode: %s\nsamples: %d\n\n", meta.ID, meta.Mode, len(samples))
	fmt.Print(viz.PlotSamples(samples))
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	motor, ctl, err := buildLoop(cfg)
	if err != nil {
		return err
	}

	model := viz.NewLive(motor, ctl, time.Duration(cfg.Run.Dt*float64(time.Second)), cfg.Mode.Name)
	p := tea.NewProgram(model)
	_, err = p.Run()
	return err
}

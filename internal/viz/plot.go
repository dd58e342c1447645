// Package viz renders run telemetry for the terminal: asciigraph
// trace plots for finished runs and a bubbletea live view that steps
// the simulated loop in real time.
package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/kvn-sato/focsim/internal/sim"
)

// PlotSamples renders the standard trace set for a finished run:
// velocity, continuous angle and q-axis voltage against time.
func PlotSamples(samples []sim.Sample) string {
	if len(samples) == 0 {
		return "no data to plot\n"
	}

	var b strings.Builder

	traces := []struct {
		caption string
		pick    func(sim.Sample) float64
	}{
		{"velocity (rad/s)", func(s sim.Sample) float64 { return s.Velocity }},
		{"shaft angle (rad)", func(s sim.Sample) float64 { return s.Total }},
		{"q-axis voltage (V)", func(s sim.Sample) float64 { return s.Q }},
	}

	for _, tr := range traces {
		data := make([]float64, len(samples))
		for i, s := range samples {
			data[i] = tr.pick(s)
		}

		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(tr.caption),
		)
		b.WriteString(graph)
		b.WriteString("\n\n")
	}

	last := samples[len(samples)-1]
	fmt.Fprintf(&b, "final: angle=%.3frad velocity=%.2frad/s duty=%.0f/%.0f/%.0f\n",
		last.Total, last.Velocity, last.DutyA, last.DutyB, last.DutyC)

	return b.String()
}

// Sparkline renders a compact single plot, used by the live view.
func Sparkline(data []float64, width, height int) string {
	if len(data) < 2 {
		return ""
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
	)
}

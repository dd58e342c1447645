package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kvn-sato/focsim/internal/plant"
	"github.com/kvn-sato/focsim/internal/sim"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

const (
	dialWidth  = 41
	dialHeight = 17
	frameRate  = 30
)

type tickMsg time.Time

// Live is a bubbletea model that advances the simulated loop in real
// time and draws the rotor as a dial.
type Live struct {
	motor *plant.Motor
	ctl   sim.Controller
	dt    time.Duration
	mode  string

	paused  bool
	simTime float64
	err     error

	history []float64
	width   int
}

func NewLive(motor *plant.Motor, ctl sim.Controller, dt time.Duration, mode string) *Live {
	return &Live{
		motor:   motor,
		ctl:     ctl,
		dt:      dt,
		mode:    mode,
		history: make([]float64, 0, 240),
		width:   80,
	}
}

func (l *Live) Init() tea.Cmd {
	return frameTick()
}

func frameTick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (l *Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return l, tea.Quit
		case " ":
			l.paused = !l.paused
		}
	case tea.WindowSizeMsg:
		l.width = msg.Width
	case tickMsg:
		if !l.paused && l.err == nil {
			l.advanceFrame()
		}
		return l, frameTick()
	}
	return l, nil
}

// advanceFrame runs one display frame's worth of control ticks.
func (l *Live) advanceFrame() {
	steps := int(time.Second / frameRate / l.dt)
	if steps < 1 {
		steps = 1
	}
	for i := 0; i < steps; i++ {
		l.motor.Advance(l.dt)
		if err := l.ctl.Tick(); err != nil {
			l.err = err
			return
		}
		l.simTime += l.dt.Seconds()
	}

	v := l.ctl.Motor().SensorState().Velocity().RadPerSec()
	l.history = append(l.history, v)
	if len(l.history) > 240 {
		l.history = l.history[1:]
	}
}

func (l *Live) View() string {
	var b strings.Builder

	b.WriteString(cyan.Render("focsim live") + dim.Render("  mode: "+l.mode) + "\n\n")
	b.WriteString(l.renderDial())
	b.WriteString("\n")
	b.WriteString(l.renderStats())
	b.WriteString("\n")

	if len(l.history) > 2 {
		b.WriteString(dim.Render(Sparkline(l.history, 60, 6)))
		b.WriteString("\n")
	}

	if l.err != nil {
		b.WriteString(yellow.Render(fmt.Sprintf("stopped: %v", l.err)) + "\n")
	}
	if l.paused {
		b.WriteString(yellow.Render("paused") + "\n")
	}
	b.WriteString(dim.Render("space pause · q quit") + "\n")

	return b.String()
}

func (l *Live) renderDial() string {
	canvas := make([][]rune, dialHeight)
	for i := range canvas {
		canvas[i] = make([]rune, dialWidth)
		for j := range canvas[i] {
			canvas[i][j] = ' '
		}
	}

	cx, cy := dialWidth/2, dialHeight/2
	rx, ry := 18.0, 7.5

	// Dial ring.
	for i := 0; i < 72; i++ {
		a := float64(i) * 2 * math.Pi / 72
		set(canvas, cx+int(rx*math.Cos(a)), cy-int(ry*math.Sin(a)), '.')
	}

	// Needle at the bounded sensor angle.
	angle := l.ctl.Motor().SensorState().Angle()
	nx := cx + int((rx-1)*math.Cos(angle))
	ny := cy - int((ry-1)*math.Sin(angle))
	line(canvas, cx, cy, nx, ny, '=')
	set(canvas, nx, ny, 'O')
	set(canvas, cx, cy, '+')

	var b strings.Builder
	for _, row := range canvas {
		b.WriteString(white.Render(string(row)))
		b.WriteByte('\n')
	}
	return b.String()
}

func (l *Live) renderStats() string {
	state := l.ctl.Motor().SensorState()
	a, db, c := l.motor.Duties()

	return fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		dim.Render("t"), white.Render(fmt.Sprintf("%6.2fs", l.simTime)),
		dim.Render("angle"), white.Render(fmt.Sprintf("%7.3frad", state.TotalAngle())),
		dim.Render("velocity"), green.Render(state.Velocity().String()),
		dim.Render("duty"), white.Render(fmt.Sprintf("%.0f/%.0f/%.0f", a, db, c)),
	)
}

func set(canvas [][]rune, x, y int, c rune) {
	if x >= 0 && x < dialWidth && y >= 0 && y < dialHeight {
		canvas[y][x] = c
	}
}

func line(canvas [][]rune, x1, y1, x2, y2 int, c rune) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		set(canvas, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

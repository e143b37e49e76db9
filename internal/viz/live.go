package viz

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/mdnlist/internal/nlist"
	"github.com/san-kum/mdnlist/internal/sim"
)

const (
	width           = 60
	height          = 24
	historyCapacity = 300
	frameRate       = time.Second / 30
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model steps a simulator on every frame and draws the particles with the
// neighbor list state beside them.
type Model struct {
	sim    *sim.Simulator
	cfg    sim.Config
	canvas *Canvas
	styles styles
	theme  int

	running       bool
	finished      bool
	err           error
	axis          int
	stepsPerFrame int

	last     sim.StepInfo
	reasons  map[nlist.Reason]int
	energy   []float64
	capacity []float64
}

// NewModel initializes the simulator. An initialization failure is shown in
// the view instead of stepping.
func NewModel(s *sim.Simulator, cfg sim.Config, theme string) Model {
	m := Model{
		sim:           s,
		cfg:           cfg,
		canvas:        NewCanvas(width, height),
		theme:         ThemeIndex(theme),
		running:       true,
		axis:          2,
		stepsPerFrame: 1,
		reasons:       make(map[nlist.Reason]int),
		energy:        make([]float64, 0, historyCapacity),
		capacity:      make([]float64, 0, historyCapacity),
	}
	m.styles = newStyles(Themes[m.theme])
	info, err := s.Init()
	if err != nil {
		m.fail(err)
	} else {
		m.observe(info)
	}
	m.draw()
	return m
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if m.err == nil && !m.finished {
				m.running = !m.running
			}
		case "f":
			m.sim.List().ForceUpdate()
		case "t":
			m.theme = (m.theme + 1) % len(Themes)
			m.styles = newStyles(Themes[m.theme])
		case "p":
			m.axis = (m.axis + 1) % 3
			m.draw()
		case "+", "=":
			m.stepsPerFrame = min(m.stepsPerFrame*2, 64)
		case "-", "_":
			m.stepsPerFrame = max(m.stepsPerFrame/2, 1)
		}
	case TickMsg:
		if m.running {
			m.advance()
			m.draw()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) advance() {
	for k := 0; k < m.stepsPerFrame; k++ {
		if m.cfg.Steps > 0 && int(m.sim.Timestep()) >= m.cfg.Steps {
			m.finished = true
			m.running = false
			return
		}
		info, err := m.sim.Step(m.cfg)
		if err != nil {
			m.fail(err)
			return
		}
		m.observe(info)
	}
}

func (m *Model) observe(info sim.StepInfo) {
	m.last = info
	if info.Rebuilt {
		for bit := nlist.ReasonInitial; bit <= nlist.ReasonPeriodic; bit <<= 1 {
			if info.Reason&bit != 0 {
				m.reasons[bit]++
			}
		}
	}
	m.energy = push(m.energy, info.Total())
	m.capacity = push(m.capacity, float64(info.Capacity))
}

func (m *Model) fail(err error) {
	m.err = err
	m.running = false
}

func push(h []float64, v float64) []float64 {
	if len(h) == historyCapacity {
		copy(h, h[1:])
		h = h[:len(h)-1]
	}
	return append(h, v)
}

func (m *Model) draw() {
	m.canvas.Clear()
	m.canvas.Project(m.sim.Particles().Positions(), m.sim.Box(), m.axis)
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return m.styles.failed.Render("FAILED")
	case m.finished:
		return m.styles.paused.Render("DONE")
	case !m.running:
		return m.styles.paused.Render("PAUSED")
	}
	return m.styles.running.Render("RUNNING")
}

func (m Model) View() string {
	st := m.styles
	nl := m.sim.List()
	stats := nl.Stats()

	var s strings.Builder
	s.WriteString(st.header.Render("NEIGHBOR LIST") + "\n")
	s.WriteString(m.status() + "\n\n")

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Step", fmt.Sprintf("%d", m.last.Step))
	if m.cfg.Steps > 0 {
		row("Progress", ProgressBar(float64(m.last.Step)/float64(m.cfg.Steps), 20))
	}
	row("Particles", fmt.Sprintf("%d", m.sim.Particles().N()))
	row("Box", m.sim.Box().String())
	row("Storage", nl.Storage().String())
	row("Builds", fmt.Sprintf("%d", stats.Builds))
	row("Skips", fmt.Sprintf("%d", stats.Skips))
	row("Last reason", stats.LastReason.String())
	row("Capacity", fmt.Sprintf("%d (%d overflows)", stats.Capacity, stats.Overflows))
	row("Neighbors", fmt.Sprintf("%.1f mean, %d max", stats.MeanNeighbors, stats.MaxNeighbors))
	row("Build time", stats.LastBuildDuration.Round(time.Microsecond).String())
	row("Energy", fmt.Sprintf("%.4f", m.last.Total()))
	row("Steps/frame", fmt.Sprintf("%d", m.stepsPerFrame))

	if len(m.energy) > 1 {
		chart := asciigraph.Plot(m.energy, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Energy"))
		s.WriteString(st.graph.Render(chart) + "\n")
	}
	if len(m.reasons) > 0 {
		s.WriteString("\n" + st.label.Render("Triggers") + "\n")
		for bit := nlist.ReasonInitial; bit <= nlist.ReasonPeriodic; bit <<= 1 {
			if n := m.reasons[bit]; n > 0 {
				s.WriteString(fmt.Sprintf("  %-10s %d\n", bit, n))
			}
		}
	}
	if m.err != nil {
		s.WriteString("\n" + st.failed.Render(errLine(m.err)) + "\n")
	}
	s.WriteString(st.help.Render("SP:Pause F:Rebuild P:Axis T:Theme +/-:Speed Q:Quit"))

	view := st.canvas.Render(strings.TrimSuffix(m.canvas.String(), "\n"))
	return lipgloss.JoinHorizontal(lipgloss.Top, view, st.panel.Render(s.String()))
}

func errLine(err error) string {
	var be *nlist.BuildError
	if errors.As(err, &be) {
		return fmt.Sprintf("build failed at step %d (%s)", be.Step, be.Op)
	}
	return err.Error()
}

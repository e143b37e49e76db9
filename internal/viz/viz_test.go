package viz

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdnlist/internal/config"
	"github.com/san-kum/mdnlist/internal/geom"
	"github.com/san-kum/mdnlist/internal/nlist"
	"github.com/san-kum/mdnlist/internal/sim"
)

func TestCanvas_SetAndClear(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(4, 0)
	assert.Equal(t, 2, c.Lit())
	assert.Equal(t, string([]rune{0x2801, 0x2880})+"\n", c.String())

	c.Clear()
	assert.Equal(t, 0, c.Lit())
}

func TestCanvas_Project(t *testing.T) {
	c := NewCanvas(10, 5)
	box := geom.Cube(10)
	pos := []r3.Vec{
		{X: 0.1, Y: 0.1, Z: 5},
		{X: 9.9, Y: 9.9, Z: 5},
		{X: -0.1, Y: 0.1, Z: 5}, // wraps to the right edge
	}
	c.Project(pos, box, 2)
	assert.Equal(t, 3, c.Lit())
	assert.NotEqual(t, rune(blank), c.Grid[4][0], "low y maps to the bottom row")
	assert.NotEqual(t, rune(blank), c.Grid[0][9])
	assert.NotEqual(t, rune(blank), c.Grid[4][9])
}

func newModel(t *testing.T, steps int) Model {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Types = []config.TypeConfig{{Name: "A", Count: 125}}
	cfg.Box = config.BoxConfig{X: 7, Y: 7, Z: 7}
	cfg.Steps = steps
	cfg.Compute.Backend = "serial"
	s, run, err := sim.FromConfig(cfg)
	require.NoError(t, err)
	return NewModel(s, run, "ocean")
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestModel_Steps(t *testing.T) {
	m := newModel(t, 0)
	require.NoError(t, m.err)
	assert.Equal(t, 25, m.canvas.Lit(), "5x5 lattice columns seen down z")

	m, cmd := update(m, TickMsg{})
	assert.NotNil(t, cmd)
	assert.Equal(t, uint64(1), m.last.Step)
	assert.Len(t, m.energy, 2)
	assert.Contains(t, m.View(), "NEIGHBOR LIST")
}

func TestModel_PauseAndForce(t *testing.T) {
	m := newModel(t, 0)

	m, _ = update(m, key(" "))
	assert.False(t, m.running)
	m, _ = update(m, TickMsg{})
	assert.Equal(t, uint64(0), m.last.Step, "paused model does not step")

	m, _ = update(m, key(" "))
	m, _ = update(m, key("f"))
	m, _ = update(m, TickMsg{})
	assert.True(t, m.last.Rebuilt)
	assert.NotZero(t, m.last.Reason&nlist.ReasonForced)
	assert.Equal(t, 1, m.reasons[nlist.ReasonForced])
}

func TestModel_Finishes(t *testing.T) {
	m := newModel(t, 3)
	m, _ = update(m, key("+"))
	m, _ = update(m, key("+"))
	assert.Equal(t, 4, m.stepsPerFrame)

	m, _ = update(m, TickMsg{})
	assert.Equal(t, uint64(3), m.last.Step)
	assert.True(t, m.finished)
	assert.False(t, m.running)
	assert.Contains(t, m.View(), "DONE")
}

func TestModel_ThemeAndAxis(t *testing.T) {
	m := newModel(t, 0)
	start := m.theme
	m, _ = update(m, key("t"))
	assert.Equal(t, (start+1)%len(Themes), m.theme)
	m, _ = update(m, key("p"))
	assert.Equal(t, 0, m.axis)
}

func TestModel_Quit(t *testing.T) {
	m := newModel(t, 0)
	_, cmd := update(m, key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModel_InitFailureShown(t *testing.T) {
	cfg := config.GetPreset("cluster")
	cfg.NeighborList.MaxNeighbors = 16
	cfg.Compute.Backend = "serial"
	s, run, err := sim.FromConfig(cfg)
	require.NoError(t, err)

	m := NewModel(s, run, "")
	assert.Error(t, m.err)
	assert.False(t, m.running)
	view := m.View()
	assert.Contains(t, view, "FAILED")
	assert.True(t, strings.Contains(view, "build failed at step 0"))
}

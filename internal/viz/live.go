package viz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/metrics"
	"github.com/san-kum/magtrack/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	canvasWidth     = 72
	canvasHeight    = 24
	historyCapacity = 600
	trailCapacity   = 400
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// LiveModel steps a batch of tracks and draws their trails.
type LiveModel struct {
	ctx     context.Context
	sim     *sim.Simulator
	batch   *sim.Batch
	actions *metrics.ActionCounts
	deposit *metrics.EnergyDeposit
	title   string

	canvas *Canvas
	camera *Camera
	trails [][]r3.Vec

	energyHistory  []float64
	depositHistory []float64
	running        bool
	view3D         bool
	showHelp       bool
	err            error
	result         *sim.Result
}

// NewLiveModel starts a batch for the primaries. Action counts and the
// energy deposit are added to the simulator's metrics.
func NewLiveModel(ctx context.Context, s *sim.Simulator, primaries []core.Primary, cfg sim.Config, title string) (*LiveModel, error) {
	m := &LiveModel{
		ctx:     ctx,
		sim:     s,
		actions: metrics.NewActionCounts(),
		deposit: metrics.NewEnergyDeposit(),
		title:   title,
		canvas:  NewCanvas(canvasWidth, canvasHeight),
		camera:  NewCamera(),
		running: true,
	}
	s.AddMetric(m.actions)
	s.AddMetric(m.deposit)

	batch, err := s.Start(primaries, cfg)
	if err != nil {
		return nil, err
	}
	m.batch = batch
	m.trails = make([][]r3.Vec, batch.State().Size())
	m.record()
	return m, nil
}

// Result is set once every track has stopped.
func (m *LiveModel) Result() *sim.Result { return m.result }
func (m *LiveModel) Err() error          { return m.err }

func (m *LiveModel) Init() tea.Cmd { return tick() }

func (m *LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "s":
			if !m.running {
				m.step()
			}
		case "v":
			m.view3D = !m.view3D
		case "x":
			m.camera.RotateX(0.1)
		case "X":
			m.camera.RotateX(-0.1)
		case "y":
			m.camera.RotateY(0.1)
		case "Y":
			m.camera.RotateY(-0.1)
		case "+", "=":
			m.camera.ZoomIn()
		case "-", "_":
			m.camera.ZoomOut()
		case "t":
			nextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		return m, tick()
	}
	return m, nil
}

// step advances the batch by one iteration, finishing it when no track is
// left alive.
func (m *LiveModel) step() {
	if m.result != nil || m.err != nil {
		return
	}
	if m.batch.Done() {
		m.result = m.batch.Finish()
		m.running = false
		return
	}
	if err := m.batch.Step(m.ctx); err != nil {
		m.err = err
		m.running = false
		return
	}
	m.record()
}

// record appends the current position of every track that moved, the
// total kinetic energy still in flight and the energy deposited so far.
func (m *LiveModel) record() {
	params, state := m.sim.Params(), m.batch.State()
	energy := 0.0
	for slot := range m.trails {
		track := core.NewTrackView(params, state, slot)
		pos := track.Geo().Pos()
		trail := m.trails[slot]
		if n := len(trail); n == 0 || trail[n-1] != pos {
			trail = append(trail, pos)
			if len(trail) > trailCapacity {
				trail = trail[1:]
			}
			m.trails[slot] = trail
		}
		if track.Sim().Status() == core.StatusAlive {
			energy += track.Particle().Energy()
		}
	}
	m.energyHistory = appendHistory(m.energyHistory, energy)
	m.depositHistory = appendHistory(m.depositHistory, m.deposit.Value())
}

func appendHistory(history []float64, v float64) []float64 {
	history = append(history, v)
	if len(history) > historyCapacity {
		history = history[1:]
	}
	return history
}

func (m *LiveModel) draw() {
	m.canvas.Clear()
	if m.view3D {
		m.draw3D()
		return
	}
	m.drawSide()
}

// drawSide projects onto the (z, x) plane with the slab boundaries as
// vertical lines.
func (m *LiveModel) drawSide() {
	vp := emptyViewport()
	for _, trail := range m.trails {
		for _, p := range trail {
			vp.Fit(p.Z, p.X)
		}
	}
	if vp.MinU > vp.MaxU {
		return
	}
	for _, z := range m.sim.Params().Geometry.Planes() {
		if z < vp.MinU || z > vp.MaxU {
			continue
		}
		x0, y0 := vp.Map(m.canvas, z, vp.MinV)
		x1, y1 := vp.Map(m.canvas, z, vp.MaxV)
		m.canvas.DrawDashed(x0, y0, x1, y1, 3)
	}
	for _, trail := range m.trails {
		for i, p := range trail {
			x, y := vp.Map(m.canvas, p.Z, p.X)
			if i == 0 {
				m.canvas.Set(x, y)
				continue
			}
			px, py := vp.Map(m.canvas, trail[i-1].Z, trail[i-1].X)
			m.canvas.DrawLine(px, py, x, y)
		}
	}
}

func (m *LiveModel) draw3D() {
	lo := r3.Vec{X: 1e300, Y: 1e300, Z: 1e300}
	hi := r3.Scale(-1, lo)
	found := false
	for _, trail := range m.trails {
		for _, p := range trail {
			lo = r3.Vec{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
			hi = r3.Vec{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
			found = true
		}
	}
	if !found {
		return
	}
	m.camera.Frame(lo, hi)
	for _, trail := range m.trails {
		m.camera.DrawPath(m.canvas, trail)
	}
}

func (m *LiveModel) status() string {
	switch {
	case m.err != nil:
		return "ERROR"
	case m.result != nil:
		return "FINISHED"
	case !m.running:
		return "PAUSED"
	}
	return "RUNNING"
}

func (m *LiveModel) View() string {
	theme := CurrentTheme
	label, value := theme.label(), theme.value()
	row := func(name, v string) string {
		return label.Render(fmt.Sprintf("%-12s", name)) + value.Render(v) + "\n"
	}

	m.draw()
	view := "side (z, x)"
	if m.view3D {
		view = "3d"
	}
	canvasView := lipgloss.NewStyle().Padding(1, 2).Foreground(theme.Primary).Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(theme.title().Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(theme.status(strings.ToLower(m.status())).Render(m.status()) + "  " + label.Render(view) + "\n\n")

	if len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("energy in flight [MeV]"))
		s.WriteString(chart + "\n\n")
	}

	alive := m.batch.Alive()
	total := m.batch.State().Size()
	s.WriteString(row("iteration", fmt.Sprintf("%d", m.batch.Iteration())))
	s.WriteString(row("alive", fmt.Sprintf("%d / %d", alive, total)))
	if total > 0 {
		s.WriteString(label.Render(fmt.Sprintf("%-12s", "")) + ProgressBar(float64(alive)/float64(total), 16) + "\n")
	}
	energy := 0.0
	if n := len(m.energyHistory); n > 0 {
		energy = m.energyHistory[n-1]
	}
	s.WriteString(row("in flight", fmt.Sprintf("%.4g MeV", energy)))
	s.WriteString(row("deposited", fmt.Sprintf("%.4g MeV", m.deposit.Value())))
	s.WriteString(label.Render(fmt.Sprintf("%-12s", "")) + SparklineChart(m.depositHistory, 30) + "\n")

	s.WriteString("\n" + theme.accent().Render("ACTIONS") + "\n")
	counts := m.actions.Counts()
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		s.WriteString(label.Render("  (none)") + "\n")
	}
	for _, name := range names {
		s.WriteString(row(fmt.Sprintf("  %s", name), fmt.Sprintf("%d", counts[name])))
	}
	if m.err != nil {
		s.WriteString("\n" + theme.status("errored").Render(m.err.Error()) + "\n")
	}

	if m.showHelp {
		s.WriteString(helpStyle.Render("SPACE pause  S step  V view\nX/Y rotate  +/- zoom\nT theme  ? help  Q quit"))
	} else {
		s.WriteString(helpStyle.Render("?:Help Q:Quit"))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
}

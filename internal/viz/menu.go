package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Launcher builds the live model for a preset.
type Launcher func(preset string) (*LiveModel, error)

// PresetMenu lists presets and hands over to a LiveModel once one is
// chosen.
type PresetMenu struct {
	presets  []string
	describe func(string) string
	launch   Launcher
	cursor   int
	live     *LiveModel
	err      error
}

func NewPresetMenu(presets []string, describe func(string) string, launch Launcher) *PresetMenu {
	return &PresetMenu{presets: presets, describe: describe, launch: launch}
}

// Live is the running model, nil while the menu is shown.
func (m *PresetMenu) Live() *LiveModel { return m.live }

func (m *PresetMenu) Init() tea.Cmd { return nil }

func (m *PresetMenu) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.live != nil {
		_, cmd := m.live.Update(msg)
		return m, cmd
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	case "t":
		nextTheme()
	case "enter", " ":
		if len(m.presets) == 0 {
			return m, nil
		}
		live, err := m.launch(m.presets[m.cursor])
		if err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.live = live
		return m, live.Init()
	}
	return m, nil
}

func (m *PresetMenu) View() string {
	if m.live != nil {
		return m.live.View()
	}
	theme := CurrentTheme
	var s strings.Builder
	s.WriteString(theme.title().Render("MAGTRACK") + "  " + theme.label().Render("select a preset") + "\n\n")
	for i, name := range m.presets {
		cursor, style := "  ", theme.value()
		if i == m.cursor {
			cursor, style = "> ", theme.accent()
		}
		line := fmt.Sprintf("%s%-20s", cursor, name)
		desc := ""
		if m.describe != nil {
			desc = m.describe(name)
		}
		s.WriteString(style.Render(line) + theme.label().Render(desc) + "\n")
	}
	if m.err != nil {
		s.WriteString("\n" + theme.status("errored").Render(m.err.Error()) + "\n")
	}
	s.WriteString(helpStyle.Render("↑↓:Select  Enter:Run  T:Theme  Q:Quit"))
	return s.String()
}

// pattern: Imperative Shell

package wizard

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"droid/internal/config"
)

// step identifies the wizard screen currently shown.
type step int

const (
	stepConfirm step = iota
	stepForm
	stepProbe
	stepDone
)

// Field indexes into Model.inputs.
const (
	fieldProjectName = iota
	fieldOrganization
	fieldRepository
	fieldCount // Used for wrap-around
)

// ProbeFunc checks whether a GitHub repository exists and returns the
// HTTP status code of its project page.
type ProbeFunc func(org, project string) (int, error)

// probeResultMsg delivers the repository check outcome.
type probeResultMsg struct {
	status int
	err    error
}

// Model is the bubbletea model for the configuration wizard.
type Model struct {
	styles     *Styles
	configPath string
	cfg        config.Config

	step    step
	inputs  []textinput.Model
	focused int

	spinner   spinner.Model
	probeRepo ProbeFunc

	warning string
	err     error
	aborted bool
	written bool
}

// NewModel creates the wizard model. cfg is the currently loaded
// configuration; its Found flag decides whether the overwrite
// confirmation is shown first. Settings outside the project section
// survive an overwrite.
func NewModel(configPath string, cfg config.Config, probe ProbeFunc) Model {
	styles := NewStyles()

	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 120
		ti.Width = 40
		inputs[i] = ti
	}
	inputs[fieldProjectName].Placeholder = "My Project"
	inputs[fieldOrganization].Placeholder = "my-org"
	inputs[fieldRepository].Placeholder = "my-repo"
	inputs[fieldProjectName].Focus()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = styles.AccentStyle()

	first := stepForm
	if cfg.Found {
		first = stepConfirm
	}

	return Model{
		styles:     styles,
		configPath: configPath,
		cfg:        cfg,
		step:       first,
		inputs:     inputs,
		spinner:    sp,
		probeRepo:  probe,
	}
}

// Init returns the initial command to run.
func (m Model) Init() tea.Cmd {
	if m.step == stepForm {
		return textinput.Blink
	}
	return nil
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.aborted = true
			return m, tea.Quit
		}
		switch m.step {
		case stepConfirm:
			return m.handleConfirmKey(msg)
		case stepForm:
			return m.handleFormKey(msg)
		case stepDone:
			if msg.Type == tea.KeyEnter || msg.Type == tea.KeyEscape {
				return m, tea.Quit
			}
		}
		return m, nil

	case spinner.TickMsg:
		if m.step != stepProbe {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case probeResultMsg:
		return m.handleProbeResult(msg)
	}

	// Component messages (cursor blink) flow to the focused input.
	if m.step == stepForm {
		var cmd tea.Cmd
		m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleConfirmKey handles the overwrite confirmation. Anything other
// than y/n re-asks.
func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.step = stepForm
		return m, textinput.Blink
	case "n", "N":
		m.aborted = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.aborted = true
		return m, tea.Quit

	case tea.KeyEnter:
		if m.focused < fieldCount-1 {
			return m.focusField(m.focused + 1)
		}
		return m.startProbe()

	case tea.KeyTab, tea.KeyDown:
		return m.focusField((m.focused + 1) % fieldCount)

	case tea.KeyShiftTab, tea.KeyUp:
		return m.focusField((m.focused + fieldCount - 1) % fieldCount)
	}

	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	return m, cmd
}

func (m Model) focusField(idx int) (tea.Model, tea.Cmd) {
	m.inputs[m.focused].Blur()
	m.focused = idx
	return m, m.inputs[m.focused].Focus()
}

// startProbe transitions to the repository check with a spinner.
func (m Model) startProbe() (tea.Model, tea.Cmd) {
	m.inputs[m.focused].Blur()
	m.step = stepProbe

	org := m.inputs[fieldOrganization].Value()
	project := m.inputs[fieldRepository].Value()
	probe := m.probeRepo
	check := func() tea.Msg {
		status, err := probe(org, project)
		return probeResultMsg{status: status, err: err}
	}
	return m, tea.Batch(m.spinner.Tick, check)
}

// handleProbeResult records the repository warning if any and writes the
// configuration. A missing repository is a warning, not a failure.
func (m Model) handleProbeResult(msg probeResultMsg) (tea.Model, tea.Cmd) {
	org := m.inputs[fieldOrganization].Value()
	project := m.inputs[fieldRepository].Value()
	if msg.err != nil || msg.status != http.StatusOK {
		m.warning = fmt.Sprintf("GitHub repo %s/%s does not exist!", org, project)
	}

	m.cfg.Droid.ConfigurationVersion = config.ConfigurationVersion
	m.cfg.Project.Name = m.inputs[fieldProjectName].Value()
	m.cfg.Project.GitHubOrganization = org
	m.cfg.Project.GitHubProject = project

	if err := config.Save(m.configPath, m.cfg); err != nil {
		m.err = err
	} else {
		m.written = true
	}
	m.step = stepDone
	return m, nil
}

// View renders the wizard.
func (m Model) View() string {
	switch m.step {
	case stepConfirm:
		return m.viewConfirm()
	case stepProbe:
		return m.viewProbe()
	case stepDone:
		return m.viewDone()
	default:
		return m.viewForm()
	}
}

func (m Model) viewConfirm() string {
	parts := []string{
		m.styles.TitleStyle().Render("droid setup"),
		m.styles.ErrorStyle().Render("A configuration file already exists!"),
		m.styles.InfoStyle().Render("Do you wish to overwrite? [y/n]"),
		m.styles.HelpStyle().Render("y: overwrite • n: quit"),
	}
	return m.styles.BoxStyle().Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) viewForm() string {
	labels := [fieldCount]string{
		"Project name",
		"GitHub organization or username",
		"GitHub project name",
	}

	parts := []string{
		m.styles.TitleStyle().Render("droid setup"),
		m.styles.SubtitleStyle().Render("Describe the project this workspace serves."),
	}
	for i, ti := range m.inputs {
		label := labels[i]
		if i == m.focused {
			label = m.styles.AccentStyle().Render("▸ " + label)
		} else {
			label = m.styles.InfoStyle().Render("  " + label)
		}
		parts = append(parts, label, "  "+ti.View())
	}

	parts = append(parts, m.styles.HelpStyle().Render("Tab: next field • Enter: continue • Esc: cancel"))
	return m.styles.BoxStyle().Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) viewProbe() string {
	org := m.inputs[fieldOrganization].Value()
	project := m.inputs[fieldRepository].Value()
	parts := []string{
		m.styles.TitleStyle().Render("droid setup"),
		m.spinner.View() + " " + m.styles.InfoStyle().Render(fmt.Sprintf("Checking github.com/%s/%s ...", org, project)),
	}
	return m.styles.BoxStyle().Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) viewDone() string {
	parts := []string{m.styles.TitleStyle().Render("droid setup")}

	if m.err != nil {
		parts = append(parts, m.styles.ErrorStyle().Render("Error: "+m.err.Error()))
	} else {
		if m.warning != "" {
			parts = append(parts, m.styles.WarnStyle().Render("WARN: "+m.warning))
		}
		parts = append(parts, m.styles.InfoStyle().Render("Results written to "+m.configPath))
	}

	parts = append(parts, m.styles.HelpStyle().Render("Enter: close"))
	return m.styles.BoxStyle().Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

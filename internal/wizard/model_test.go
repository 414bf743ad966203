package wizard

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"droid/internal/config"
)

func okProbe(org, project string) (int, error) {
	return 200, nil
}

// newTestModel builds a wizard model writing into a temp directory.
func newTestModel(t *testing.T, found bool, probe ProbeFunc) Model {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Found = found
	return NewModel(filepath.Join(t.TempDir(), "droid.yml"), cfg, probe)
}

func pressKey(m Model, keyType tea.KeyType) (Model, tea.Cmd) {
	updated, cmd := m.Update(tea.KeyMsg{Type: keyType})
	return updated.(Model), cmd
}

func typeString(m Model, s string) Model {
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return updated.(Model)
}

// collectMsgs executes a command tree and returns the produced messages.
func collectMsgs(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collectMsgs(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestNewModel_FreshConfigStartsAtForm(t *testing.T) {
	m := newTestModel(t, false, okProbe)

	if m.step != stepForm {
		t.Errorf("step = %v, want stepForm", m.step)
	}
	if m.focused != fieldProjectName {
		t.Errorf("focused = %d, want %d", m.focused, fieldProjectName)
	}
	if !m.inputs[fieldProjectName].Focused() {
		t.Error("project name input should be focused")
	}
}

func TestNewModel_ExistingConfigAsksOverwrite(t *testing.T) {
	m := newTestModel(t, true, okProbe)

	if m.step != stepConfirm {
		t.Errorf("step = %v, want stepConfirm", m.step)
	}
}

func TestConfirm_NoAborts(t *testing.T) {
	m := newTestModel(t, true, okProbe)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	m = updated.(Model)

	if !m.aborted {
		t.Error("pressing n should abort")
	}
	if cmd == nil {
		t.Error("pressing n should quit")
	}
}

func TestConfirm_YesOpensForm(t *testing.T) {
	m := newTestModel(t, true, okProbe)

	m = typeString(m, "y")

	if m.step != stepForm {
		t.Errorf("step = %v, want stepForm", m.step)
	}
}

func TestConfirm_OtherKeysReask(t *testing.T) {
	m := newTestModel(t, true, okProbe)

	m = typeString(m, "x")

	if m.step != stepConfirm {
		t.Errorf("step = %v, want stepConfirm after unrelated key", m.step)
	}
	if m.aborted {
		t.Error("unrelated key should not abort")
	}
}

func TestForm_TypingFillsFocusedField(t *testing.T) {
	m := newTestModel(t, false, okProbe)

	m = typeString(m, "ODK")

	if got := m.inputs[fieldProjectName].Value(); got != "ODK" {
		t.Errorf("project name input = %q, want %q", got, "ODK")
	}
}

func TestForm_EnterAdvancesFields(t *testing.T) {
	m := newTestModel(t, false, okProbe)

	m, _ = pressKey(m, tea.KeyEnter)
	m, _ = pressKey(m, tea.KeyEnter)

	if m.focused != fieldRepository {
		t.Errorf("focused = %d, want %d", m.focused, fieldRepository)
	}
	if !m.inputs[fieldRepository].Focused() {
		t.Error("repository input should be focused")
	}
}

func TestForm_TabWrapsAround(t *testing.T) {
	m := newTestModel(t, false, okProbe)

	for i := 0; i < fieldCount; i++ {
		m, _ = pressKey(m, tea.KeyTab)
	}

	if m.focused != fieldProjectName {
		t.Errorf("focused = %d, want wrap back to %d", m.focused, fieldProjectName)
	}
}

func TestForm_EscapeAborts(t *testing.T) {
	m := newTestModel(t, false, okProbe)

	m, cmd := pressKey(m, tea.KeyEscape)

	if !m.aborted {
		t.Error("escape should abort")
	}
	if cmd == nil {
		t.Error("escape should quit")
	}
}

func TestForm_SubmitProbesAndWrites(t *testing.T) {
	probeCalled := false
	probe := func(org, project string) (int, error) {
		probeCalled = true
		if org != "ontodev" || project != "demo" {
			t.Errorf("probe called with %s/%s, want ontodev/demo", org, project)
		}
		return 200, nil
	}
	m := newTestModel(t, false, probe)

	m = typeString(m, "ODK")
	m, _ = pressKey(m, tea.KeyEnter)
	m = typeString(m, "ontodev")
	m, _ = pressKey(m, tea.KeyEnter)
	m = typeString(m, "demo")
	m, cmd := pressKey(m, tea.KeyEnter)

	if m.step != stepProbe {
		t.Fatalf("step = %v, want stepProbe", m.step)
	}

	// Execute the batched commands and feed the results back in.
	for _, msg := range collectMsgs(cmd) {
		updated, _ := m.Update(msg)
		m = updated.(Model)
	}

	if !probeCalled {
		t.Error("probe was not called")
	}
	if m.step != stepDone {
		t.Fatalf("step = %v, want stepDone", m.step)
	}
	if !m.written {
		t.Fatal("configuration was not written")
	}
	if m.warning != "" {
		t.Errorf("warning = %q, want none for a 200 probe", m.warning)
	}

	loaded, err := config.LoadFrom(m.configPath)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if !loaded.Found {
		t.Fatal("written config not found on reload")
	}
	if loaded.Project.Name != "ODK" {
		t.Errorf("Project.Name = %q, want %q", loaded.Project.Name, "ODK")
	}
	if loaded.Project.GitHubOrganization != "ontodev" {
		t.Errorf("GitHubOrganization = %q, want %q", loaded.Project.GitHubOrganization, "ontodev")
	}
	if loaded.Project.GitHubProject != "demo" {
		t.Errorf("GitHubProject = %q, want %q", loaded.Project.GitHubProject, "demo")
	}
	if loaded.Droid.ConfigurationVersion != config.ConfigurationVersion {
		t.Errorf("ConfigurationVersion = %d, want %d", loaded.Droid.ConfigurationVersion, config.ConfigurationVersion)
	}
}

func TestProbe_MissingRepoWarnsButWrites(t *testing.T) {
	m := newTestModel(t, false, okProbe)
	m = typeString(m, "ODK")
	m.step = stepProbe

	updated, _ := m.Update(probeResultMsg{status: 404})
	m = updated.(Model)

	if m.step != stepDone {
		t.Fatalf("step = %v, want stepDone", m.step)
	}
	if !strings.Contains(m.warning, "does not exist") {
		t.Errorf("warning = %q, should mention missing repo", m.warning)
	}
	if !m.written {
		t.Error("a missing repo must not block the write")
	}
}

func TestProbe_NetworkErrorWarnsButWrites(t *testing.T) {
	m := newTestModel(t, false, okProbe)
	m.step = stepProbe

	updated, _ := m.Update(probeResultMsg{err: fmt.Errorf("dial tcp: connection refused")})
	m = updated.(Model)

	if m.warning == "" {
		t.Error("a network error should produce a warning")
	}
	if !m.written {
		t.Error("a network error must not block the write")
	}
}

func TestDone_EnterQuits(t *testing.T) {
	m := newTestModel(t, false, okProbe)
	m.step = stepDone

	_, cmd := pressKey(m, tea.KeyEnter)
	if cmd == nil {
		t.Error("enter on the done screen should quit")
	}
}

func TestView_FormShowsPrompts(t *testing.T) {
	m := newTestModel(t, false, okProbe)

	view := m.View()
	for _, want := range []string{"Project name", "GitHub organization or username", "GitHub project name"} {
		if !strings.Contains(view, want) {
			t.Errorf("form view missing %q", want)
		}
	}
}

func TestView_ConfirmShowsWarning(t *testing.T) {
	m := newTestModel(t, true, okProbe)

	view := m.View()
	if !strings.Contains(view, "A configuration file already exists!") {
		t.Errorf("confirm view missing overwrite warning, got: %s", view)
	}
}

func TestView_DoneShowsWarning(t *testing.T) {
	m := newTestModel(t, false, okProbe)
	m.step = stepDone
	m.warning = "GitHub repo a/b does not exist!"

	view := m.View()
	if !strings.Contains(view, "WARN: GitHub repo a/b does not exist!") {
		t.Errorf("done view missing warning, got: %s", view)
	}
}

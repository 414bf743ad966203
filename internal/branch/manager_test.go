package branch

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"droid/internal/logging"
)

func TestNewManager_ScansWorkspace(t *testing.T) {
	root := t.TempDir()
	workspace := filepath.Join(root, "workspace")
	for _, name := range []string{"release-1", "main", "feature-x"} {
		if err := os.MkdirAll(filepath.Join(workspace, name), 0755); err != nil {
			t.Fatalf("create branch dir: %v", err)
		}
	}
	// A stray file in the workspace root is not a branch.
	if err := os.WriteFile(filepath.Join(workspace, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("create stray file: %v", err)
	}

	tempDir := filepath.Join(root, "temp")
	m, err := NewManager(Config{
		WorkspaceDir: workspace,
		TempDir:      tempDir,
	}, logging.NewTestManager())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	want := []string{"feature-x", "main", "release-1"}
	if got := m.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	for _, name := range want {
		console := filepath.Join(tempDir, name, "console.txt")
		info, err := os.Stat(console)
		if err != nil {
			t.Fatalf("console for %s not created: %v", name, err)
		}
		if info.Size() != 0 {
			t.Errorf("console for %s has size %d, want empty", name, info.Size())
		}
	}
}

func TestNewManager_CreatesMissingWorkspace(t *testing.T) {
	root := t.TempDir()
	workspace := filepath.Join(root, "workspace")

	m, err := NewManager(Config{
		WorkspaceDir: workspace,
		TempDir:      filepath.Join(root, "temp"),
	}, logging.NewTestManager())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	if _, err := os.Stat(workspace); err != nil {
		t.Errorf("workspace root not created: %v", err)
	}
	if got := m.Names(); len(got) != 0 {
		t.Errorf("Names() = %v, want none", got)
	}
}

func TestNewManager_PreservesExistingConsole(t *testing.T) {
	root := t.TempDir()
	workspace := filepath.Join(root, "workspace")
	if err := os.MkdirAll(filepath.Join(workspace, "main"), 0755); err != nil {
		t.Fatalf("create branch dir: %v", err)
	}

	console := filepath.Join(root, "temp", "main", "console.txt")
	if err := os.MkdirAll(filepath.Dir(console), 0755); err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	if err := os.WriteFile(console, []byte("old run output\n"), 0644); err != nil {
		t.Fatalf("seed console: %v", err)
	}

	m, err := NewManager(Config{
		WorkspaceDir: workspace,
		TempDir:      filepath.Join(root, "temp"),
	}, logging.NewTestManager())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	got, err := m.Console("main")
	if err != nil {
		t.Fatalf("Console() error = %v", err)
	}
	if got != "old run output\n" {
		t.Errorf("Console() = %q, want preserved content", got)
	}
}

func TestManager_Get(t *testing.T) {
	root := t.TempDir()
	workspace := filepath.Join(root, "workspace")
	if err := os.MkdirAll(filepath.Join(workspace, "main"), 0755); err != nil {
		t.Fatalf("create branch dir: %v", err)
	}

	m, err := NewManager(Config{
		WorkspaceDir: workspace,
		TempDir:      filepath.Join(root, "temp"),
	}, logging.NewTestManager())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	b, ok := m.Get("main")
	if !ok {
		t.Fatal("Get(main) not found")
	}
	if b.Name() != "main" {
		t.Errorf("Name() = %q, want %q", b.Name(), "main")
	}
	if b.Dir() != filepath.Join(workspace, "main") {
		t.Errorf("Dir() = %q, want workspace subdirectory", b.Dir())
	}

	if _, ok := m.Get("missing"); ok {
		t.Error("Get(missing) found a branch")
	}
}

func TestManager_NotFound(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(Config{
		WorkspaceDir: filepath.Join(root, "workspace"),
		TempDir:      filepath.Join(root, "temp"),
	}, logging.NewTestManager())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	if _, err := m.Status("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Status() error = %v, want ErrNotFound", err)
	}
	if err := m.Start("missing", "build"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Start() error = %v, want ErrNotFound", err)
	}
	if err := m.Cancel("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel() error = %v, want ErrNotFound", err)
	}
	if _, err := m.Console("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Console() error = %v, want ErrNotFound", err)
	}
}

func TestManager_List(t *testing.T) {
	root := t.TempDir()
	workspace := filepath.Join(root, "workspace")
	for _, name := range []string{"b", "a", "c"} {
		if err := os.MkdirAll(filepath.Join(workspace, name), 0755); err != nil {
			t.Fatalf("create branch dir: %v", err)
		}
	}

	m, err := NewManager(Config{
		WorkspaceDir: workspace,
		TempDir:      filepath.Join(root, "temp"),
	}, logging.NewTestManager())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	list := m.List()
	if len(list) != 3 {
		t.Fatalf("List() returned %d branches, want 3", len(list))
	}
	for i, want := range []string{"a", "b", "c"} {
		if list[i].Name() != want {
			t.Errorf("List()[%d] = %q, want %q", i, list[i].Name(), want)
		}
	}

	st := list[0].Status()
	if st.State != StateIdle {
		t.Errorf("fresh branch State = %q, want %q", st.State, StateIdle)
	}
}

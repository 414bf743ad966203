// pattern: Imperative Shell

package branch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"droid/internal/logging"
)

// ErrNotFound reports a branch name absent from the registry.
var ErrNotFound = errors.New("branch not found")

// consoleFile is the per-branch capture file under the temp tree.
const consoleFile = "console.txt"

// Config locates the workspace and temp trees and names the build binary.
type Config struct {
	WorkspaceDir string
	TempDir      string
	MakeBinary   string
}

// Manager owns the branch registry. The workspace root is enumerated
// once at construction; a directory added afterwards is invisible until
// the next restart.
type Manager struct {
	cfg        Config
	logger     *logging.ScopedLogger
	logManager logging.LoggerProvider

	mu       sync.RWMutex
	branches map[string]*Branch
	onChange func()
}

// NewManager scans the workspace root and registers one Branch per
// immediate subdirectory. Each branch gets a temp directory and an empty
// console file up front, so reads never race the first run.
func NewManager(cfg Config, logManager logging.LoggerProvider) (*Manager, error) {
	if cfg.MakeBinary == "" {
		cfg.MakeBinary = "make"
	}

	m := &Manager{
		cfg:        cfg,
		logger:     logManager.For("branch"),
		logManager: logManager,
		branches:   make(map[string]*Branch),
	}

	if err := os.MkdirAll(cfg.WorkspaceDir, 0755); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", cfg.WorkspaceDir, err)
	}

	entries, err := os.ReadDir(cfg.WorkspaceDir)
	if err != nil {
		return nil, fmt.Errorf("scan workspace %s: %w", cfg.WorkspaceDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()

		tempDir := filepath.Join(cfg.TempDir, name)
		if err := os.MkdirAll(tempDir, 0755); err != nil {
			return nil, fmt.Errorf("create temp dir for %s: %w", name, err)
		}
		consolePath := filepath.Join(tempDir, consoleFile)
		if err := touch(consolePath); err != nil {
			return nil, fmt.Errorf("create console for %s: %w", name, err)
		}

		m.branches[name] = &Branch{
			name:        name,
			dir:         filepath.Join(cfg.WorkspaceDir, name),
			consolePath: consolePath,
			logger:      logManager.For("branch." + name),
		}
	}

	m.logger.Info("workspace scanned",
		"workspace", cfg.WorkspaceDir,
		"branches", len(m.branches))

	return m, nil
}

// touch creates path if it does not exist, leaving existing content alone.
func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

// OnChange registers a callback fired after a run starts, exits, or is
// cancelled. Used to push refresh events to connected clients.
func (m *Manager) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

func (m *Manager) notifyChange() {
	m.mu.RLock()
	fn := m.onChange
	m.mu.RUnlock()

	if fn != nil {
		fn()
	}
}

// Get returns the branch with the given name.
func (m *Manager) Get(name string) (*Branch, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.branches[name]
	return b, ok
}

// List returns all branches sorted by name.
func (m *Manager) List() []*Branch {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*Branch, 0, len(m.branches))
	for _, b := range m.branches {
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].name < list[j].name
	})
	return list
}

// Names returns all branch names sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.branches))
	for name := range m.branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start launches the named action's make target on the branch, killing
// any live predecessor outright. The console capture starts fresh.
func (m *Manager) Start(name, action string) error {
	b, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err := b.start(m.cfg.MakeBinary, action, m.notifyChange); err != nil {
		return err
	}
	m.notifyChange()
	return nil
}

// Cancel kills the named branch's recorded process, marks it cancelled,
// and waits briefly for the process to be reaped. Cancelling a branch
// with no recorded run is a no-op.
func (m *Manager) Cancel(name string) error {
	b, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if b.cancel() {
		m.notifyChange()
	}
	return nil
}

// Status reports the named branch's run snapshot.
func (m *Manager) Status(name string) (Status, error) {
	b, ok := m.Get(name)
	if !ok {
		return Status{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return b.Status(), nil
}

// Console returns the named branch's captured output in full.
func (m *Manager) Console(name string) (string, error) {
	b, ok := m.Get(name)
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return b.Console()
}

//go:build e2e
// +build e2e

// pattern: Imperative Shell

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"droid/internal/branch"
	"droid/internal/logging"
	"droid/internal/web"
)

// SkipIfMakeMissing skips the test if make is not available.
func SkipIfMakeMissing(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("make"); err != nil {
		t.Skip("Skipping test: make not found in PATH")
	}
}

// WriteBranch creates one branch directory under the workspace with the
// given Makefile content and returns its path.
func WriteBranch(t *testing.T, workspace, name, makefileText string) string {
	t.Helper()

	dir := filepath.Join(workspace, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("create branch dir %s: %v", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte(makefileText), 0644); err != nil {
		t.Fatalf("write Makefile for %s: %v", name, err)
	}
	return dir
}

// StartServer wires a branch manager and web server over the workspace
// and starts serving on an ephemeral localhost port. The server is shut
// down on test cleanup. Returns the base URL and the temp dir the server
// runs from (where a port file would live).
func StartServer(t *testing.T, workspace string) (string, string) {
	t.Helper()

	tempDir := t.TempDir()
	logMgr := logging.NewTestManager()

	mgr, err := branch.NewManager(branch.Config{
		WorkspaceDir: workspace,
		TempDir:      tempDir,
		MakeBinary:   "make",
	}, logMgr)
	if err != nil {
		t.Fatalf("branch manager: %v", err)
	}

	srv := web.New(web.Config{
		Bind:        "127.0.0.1",
		Port:        0,
		MakeBinary:  "make",
		ProjectName: "droid-e2e",
	}, mgr, logMgr)

	ln, err := srv.Listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = srv.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return "http://" + srv.Addr(), tempDir
}

// BranchStatus fetches the named branch's run snapshot over the API.
func BranchStatus(t *testing.T, baseURL, name string) branch.Status {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/branches/%s", baseURL, name))
	if err != nil {
		t.Fatalf("GET /api/branches/%s: %v", name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/branches/%s status = %d, want 200", name, resp.StatusCode)
	}

	var detail web.BranchDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		t.Fatalf("decode branch %s: %v", name, err)
	}
	return detail.Status
}

// WaitForState polls the branch API until the run state matches, failing
// the test when the timeout passes first. Returns the matching snapshot.
func WaitForState(t *testing.T, baseURL, name string, want branch.State, timeout time.Duration) branch.Status {
	t.Helper()

	deadline := time.Now().Add(timeout)
	var last branch.Status
	for time.Now().Before(deadline) {
		last = BranchStatus(t, baseURL, name)
		if last.State == want {
			return last
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("branch %s state = %q after %v, want %q", name, last.State, timeout, want)
	return last
}

// RunAction starts the named action over the API and fails the test on a
// non-200 response.
func RunAction(t *testing.T, baseURL, name, action string) {
	t.Helper()

	resp, err := http.Post(
		fmt.Sprintf("%s/api/branches/%s/actions/%s", baseURL, name, action),
		"application/json", nil)
	if err != nil {
		t.Fatalf("POST actions/%s: %v", action, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST actions/%s status = %d, want 200", action, resp.StatusCode)
	}
}

// Console fetches the branch's full captured output over the API.
func Console(t *testing.T, baseURL, name string) string {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/branches/%s/console", baseURL, name))
	if err != nil {
		t.Fatalf("GET console for %s: %v", name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET console status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read console body: %v", err)
	}
	return string(body)
}

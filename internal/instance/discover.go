// pattern: Imperative Shell
package instance

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const healthTimeout = 2 * time.Second

// Discover checks whether a running droid server exists for this project
// and returns its base URL (e.g. "http://127.0.0.1:5000"). Returns an
// error if no server is running, the port file is missing, or the health
// check fails.
func Discover(tempDir string) (string, error) {
	// Try to acquire the lock — if we succeed, no server is running.
	lockPath := filepath.Join(tempDir, lockFileName)
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return "", fmt.Errorf("failed to check lock: %w", err)
	}
	if locked {
		// No server running — release the lock we just acquired.
		_ = fl.Unlock()
		return "", fmt.Errorf("no running droid server found (start droid first)")
	}

	// Lock is held — read the port file.
	portPath := filepath.Join(tempDir, portFileName)
	data, err := os.ReadFile(portPath)
	if err != nil {
		return "", fmt.Errorf("droid server detected but port file missing (try 'droid cleanup'): %w", err)
	}

	addr := strings.TrimSpace(string(data))
	if addr == "" {
		return "", fmt.Errorf("droid port file is empty (try 'droid cleanup')")
	}

	baseURL := fmt.Sprintf("http://%s", addr)

	// Health check to verify the server is responsive.
	client := &http.Client{Timeout: healthTimeout}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return "", fmt.Errorf("droid server not responding (try 'droid cleanup'): %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("droid health check failed (status %d)", resp.StatusCode)
	}

	return baseURL, nil
}

// pattern: Imperative Shell
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"droid/internal/instance"
)

// Delegate coordinates discovering a running droid server and delegating
// a CLI command to it via HTTP. It handles error classification (no server
// vs other errors) and exit code logic.
type Delegate struct {
	// TempDir is the directory holding the lock and port files.
	TempDir string

	// ExitFunc is called to exit the process. Defaults to os.Exit.
	// Overridable for testing.
	ExitFunc func(int)

	// Stderr is where error messages are written. Defaults to os.Stderr.
	// Overridable for testing.
	Stderr io.Writer

	// ClientTimeout is the HTTP client timeout. Defaults to 10 seconds.
	ClientTimeout time.Duration
}

// discover initializes defaults, discovers the running server, and returns an HTTP client.
// On discovery error, prints error message, calls ExitFunc, and returns nil.
func (d *Delegate) discover() *instance.Client {
	if d.ExitFunc == nil {
		d.ExitFunc = os.Exit
	}
	if d.Stderr == nil {
		d.Stderr = os.Stderr
	}
	if d.ClientTimeout == 0 {
		d.ClientTimeout = 10 * time.Second
	}

	baseURL, err := instance.Discover(d.TempDir)
	if err != nil {
		errMsg := err.Error()
		fmt.Fprintf(d.Stderr, "error: %v\n", err)

		// Check if this is a "no server" error
		if strings.Contains(errMsg, "no running droid server found") {
			d.ExitFunc(2)
		} else {
			d.ExitFunc(1)
		}
		return nil
	}

	return instance.NewClientWithTimeout(baseURL, d.ClientTimeout)
}

// Run executes a delegated command by discovering the running server and
// invoking fn with an HTTP client targeting it.
//
// Exit codes:
// - 2: no running droid server found
// - 1: any other error (connection, client method failed, etc.)
// - 0: success (fn returned nil)
func (d *Delegate) Run(fn func(*instance.Client) error) {
	client := d.discover()
	if client == nil {
		return
	}

	err := fn(client)
	if err != nil {
		errMsg := err.Error()
		// Extract the message portion if this is a formatted server error
		if strings.Contains(errMsg, "droid returned status") {
			// Error message is in format: "droid returned status %d: %s"
			parts := strings.SplitN(errMsg, ": ", 2)
			if len(parts) > 1 {
				fmt.Fprintf(d.Stderr, "error: %s\n", parts[1])
			} else {
				fmt.Fprintf(d.Stderr, "error: %s\n", errMsg)
			}
		} else {
			fmt.Fprintf(d.Stderr, "error: %s\n", errMsg)
		}
		d.ExitFunc(1)
		return
	}
}

// PrintJSON pretty-prints JSON data to stdout.
// If stdout is a terminal, uses indentation for readability.
// Otherwise outputs raw bytes.
func PrintJSON(data []byte) error {
	// Check if stdout is a terminal
	fi, _ := os.Stdout.Stat()
	isTerm := (fi.Mode() & os.ModeCharDevice) != 0

	if isTerm {
		// Pretty-print with indentation
		var obj any
		err := json.Unmarshal(data, &obj)
		if err != nil {
			// If JSON parsing fails, just write raw
			_, err := os.Stdout.Write(data)
			return err
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(obj)
	}

	// Write raw bytes
	_, err := os.Stdout.Write(data)
	return err
}

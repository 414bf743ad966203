// pattern: Functional Core

package branch

import (
	"math"
	"time"
)

// State names the lifecycle phase of a branch's current run.
type State string

const (
	// StateIdle means no process has been launched since startup.
	StateIdle State = "idle"
	// StateRunning means the recorded process has not exited yet.
	StateRunning State = "running"
	// StateCancelling means a kill was requested and the exit
	// notification has not arrived yet.
	StateCancelling State = "cancelling"
	// StateExited means the recorded process has exited. The record
	// persists until the next start.
	StateExited State = "exited"
)

// Status is a point-in-time snapshot of a branch's run state. ExitCode
// is meaningful only when State is StateExited.
type Status struct {
	State          State  `json:"state"`
	Action         string `json:"action,omitempty"`
	Command        string `json:"command,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds,omitempty"`
	ExitCode       int    `json:"exit_code"`
	Cancelled      bool   `json:"cancelled,omitempty"`
}

// elapsedSeconds reports wall-clock runtime rounded up to whole seconds.
func elapsedSeconds(started, now time.Time) int {
	return int(math.Ceil(now.Sub(started).Seconds()))
}

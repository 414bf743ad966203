// pattern: Imperative Shell

package branch

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"droid/internal/logging"
)

// cancelWait bounds how long Cancel blocks for the exit notification
// before returning with the process still in the Cancelling state.
const cancelWait = 2 * time.Second

// Branch is one working copy under the workspace root plus the runtime
// state of its most recent launched process.
type Branch struct {
	name        string
	dir         string
	consolePath string
	logger      *logging.ScopedLogger

	mu        sync.Mutex
	run       *run
	cancelled bool
}

// run records one launched process. A superseded run's waiter goroutine
// touches only its own record, never the owning Branch, so a stale exit
// cannot clobber the state of a newer run.
type run struct {
	action   string
	command  string
	cmd      *exec.Cmd
	started  time.Time
	done     chan struct{}
	exitCode int
}

func (r *run) exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Name returns the branch directory name.
func (b *Branch) Name() string { return b.name }

// Dir returns the branch working copy directory.
func (b *Branch) Dir() string { return b.dir }

// ConsolePath returns the file capturing the latest run's output.
func (b *Branch) ConsolePath() string { return b.consolePath }

// start launches the action's target in the branch working copy. A live
// predecessor is killed outright first. The process writes to a fresh
// console file that replaces the old one only once the process is
// running, so any launch failure leaves the previous capture untouched.
func (b *Branch) start(makeBin, action string, onExit func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r := b.run; r != nil && !r.exited() {
		b.logger.Info("killing superseded process", "action", r.action)
		_ = r.cmd.Process.Kill()
	}

	makePath, err := exec.LookPath(makeBin)
	if err != nil {
		b.run = nil
		return fmt.Errorf("locate %s: %w", makeBin, err)
	}

	// The new capture is staged beside the current console and renamed
	// over it after a successful launch. Followers key the stream
	// restart off the file swap, never off the file's size.
	staging := b.consolePath + ".next"
	console, err := os.OpenFile(staging, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		b.run = nil
		return fmt.Errorf("open console for %s: %w", b.name, err)
	}

	cmd := exec.Command(makePath, action)
	cmd.Dir = b.dir
	cmd.Stdout = console
	cmd.Stderr = console

	if err := cmd.Start(); err != nil {
		_ = console.Close()
		_ = os.Remove(staging)
		b.run = nil
		return fmt.Errorf("start %s %s in %s: %w", makeBin, action, b.name, err)
	}

	if err := os.Rename(staging, b.consolePath); err != nil {
		_ = cmd.Process.Kill()
		go func() { _ = cmd.Wait() }()
		_ = console.Close()
		_ = os.Remove(staging)
		b.run = nil
		return fmt.Errorf("install console for %s: %w", b.name, err)
	}

	r := &run{
		action:  action,
		command: makeBin + " " + action,
		cmd:     cmd,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	b.run = r
	b.cancelled = false

	b.logger.Info("process started",
		"action", action,
		"command", r.command,
		"pid", cmd.Process.Pid)

	go b.wait(r, console, onExit)

	return nil
}

// wait reaps the process and records the exit on the run that owns it.
func (b *Branch) wait(r *run, console *os.File, onExit func()) {
	err := r.cmd.Wait()
	r.exitCode = exitCode(err)
	_ = console.Close()
	close(r.done)

	b.logger.Info("process exited", "action", r.action, "exitCode", r.exitCode)

	if onExit != nil {
		onExit()
	}
}

// exitCode maps a Wait error to the child's exit status. A killed
// process reports the platform's signal code (-1 on Unix); a wait
// failure that carries no exit status also reports -1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// cancel kills the recorded process, marks the branch cancelled, and
// waits up to cancelWait for the exit notification. It reports whether
// a run was recorded.
func (b *Branch) cancel() bool {
	b.mu.Lock()
	r := b.run
	if r == nil {
		b.mu.Unlock()
		return false
	}
	if !r.exited() {
		_ = r.cmd.Process.Kill()
	}
	b.cancelled = true
	b.mu.Unlock()

	b.logger.Info("cancel requested", "action", r.action)

	select {
	case <-r.done:
	case <-time.After(cancelWait):
		b.logger.Warn("cancelled process not reaped in time", "action", r.action)
	}
	return true
}

// Status reports a point-in-time snapshot of the branch's run state.
func (b *Branch) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.run
	if r == nil {
		return Status{State: StateIdle}
	}

	s := Status{
		Action:    r.action,
		Command:   r.command,
		Cancelled: b.cancelled,
	}
	switch {
	case r.exited():
		s.State = StateExited
		s.ExitCode = r.exitCode
	case b.cancelled:
		s.State = StateCancelling
	default:
		s.State = StateRunning
		s.ElapsedSeconds = elapsedSeconds(r.started, time.Now())
	}
	return s
}

// Console returns the full captured output of the latest run.
func (b *Branch) Console() (string, error) {
	data, err := os.ReadFile(b.consolePath)
	if err != nil {
		return "", fmt.Errorf("read console for %s: %w", b.name, err)
	}
	return string(data), nil
}

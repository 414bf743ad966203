// pattern: Functional Core
package cli

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestApp_Execute_NoArgs_ReturnsTrueForServer(t *testing.T) {
	app := NewApp("1.0.0")
	result := app.Execute(nil)
	if !result {
		t.Errorf("Execute(nil) returned %v, want true", result)
	}
}

func TestApp_Execute_Command_Dispatches(t *testing.T) {
	app := NewApp("1.0.0")
	called := false
	passedArgs := []string(nil)
	cmd := &Command{
		Name:    "run",
		Summary: "Start a make action on a branch",
		Usage:   "Usage: droid run <branch> <action>",
		Run: func(args []string) error {
			called = true
			passedArgs = args
			return nil
		},
	}
	app.AddCommand(cmd)

	result := app.Execute([]string{"run", "main", "build"})
	if result {
		t.Errorf("Execute with command returned %v, want false", result)
	}
	if !called {
		t.Errorf("Command Run was not called")
	}
	if len(passedArgs) != 2 || passedArgs[0] != "main" || passedArgs[1] != "build" {
		t.Errorf("Command received args %v, want [main build]", passedArgs)
	}
}

func TestApp_Execute_HelpFlag_PrintsUsage(t *testing.T) {
	app := NewApp("1.0.0")

	runCalled := false
	cmd := &Command{
		Name:    "run",
		Summary: "Start a make action on a branch",
		Usage:   "Usage: droid run <branch> <action>",
		Run: func(args []string) error {
			runCalled = true
			return nil
		},
	}
	app.AddCommand(cmd)

	// Capture stderr
	oldStderr := os.Stderr
	defer func() { os.Stderr = oldStderr }()

	r, w, _ := os.Pipe()
	os.Stderr = w

	result := app.Execute([]string{"run", "--help"})

	w.Close()
	buf := &bytes.Buffer{}
	buf.ReadFrom(r)
	os.Stderr = oldStderr

	if result {
		t.Errorf("Execute with --help returned %v, want false", result)
	}
	if runCalled {
		t.Errorf("Command Run was called, should have printed usage instead")
	}
	output := buf.String()
	if !strings.Contains(output, "Usage: droid run") {
		t.Errorf("Usage output missing expected usage string, got: %s", output)
	}
}

func TestApp_PrintHelp_ListsCommandsInOrder(t *testing.T) {
	app := NewApp("1.0.0")
	app.AddCommand(&Command{Name: "init", Summary: "Create droid.yml interactively"})
	app.AddCommand(&Command{Name: "tail", Summary: "Stream a branch's console to stdout"})

	buf := &bytes.Buffer{}
	app.PrintHelp(buf)

	output := buf.String()
	if output == "" {
		t.Fatal("PrintHelp produced no output")
	}

	initIdx := strings.Index(output, "init")
	tailIdx := strings.Index(output, "tail")
	if initIdx < 0 || tailIdx < 0 {
		t.Fatalf("Help missing registered commands, got: %s", output)
	}
	if initIdx > tailIdx {
		t.Errorf("Help lists commands out of registration order, got: %s", output)
	}

	if !strings.Contains(output, "Start the web server") {
		t.Errorf("Help missing the no-command server line, got: %s", output)
	}
}

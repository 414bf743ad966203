// pattern: Functional Core
package cli

import (
	"fmt"
	"io"
	"os"
)

// Command represents a single CLI command with its metadata and handler.
type Command struct {
	Name    string
	Summary string
	Usage   string
	Run     func(args []string) error
}

// App represents the CLI application: a flat table of commands.
type App struct {
	commands map[string]*Command
	order    []string
	version  string
}

// NewApp creates a new CLI application with the given version.
func NewApp(version string) *App {
	return &App{
		commands: make(map[string]*Command),
		version:  version,
	}
}

// AddCommand registers a command. Help output lists commands in
// registration order.
func (a *App) AddCommand(cmd *Command) {
	if _, ok := a.commands[cmd.Name]; !ok {
		a.order = append(a.order, cmd.Name)
	}
	a.commands[cmd.Name] = cmd
}

// Execute dispatches the CLI arguments to the appropriate command.
// Returns true if the server should be started, false otherwise.
func (a *App) Execute(args []string) bool {
	// No args: start the server
	if len(args) == 0 {
		return true
	}

	cmdName := args[0]

	cmd, ok := a.commands[cmdName]
	if !ok {
		a.PrintHelp(os.Stderr)
		os.Exit(1)
		return false
	}

	for _, arg := range args[1:] {
		if arg == "--help" || arg == "-h" {
			fmt.Fprintf(os.Stderr, "%s\n", cmd.Usage)
			return false
		}
	}

	// Commands that talk to a running server report remote errors and
	// exit themselves (see Delegate). Errors returned here are local
	// ones, usage mistakes mostly.
	if err := cmd.Run(args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return false
}

// PrintHelp prints the top-level help text.
func (a *App) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "Usage: droid [options] [command]\n\n")
	fmt.Fprintf(w, "Commands:\n")

	for _, name := range a.order {
		cmd := a.commands[name]
		fmt.Fprintf(w, "  %-10s %s\n", cmd.Name, cmd.Summary)
	}

	fmt.Fprintf(w, "  %-10s %s\n", "(none)", "Start the web server")

	fmt.Fprintf(w, "\nUse \"droid <command> --help\" for command details.\n\n")
	fmt.Fprintf(w, "Options:\n")
}

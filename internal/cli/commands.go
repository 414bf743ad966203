// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"droid/internal/instance"
	"droid/internal/wizard"
)

// Options carries the paths main resolves from flags and droid.yml before
// dispatching.
type Options struct {
	// ConfigPath is the droid.yml location, for the init command.
	ConfigPath string

	// TempDir is the directory holding a running server's lock and
	// port files.
	TempDir string
}

// BuildApp creates and configures the CLI application with all commands.
func BuildApp(version string, opts Options) *App {
	app := NewApp(version)

	app.AddCommand(&Command{
		Name:    "init",
		Summary: "Create droid.yml interactively",
		Usage:   "Usage: droid init",
		Run: func(args []string) error {
			return wizard.Run(opts.ConfigPath)
		},
	})

	app.AddCommand(&Command{
		Name:    "list",
		Summary: "Output JSON data about all workspace branches",
		Usage:   "Usage: droid list",
		Run: func(args []string) error {
			delegate := Delegate{TempDir: opts.TempDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Branches()
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	app.AddCommand(&Command{
		Name:    "status",
		Summary: "Output JSON detail for one branch",
		Usage:   "Usage: droid status <branch>",
		Run: func(args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: droid status <branch>")
			}
			delegate := Delegate{TempDir: opts.TempDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Branch(args[0])
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	app.AddCommand(&Command{
		Name:    "run",
		Summary: "Start a make action on a branch",
		Usage:   "Usage: droid run <branch> <action>",
		Run: func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: droid run <branch> <action>")
			}
			delegate := Delegate{TempDir: opts.TempDir}
			delegate.Run(func(client *instance.Client) error {
				if _, err := client.Run(args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("Started %s on %s.\n", args[1], args[0])
				return nil
			})
			return nil
		},
	})

	app.AddCommand(&Command{
		Name:    "cancel",
		Summary: "Cancel the process running on a branch",
		Usage:   "Usage: droid cancel <branch>",
		Run: func(args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: droid cancel <branch>")
			}
			delegate := Delegate{TempDir: opts.TempDir}
			delegate.Run(func(client *instance.Client) error {
				if _, err := client.Cancel(args[0]); err != nil {
					return err
				}
				fmt.Println("Cancel requested.")
				return nil
			})
			return nil
		},
	})

	app.AddCommand(&Command{
		Name:    "tail",
		Summary: "Stream a branch's console to stdout",
		Usage:   "Usage: droid tail <branch> [--no-color]",
		Run: func(args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: droid tail <branch> [--no-color]")
			}
			noColor := false
			for _, arg := range args[1:] {
				if arg == "--no-color" {
					noColor = true
				}
			}
			delegate := Delegate{TempDir: opts.TempDir}
			delegate.Run(func(client *instance.Client) error {
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
				defer stop()
				return TailConsole(ctx, TailConfig{
					URL:     client.ConsoleTailURL(args[0]),
					NoColor: noColor,
					Writer:  os.Stdout,
				})
			})
			return nil
		},
	})

	app.AddCommand(&Command{
		Name:    "cleanup",
		Summary: "Remove stale lock/port files from a crashed server",
		Usage:   "Usage: droid cleanup",
		Run: func(args []string) error {
			return runCleanupCommand(opts.TempDir)
		},
	})

	app.AddCommand(&Command{
		Name:    "version",
		Summary: "Print version and exit",
		Usage:   "Usage: droid version",
		Run: func(args []string) error {
			fmt.Println(version)
			return nil
		},
	})

	return app
}

// runCleanupCommand removes stale lock and port files from a crashed server.
func runCleanupCommand(tempDir string) error {
	// Try to acquire the lock to verify no server is actually running
	fl, err := instance.Lock(tempDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: a droid server appears to be running. Stop it first.\n")
		os.Exit(1)
	}
	// We got the lock — no server is running. Clean up and release.
	instance.Cleanup(tempDir, fl)
	fmt.Println("Cleaned up stale lock and port files.")
	return nil
}

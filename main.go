// pattern: Imperative Shell
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"droid/internal/branch"
	"droid/internal/cli"
	"droid/internal/config"
	"droid/internal/instance"
	"droid/internal/logging"
	"droid/internal/web"
)

var version = "dev"

func main() {
	// Stop parsing flags after the first non-flag arg (the subcommand),
	// so that --help after a subcommand is handled by the subcommand.
	flag.CommandLine.SetInterspersed(false)

	configPath := flag.StringP("config", "c", config.DefaultPath, "configuration file")
	flag.String("bind", "", "address to bind the web server to")
	flag.Int("port", 0, "web server port (0 picks a free one)")
	flag.String("workspace", "", "directory holding the branch checkouts")
	flag.String("temp", "", "directory for console captures and run state")
	flag.String("log-level", "", "log level (debug, info, warn, error)")

	// Override flag.Usage before Parse so --help uses the CLI app's help
	flag.Usage = func() {
		app := cli.BuildApp(version, cli.Options{})
		app.PrintHelp(os.Stderr)
		flag.PrintDefaults()
	}

	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(&cfg, flag.CommandLine)

	app := cli.BuildApp(version, cli.Options{
		ConfigPath: *configPath,
		TempDir:    cfg.Paths.Temp,
	})

	if app.Execute(flag.Args()) {
		runServer(cfg)
	}
}

// applyFlagOverrides lets explicitly set command line flags win over
// droid.yml values.
func applyFlagOverrides(cfg *config.Config, flags *flag.FlagSet) {
	if flags.Changed("bind") {
		cfg.Server.Bind, _ = flags.GetString("bind")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("workspace") {
		cfg.Paths.Workspace, _ = flags.GetString("workspace")
	}
	if flags.Changed("temp") {
		cfg.Paths.Temp, _ = flags.GetString("temp")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
}

// runServer starts the web server and blocks until SIGINT/SIGTERM.
func runServer(cfg config.Config) {
	if !cfg.Found {
		fmt.Fprintln(os.Stderr, "No droid.yml found. Run 'droid init' to create one.")
	}

	if err := cfg.Validate(exec.LookPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Acquire single-instance lock before touching the workspace
	fl, err := instance.Lock(cfg.Paths.Temp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer instance.Cleanup(cfg.Paths.Temp, fl)

	logManager, err := logging.NewManager(logging.Config{
		FilePath: filepath.Join(cfg.Paths.Temp, "droid.log"),
		Level:    cfg.Log.Level,
		Console:  true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logManager.Close() }()

	appLogger := logManager.For("app")
	appLogger.Info("droid starting", "version", version)

	manager, err := branch.NewManager(branch.Config{
		WorkspaceDir: cfg.Paths.Workspace,
		TempDir:      cfg.Paths.Temp,
		MakeBinary:   cfg.Make.Binary,
	}, logManager)
	if err != nil {
		appLogger.Error("workspace scan failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	projectName := cfg.Project.Name
	if projectName == "" {
		projectName = "droid"
	}

	webServer := web.New(
		web.Config{
			Bind:        cfg.Server.Bind,
			Port:        cfg.Server.Port,
			MakeBinary:  cfg.Make.Binary,
			ProjectName: projectName,
			GitHubURL:   cfg.GitHubURL(),
		},
		manager,
		logManager,
	)
	ln, err := webServer.Listen()
	if err != nil {
		appLogger.Error("web server listen error", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Write port file for CLI discovery
	if err := instance.WritePort(cfg.Paths.Temp, webServer.Addr()); err != nil {
		appLogger.Error("failed to write port file", "error", err)
	}

	fmt.Printf("droid serving %s on http://%s\n", projectName, webServer.Addr())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- webServer.Serve(ln)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		appLogger.Info("shutting down", "signal", sig.String())
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			appLogger.Error("web server error", "error", err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := webServer.Shutdown(ctx); err != nil {
		appLogger.Error("web server shutdown error", "error", err)
	}
	<-serveErr

	appLogger.Info("droid stopped")
}

// pattern: Imperative Shell

package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"path"
	"time"

	"droid/internal/branch"
	"droid/internal/logging"
	"droid/internal/makefile"
)

//go:embed templates
var templateFS embed.FS

// phonyScanner abstracts the make dry-run so page tests do not need a
// make binary on PATH.
type phonyScanner func(ctx context.Context, dir string) (map[string]bool, error)

// Config holds web server configuration.
type Config struct {
	Bind        string
	Port        int
	MakeBinary  string
	ProjectName string
	GitHubURL   string
}

// Server serves the HTML pages and the JSON API over one mux.
type Server struct {
	httpServer *http.Server
	branches   *branch.Manager
	cfg        Config
	logger     *logging.ScopedLogger
	addr       string
	listener   net.Listener
	events     *eventBroker
	templates  *template.Template
	phony      phonyScanner
}

// New creates a web server for the given branch manager.
// logProvider must implement logging.LoggerProvider (both *logging.Manager
// and *logging.TestManager satisfy this interface).
func New(cfg Config, branches *branch.Manager, logProvider logging.LoggerProvider) *Server {
	logger := logProvider.For("web")
	addr := fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port)

	mux := http.NewServeMux()

	events := newEventBroker()
	if branches != nil {
		branches.OnChange(events.Notify)
	}

	funcs := template.FuncMap{
		"basename": path.Base,
	}
	templates := template.Must(
		template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		branches:  branches,
		cfg:       cfg,
		logger:    logger,
		addr:      addr,
		events:    events,
		templates: templates,
		phony: func(ctx context.Context, dir string) (map[string]bool, error) {
			return makefile.PhonyNames(ctx, cfg.MakeBinary, dir)
		},
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /branches/{branch}", s.handleBranchPage)
	mux.HandleFunc("GET /branches/{branch}/views/{path...}", s.handleViewFile)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/branches", s.handleListBranches)
	mux.HandleFunc("GET /api/branches/{branch}", s.handleGetBranch)
	mux.HandleFunc("POST /api/branches/{branch}/actions/{action}", s.handleRunAction)
	mux.HandleFunc("POST /api/branches/{branch}/cancel", s.handleCancel)
	mux.HandleFunc("GET /api/branches/{branch}/console", s.handleConsole)
	mux.HandleFunc("GET /api/branches/{branch}/console/tail", s.HandleConsoleTail)

	return s
}

// Listen binds the server to its configured address and returns the listener.
// Call Serve() after Listen() to start accepting connections.
// This two-step approach allows callers to obtain the actual bound address
// (useful for ephemeral port 0 in tests) before the server blocks on Serve().
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("web server listen: %w", err)
	}
	s.listener = ln
	return ln, nil
}

// Serve accepts connections on the listener. Blocks until the server stops.
// Must call Listen() first.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("web server started", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Start is a convenience that calls Listen() then Serve(). Blocks until the server stops.
func (s *Server) Start() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Addr returns the address the server is listening on.
// Only valid after Listen() or Start() has been called.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("web server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// SetPhonyScannerForTest replaces the make dry-run scanner. Test-only.
func (s *Server) SetPhonyScannerForTest(fn func(ctx context.Context, dir string) (map[string]bool, error)) {
	s.phony = fn
}

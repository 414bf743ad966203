// pattern: Imperative Shell

package web

import (
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"droid/internal/branch"
	"droid/internal/makefile"
)

// indexData feeds the index template.
type indexData struct {
	ProjectName string
	GitHubURL   string
	Branches    []branchRow
}

type branchRow struct {
	Name   string
	Status branch.Status
}

// branchPageData feeds the branch template.
type branchPageData struct {
	ProjectName  string
	GitHubURL    string
	Name         string
	Status       branch.Status
	Actions      []makefile.Target
	Views        []makefile.Target
	WorkflowHTML template.HTML
	Console      string
}

// errorData feeds the error template.
type errorData struct {
	ProjectName string
	Code        int
	Message     string
}

func (s *Server) renderPage(w http.ResponseWriter, name string, status int, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template render failed", "template", name, "error", err)
	}
}

// renderError shows a visible error page instead of a truncated catalog.
func (s *Server) renderError(w http.ResponseWriter, code int, message string) {
	s.renderPage(w, "error.html", code, errorData{
		ProjectName: s.cfg.ProjectName,
		Code:        code,
		Message:     message,
	})
}

// handleIndex handles GET /. Lists all branches with their run state.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{
		ProjectName: s.cfg.ProjectName,
		GitHubURL:   s.cfg.GitHubURL,
	}
	for _, b := range s.branches.List() {
		data.Branches = append(data.Branches, branchRow{
			Name:   b.Name(),
			Status: b.Status(),
		})
	}
	s.renderPage(w, "index.html", http.StatusOK, data)
}

// handleBranchPage handles GET /branches/{branch}.
//
// An `action` query parameter is dispatched first: the reserved value
// cancels the current run, any other value starting a declared action's
// target; both redirect back to the plain page. An action value matching
// no declared action starts nothing and still redirects. Without the
// parameter the page renders the target catalog, workflow document,
// run status, and console text.
func (s *Server) handleBranchPage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("branch")
	b, ok := s.branches.Get(name)
	if !ok {
		s.renderError(w, http.StatusNotFound, "unknown branch: "+name)
		return
	}

	if action := r.URL.Query().Get("action"); action != "" {
		s.dispatchAction(w, r, b, action)
		return
	}

	lines, err := makefile.ReadLines(b.Dir())
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err.Error())
		return
	}
	targets, err := makefile.ParseTargets(lines)
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// A failed dry-run degrades to an unclassified workflow rather than
	// an unusable page.
	phony, err := s.phony(r.Context(), b.Dir())
	if err != nil {
		s.logger.Warn("phony target scan failed", "branch", name, "error", err)
		phony = map[string]bool{}
	}

	workflow, err := makefile.ExtractWorkflow(lines, name, phony)
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err.Error())
		return
	}

	console, err := s.branches.Console(name)
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.renderPage(w, "branch.html", http.StatusOK, branchPageData{
		ProjectName:  s.cfg.ProjectName,
		GitHubURL:    s.cfg.GitHubURL,
		Name:         name,
		Status:       b.Status(),
		Actions:      makefile.Actions(targets),
		Views:        makefile.Views(targets),
		WorkflowHTML: template.HTML(workflow.HTML),
		Console:      console,
	})
}

// dispatchAction handles the ?action= query on a branch page and
// redirects back to the page.
func (s *Server) dispatchAction(w http.ResponseWriter, r *http.Request, b *branch.Branch, action string) {
	name := b.Name()

	if action == makefile.ReservedCancel {
		if err := s.branches.Cancel(name); err != nil {
			s.renderError(w, http.StatusInternalServerError, err.Error())
			return
		}
		http.Redirect(w, r, "/branches/"+name, http.StatusSeeOther)
		return
	}

	targets, err := makefile.ReadTargets(b.Dir())
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if t, ok := makefile.FindAction(targets, action); ok {
		if err := s.branches.Start(name, t.Name); err != nil {
			s.renderError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	http.Redirect(w, r, "/branches/"+name, http.StatusSeeOther)
}

// handleViewFile handles GET /branches/{branch}/views/{path...}.
// The path must exactly match a path declared by a VIEW directive;
// anything else is 404, never a directory listing.
func (s *Server) handleViewFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("branch")
	b, ok := s.branches.Get(name)
	if !ok {
		s.renderError(w, http.StatusNotFound, "unknown branch: "+name)
		return
	}

	viewPath := r.PathValue("path")
	if !fs.ValidPath(viewPath) {
		s.renderError(w, http.StatusNotFound, "no such view: "+viewPath)
		return
	}

	targets, err := makefile.ReadTargets(b.Dir())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, makefile.ErrNoMakefile) {
			status = http.StatusNotFound
		}
		s.renderError(w, status, err.Error())
		return
	}

	if !makefile.HasViewPath(targets, viewPath) {
		s.renderError(w, http.StatusNotFound, "no such view: "+viewPath)
		return
	}

	// ServeContent rather than ServeFile: a declared path ending in
	// index.html must not trigger the directory redirect.
	f, err := os.Open(filepath.Join(b.Dir(), filepath.FromSlash(viewPath)))
	if err != nil {
		s.renderError(w, http.StatusNotFound, "view file missing: "+viewPath)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.renderError(w, http.StatusNotFound, "view file missing: "+viewPath)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// pattern: Imperative Shell

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"droid/internal/branch"
	"droid/internal/makefile"
)

// BranchResponse is the JSON representation of a branch and its run state.
type BranchResponse struct {
	Name string `json:"name"`
	branch.Status
}

// BranchDetailResponse adds the target catalog and workflow document.
type BranchDetailResponse struct {
	BranchResponse
	Actions  []makefile.Target  `json:"actions"`
	Views    []makefile.Target  `json:"views"`
	Workflow *makefile.Workflow `json:"workflow,omitempty"`
}

// handleListBranches handles GET /api/branches.
// Returns a JSON array of all branches with their run state.
func (s *Server) handleListBranches(w http.ResponseWriter, r *http.Request) {
	branches := s.branches.List()
	result := make([]BranchResponse, 0, len(branches))

	for _, b := range branches {
		result = append(result, BranchResponse{
			Name:   b.Name(),
			Status: b.Status(),
		})
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetBranch handles GET /api/branches/{branch}.
// Returns the branch's run state plus its target catalog and workflow.
// Returns 404 for unknown branches, 500 when the Makefile cannot be parsed.
func (s *Server) handleGetBranch(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("branch")
	b, ok := s.branches.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "branch not found")
		return
	}

	lines, err := makefile.ReadLines(b.Dir())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	targets, err := makefile.ParseTargets(lines)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	phony, err := s.phony(r.Context(), b.Dir())
	if err != nil {
		s.logger.Warn("phony target scan failed", "branch", name, "error", err)
		phony = map[string]bool{}
	}
	workflow, err := makefile.ExtractWorkflow(lines, name, phony)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := BranchDetailResponse{
		BranchResponse: BranchResponse{Name: name, Status: b.Status()},
		Actions:        makefile.Actions(targets),
		Views:          makefile.Views(targets),
	}
	if !workflow.Empty() {
		resp.Workflow = &workflow
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleRunAction handles POST /api/branches/{branch}/actions/{action}.
// Starts the declared action's make target, killing any live run first.
// Returns 404 for unknown branches or actions, 500 on parse or spawn
// failure.
func (s *Server) handleRunAction(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("branch")
	action := r.PathValue("action")

	b, ok := s.branches.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "branch not found")
		return
	}

	targets, err := makefile.ReadTargets(b.Dir())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	t, ok := makefile.FindAction(targets, action)
	if !ok {
		writeError(w, http.StatusNotFound, "action not found")
		return
	}

	if err := s.branches.Start(name, t.Name); err != nil {
		s.logger.Error("action start failed", "branch", name, "action", action, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start action")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "started",
		"action": t.Name,
	})
}

// handleCancel handles POST /api/branches/{branch}/cancel.
// Kills the branch's recorded run, if any. Returns 404 for unknown
// branches; cancelling an idle branch is a no-op success.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("branch")

	if err := s.branches.Cancel(name); err != nil {
		writeError(w, http.StatusNotFound, "branch not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// handleConsole handles GET /api/branches/{branch}/console.
// Returns the full captured output of the branch's latest run as text.
func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("branch")

	console, err := s.branches.Console(name)
	if err != nil {
		if errors.Is(err, branch.ErrNotFound) {
			writeError(w, http.StatusNotFound, "branch not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read console")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(console))
}

// writeJSON writes v as JSON with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// pattern: Imperative Shell

package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"

	"droid/internal/branch"
)

// HandleConsoleTail upgrades to websocket and streams the branch console:
// the full current content first, then live appends. A new run replacing
// the console restarts the stream from the new content's beginning.
func (s *Server) HandleConsoleTail(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("branch")
	b, ok := s.branches.Get(name)
	if !ok {
		http.Error(w, "branch not found", http.StatusNotFound)
		return
	}

	logger := s.logger.With("branch", name)

	// Upgrade to websocket — do NOT use r.Context() after this.
	// Restrict to localhost origins to prevent cross-origin WebSocket attacks.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"127.0.0.1:*", "localhost:*"},
	})
	if err != nil {
		logger.Error("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(1 << 20) // 1 MB read limit

	follower, err := branch.NewFollower(b.ConsolePath(), logger)
	if err != nil {
		logger.Error("console follower failed", "error", err)
		_ = conn.Close(websocket.StatusInternalError, "console tail failed to start")
		return
	}

	// Tail clients never send data, so CloseRead's context doubles as
	// the disconnect signal.
	ctx, cancel := context.WithCancel(conn.CloseRead(context.Background()))
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- follower.Start(ctx) }()

	logger.Info("console tail connected")

	for chunk := range follower.Chunks() {
		if err := conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
			cancel()
			break
		}
	}

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("console tail ended", "error", err)
	}
	logger.Info("console tail disconnected")

	_ = conn.Close(websocket.StatusNormalClosure, "console tail closed")
}

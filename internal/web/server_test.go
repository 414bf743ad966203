package web_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"droid/internal/logging"
	"droid/internal/web"
)

func newHealthServer(t *testing.T) *web.Server {
	t.Helper()
	return web.New(
		web.Config{Bind: "127.0.0.1", Port: 0},
		nil, // *branch.Manager not needed for health endpoint
		logging.NewTestManager(),
	)
}

// serve starts the server and registers a cleanup that shuts it down.
func serve(t *testing.T, s *web.Server) string {
	t.Helper()

	ln, err := s.Listen()
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		<-done
	})

	return "http://" + s.Addr()
}

func TestNew_ReturnsNonNil(t *testing.T) {
	if newHealthServer(t) == nil {
		t.Fatal("New() returned nil")
	}
}

func TestHandleHealth(t *testing.T) {
	baseURL := serve(t, newHealthServer(t))

	resp, err := http.Get(baseURL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body error = %v", err)
	}
	if want := `{"status":"ok"}`; string(body) != want {
		t.Errorf("body = %q, want %q", string(body), want)
	}
}

func TestServer_AddrBeforeListen(t *testing.T) {
	s := web.New(
		web.Config{Bind: "127.0.0.1", Port: 8765},
		nil,
		logging.NewTestManager(),
	)

	if addr := s.Addr(); addr != "127.0.0.1:8765" {
		t.Errorf("Addr() before Listen() = %q, want %q", addr, "127.0.0.1:8765")
	}
}

// TestServer_GracefulShutdown verifies that after Shutdown() the server no
// longer accepts new connections.
func TestServer_GracefulShutdown(t *testing.T) {
	s := newHealthServer(t)

	ln, err := s.Listen()
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	addr := s.Addr()

	resp, err := http.Get("http://" + addr + "/api/health")
	if err != nil {
		t.Fatalf("pre-shutdown GET: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pre-shutdown status = %d, want 200", resp.StatusCode)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutdownCancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	select {
	case err := <-done:
		if err != nil && err != http.ErrServerClosed {
			t.Errorf("Serve() returned unexpected error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Error("server did not stop after Shutdown()")
	}

	client := &http.Client{Timeout: 2 * time.Second}
	if _, err := client.Get("http://" + addr + "/api/health"); err == nil {
		t.Error("expected connection refused after Shutdown(), but GET succeeded")
	}
}

// TestServer_BindFailure verifies Start() returns an error when the
// configured port is already in use.
func TestServer_BindFailure(t *testing.T) {
	occupier, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not open occupier listener: %v", err)
	}
	defer func() { _ = occupier.Close() }()

	occupiedAddr := occupier.Addr().String()
	portStr := occupiedAddr[strings.LastIndex(occupiedAddr, ":")+1:]
	port := 0
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		t.Fatalf("parse port from %q: %v", occupiedAddr, err)
	}

	s := web.New(
		web.Config{Bind: "127.0.0.1", Port: port},
		nil,
		logging.NewTestManager(),
	)

	bindErr := s.Start()
	if bindErr == nil {
		t.Fatal("Start() returned nil error, expected bind error")
	}
	if errStr := bindErr.Error(); !strings.Contains(errStr, "address already in use") &&
		!strings.Contains(errStr, "bind") &&
		!strings.Contains(errStr, "listen") {
		t.Errorf("Start() error = %q; expected address-in-use or bind error", errStr)
	}
}

func TestUnknownPathIs404(t *testing.T) {
	baseURL := serve(t, newHealthServer(t))

	resp, err := http.Get(baseURL + "/no/such/page")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

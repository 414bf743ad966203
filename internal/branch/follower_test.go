package branch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"droid/internal/logging"
)

// startFollower runs a follower in a goroutine and returns a stop
// function that cancels it and checks the exit error.
func startFollower(t *testing.T, f *Follower) func() {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.Start(ctx) }()

	return func() {
		cancel()
		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Start() error = %v, want context.Canceled", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Start() did not return after cancel")
		}
	}
}

// readChunks accumulates chunks until the collected output contains want.
func readChunks(t *testing.T, ch <-chan []byte, want string) string {
	t.Helper()

	deadline := time.After(8 * time.Second)
	var got []byte
	for {
		if strings.Contains(string(got), want) {
			return string(got)
		}
		select {
		case chunk, ok := <-ch:
			if !ok {
				t.Fatalf("chunk channel closed before %q arrived, got %q", want, got)
			}
			got = append(got, chunk...)
		case <-deadline:
			t.Fatalf("timed out waiting for %q, got %q", want, got)
		}
	}
}

func TestFollower_DeliversExistingContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.txt")
	if err := os.WriteFile(path, []byte("hello\n"), 0644); err != nil {
		t.Fatalf("write console: %v", err)
	}

	f, err := NewFollower(path, logging.NopLogger())
	if err != nil {
		t.Fatalf("NewFollower() error = %v", err)
	}
	stop := startFollower(t, f)
	defer stop()

	readChunks(t, f.Chunks(), "hello\n")
}

func TestFollower_FollowsAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.txt")
	if err := os.WriteFile(path, []byte("one\n"), 0644); err != nil {
		t.Fatalf("write console: %v", err)
	}

	f, err := NewFollower(path, logging.NopLogger())
	if err != nil {
		t.Fatalf("NewFollower() error = %v", err)
	}
	stop := startFollower(t, f)
	defer stop()

	readChunks(t, f.Chunks(), "one\n")

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatalf("open console for append: %v", err)
	}
	if _, err := file.WriteString("two\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close console: %v", err)
	}

	readChunks(t, f.Chunks(), "two\n")
}

func TestFollower_RestartsOnTruncation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.txt")
	if err := os.WriteFile(path, []byte("first run output\n"), 0644); err != nil {
		t.Fatalf("write console: %v", err)
	}

	f, err := NewFollower(path, logging.NopLogger())
	if err != nil {
		t.Fatalf("NewFollower() error = %v", err)
	}
	stop := startFollower(t, f)
	defer stop()

	readChunks(t, f.Chunks(), "first run output\n")

	// A new run overwrites the console with shorter content.
	if err := os.WriteFile(path, []byte("second\n"), 0644); err != nil {
		t.Fatalf("overwrite console: %v", err)
	}

	readChunks(t, f.Chunks(), "second\n")
}

func TestFollower_RestartsOnConsoleSwap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.txt")
	if err := os.WriteFile(path, []byte("ran build\n"), 0644); err != nil {
		t.Fatalf("write console: %v", err)
	}

	f, err := NewFollower(path, logging.NopLogger())
	if err != nil {
		t.Fatalf("NewFollower() error = %v", err)
	}
	stop := startFollower(t, f)
	defer stop()

	readChunks(t, f.Chunks(), "ran build\n")

	// A new run swaps a fresh console into place, the way start does.
	// Its content is longer than everything delivered so far, so a
	// size comparison alone would miss the restart entirely.
	next := path + ".next"
	if err := os.WriteFile(next, []byte("ran deploy and then some\n"), 0644); err != nil {
		t.Fatalf("write staging console: %v", err)
	}
	if err := os.Rename(next, path); err != nil {
		t.Fatalf("swap console: %v", err)
	}

	readChunks(t, f.Chunks(), "ran deploy and then some\n")
}

func TestFollower_PicksUpCreatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.txt")

	f, err := NewFollower(path, logging.NopLogger())
	if err != nil {
		t.Fatalf("NewFollower() error = %v", err)
	}
	stop := startFollower(t, f)
	defer stop()

	if err := os.WriteFile(path, []byte("late arrival\n"), 0644); err != nil {
		t.Fatalf("create console: %v", err)
	}

	readChunks(t, f.Chunks(), "late arrival\n")
}

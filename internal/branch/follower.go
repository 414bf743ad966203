// pattern: Imperative Shell

package branch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"droid/internal/logging"
)

// followPoll is the safeguard interval for missed filesystem events.
const followPoll = 5 * time.Second

// Follower tails a branch console file. It delivers the existing content
// first, then follows appends. A run start swaps a fresh file into the
// console path, so a replaced file restarts the stream from the new
// content's beginning regardless of its size.
type Follower struct {
	path    string
	logger  *logging.ScopedLogger
	watcher *fsnotify.Watcher
	chunks  chan []byte

	mu     sync.Mutex
	file   *os.File
	offset int64
	closed bool
}

// NewFollower creates a follower for the given console file. The file
// may not exist yet; it is picked up on creation.
func NewFollower(path string, logger *logging.ScopedLogger) (*Follower, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	return &Follower{
		path:    path,
		logger:  logger,
		watcher: watcher,
		chunks:  make(chan []byte, 64),
	}, nil
}

// Chunks delivers console bytes in order. The channel is closed when
// Start returns.
func (f *Follower) Chunks() <-chan []byte { return f.chunks }

// Start begins following the console file. It returns when the context
// is cancelled.
func (f *Follower) Start(ctx context.Context) error {
	defer close(f.chunks)

	dir := filepath.Dir(f.path)
	if err := f.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	f.mu.Lock()
	_ = f.openFile()
	f.readNew(ctx)
	f.mu.Unlock()

	// Polling safeguard for environments where events go missing.
	ticker := time.NewTicker(followPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = f.Close()
			return ctx.Err()

		case event, ok := <-f.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(f.path) {
				continue
			}

			f.mu.Lock()
			switch {
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				f.closeFile()
			case event.Has(fsnotify.Create):
				f.closeFile()
				_ = f.openFile()
				f.readNew(ctx)
			case event.Has(fsnotify.Write):
				f.readNew(ctx)
			}
			f.mu.Unlock()

		case <-ticker.C:
			f.mu.Lock()
			if f.file == nil {
				_ = f.openFile()
			} else if f.replaced() {
				f.closeFile()
				_ = f.openFile()
			}
			f.readNew(ctx)
			f.mu.Unlock()

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("console watch error", "error", err)
		}
	}
}

func (f *Follower) openFile() error {
	if f.file != nil {
		return nil
	}

	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	f.file = file
	f.offset = 0
	return nil
}

func (f *Follower) closeFile() {
	if f.file != nil {
		_ = f.file.Close()
		f.file = nil
		f.offset = 0
	}
}

// replaced reports whether the path now names a different file than the
// open handle, which happens when a fresh console was swapped in and the
// rename's events went missing.
func (f *Follower) replaced() bool {
	cur, err := os.Stat(f.path)
	if err != nil {
		return false
	}
	old, err := f.file.Stat()
	if err != nil {
		return true
	}
	return !os.SameFile(cur, old)
}

// readNew sends any bytes past the last read offset. A shrunken file was
// overwritten in place, so the offset resets to the beginning.
func (f *Follower) readNew(ctx context.Context) {
	if f.file == nil {
		return
	}

	info, err := f.file.Stat()
	if err != nil {
		return
	}
	if info.Size() < f.offset {
		f.offset = 0
	}
	if info.Size() == f.offset {
		return
	}

	if _, err := f.file.Seek(f.offset, io.SeekStart); err != nil {
		return
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := f.file.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case f.chunks <- chunk:
				f.offset += int64(n)
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// Close stops the follower and releases the watcher.
func (f *Follower) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	f.closeFile()
	return f.watcher.Close()
}

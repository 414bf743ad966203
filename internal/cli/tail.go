// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/x/ansi"
	"github.com/coder/websocket"
)

// TailConfig configures console streaming.
type TailConfig struct {
	// URL is the websocket endpoint of the branch's console stream.
	URL string

	// NoColor strips ANSI escape sequences before writing.
	NoColor bool

	// Writer receives the console bytes.
	Writer io.Writer
}

// TailConsole dials the console websocket and streams its chunks to the
// writer: the full captured console first, then appends as the process
// writes. Blocks until the context is cancelled or the server closes the
// stream. Returns nil on clean exit (interrupt, normal closure).
func TailConsole(ctx context.Context, cfg TailConfig) error {
	conn, _, err := websocket.Dial(ctx, cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to console stream: %w", err)
	}
	defer conn.CloseNow()

	conn.SetReadLimit(1 << 20)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("console stream ended: %w", err)
		}

		out := data
		if cfg.NoColor {
			out = []byte(ansi.Strip(string(data)))
		}
		if _, err := cfg.Writer.Write(out); err != nil {
			return err
		}
	}
}

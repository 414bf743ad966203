// pattern: Imperative Shell

package makefile

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// phonyPrefix marks the make database lines declaring phony targets.
const phonyPrefix = ".PHONY:"

// PhonyNames runs the build tool in dry-run database mode (`make -np`) in
// dir and collects the declared phony target names. The result is the sole
// authority for action-vs-view link classification.
func PhonyNames(ctx context.Context, makeBin, dir string) (map[string]bool, error) {
	cmd := exec.CommandContext(ctx, makeBin, "-np")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("scan phony targets in %s: %w", dir, err)
	}
	return parsePhony(string(out)), nil
}

// parsePhony unions the names declared across all .PHONY lines.
func parsePhony(output string) map[string]bool {
	names := make(map[string]bool)
	for _, line := range SplitLines(output) {
		if !strings.HasPrefix(line, phonyPrefix) {
			continue
		}
		for _, name := range strings.Fields(line[len(phonyPrefix):]) {
			names[name] = true
		}
	}
	return names
}

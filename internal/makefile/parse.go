// pattern: Functional Core

package makefile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ReservedCancel is the query value that cancels a branch's current run
// instead of starting one. No declared action may use it.
const ReservedCancel = "cancel"

const (
	actionMarker = "# ACTION"
	viewMarker   = "# VIEW"
)

// viewHeaderPattern matches "# VIEW <name>[: <description>]". The name is
// mandatory; a header that does not match is skipped without consuming the
// following line.
var viewHeaderPattern = regexp.MustCompile(`^# VIEW\s+(\S.*?)(?:\s*:\s*(.*))?$`)

// Kind discriminates the two directive types.
type Kind string

const (
	KindAction Kind = "action"
	KindView   Kind = "view"
)

// Target is one ACTION or VIEW directive read from a Makefile.
type Target struct {
	Kind        Kind     `json:"kind"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Paths       []string `json:"paths,omitempty"` // views only
}

// ParseTargets scans Makefile lines for ACTION and VIEW directives.
//
// An ACTION header's description is its own text after the marker; the
// action name is the following line's text up to the first colon. A VIEW
// header carries name and description itself; the declared paths are the
// following line's whitespace tokens from the third onward.
//
// Targets come back in encounter order with duplicates preserved; the
// invocation surface resolves duplicate action names by first match.
func ParseTargets(lines []string) ([]Target, error) {
	var targets []Target

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, actionMarker+" "):
			description := strings.TrimSpace(line[len(actionMarker):])
			if i+1 >= len(lines) {
				return nil, fmt.Errorf("line %d: ACTION %q: %w", i+1, description, ErrMissingContent)
			}
			i++
			name, _, _ := strings.Cut(lines[i], ":")
			if name == ReservedCancel {
				return nil, fmt.Errorf("line %d: action %q: %w", i+1, name, ErrReservedName)
			}
			targets = append(targets, Target{
				Kind:        KindAction,
				Name:        name,
				Description: description,
			})

		case strings.HasPrefix(line, viewMarker+" "):
			m := viewHeaderPattern.FindStringSubmatch(line)
			if m == nil {
				// Malformed header: skip this line only, the next
				// line is not consumed as content.
				continue
			}
			if i+1 >= len(lines) {
				return nil, fmt.Errorf("line %d: VIEW %q: %w", i+1, m[1], ErrMissingContent)
			}
			i++
			var paths []string
			if fields := strings.Fields(lines[i]); len(fields) > 2 {
				paths = fields[2:]
			}
			targets = append(targets, Target{
				Kind:        KindView,
				Name:        m[1],
				Description: m[2],
				Paths:       paths,
			})
		}
	}

	return targets, nil
}

// ReadLines reads the Makefile in dir and returns its lines.
func ReadLines(dir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "Makefile"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", dir, ErrNoMakefile)
		}
		return nil, err
	}
	return SplitLines(string(data)), nil
}

// ReadTargets reads and parses the Makefile in dir.
func ReadTargets(dir string) ([]Target, error) {
	lines, err := ReadLines(dir)
	if err != nil {
		return nil, err
	}
	return ParseTargets(lines)
}

// SplitLines splits file text into lines, tolerating CRLF endings.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// FindAction returns the first action target with the given name.
func FindAction(targets []Target, name string) (Target, bool) {
	for _, t := range targets {
		if t.Kind == KindAction && t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// HasViewPath reports whether any view target declares path.
func HasViewPath(targets []Target, path string) bool {
	for _, t := range targets {
		if t.Kind != KindView {
			continue
		}
		for _, p := range t.Paths {
			if p == path {
				return true
			}
		}
	}
	return false
}

// Actions filters the catalog down to action targets, order preserved.
func Actions(targets []Target) []Target {
	var out []Target
	for _, t := range targets {
		if t.Kind == KindAction {
			out = append(out, t)
		}
	}
	return out
}

// Views filters the catalog down to view targets, order preserved.
func Views(targets []Target) []Target {
	var out []Target
	for _, t := range targets {
		if t.Kind == KindView {
			out = append(out, t)
		}
	}
	return out
}

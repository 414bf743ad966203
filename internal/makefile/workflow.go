// pattern: Functional Core

package makefile

import (
	"bytes"
	"net/url"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// workflowMarker opens the workflow comment block in a Makefile.
const workflowMarker = "# WORKFLOW"

// markdown is initialized once and reused. The configuration never changes
// and the goldmark instance is safe to share; parsing creates per-call
// state via Parse(reader).
var (
	markdown     goldmark.Markdown
	markdownOnce sync.Once
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdown
}

// WorkflowLink is one classified link from the workflow document.
type WorkflowLink struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Workflow is the rendered workflow comment block of one Makefile.
type Workflow struct {
	Raw     string         `json:"raw"`
	HTML    string         `json:"html"`
	Actions []WorkflowLink `json:"actions,omitempty"`
	Views   []WorkflowLink `json:"views,omitempty"`
}

// Empty reports whether the Makefile had no workflow block.
func (w Workflow) Empty() bool {
	return w.Raw == ""
}

// ExtractWorkflow renders the workflow comment block of a Makefile and
// classifies its links. Local destinations are rewritten in place: names
// in the phony set become action-invocation queries and get an "action"
// class, everything else becomes a path under the branch's views. Links
// with a network location are left untouched and listed nowhere.
//
// The phony set is computed independently of the directive catalog (see
// PhonyNames); the two surfaces can disagree and no reconciliation is
// attempted here.
func ExtractWorkflow(lines []string, branch string, phony map[string]bool) (Workflow, error) {
	raw := workflowRaw(lines)
	if raw == "" {
		return Workflow{}, nil
	}

	wf := Workflow{Raw: raw}
	source := []byte(raw)
	md := getMarkdown()
	doc := md.Parser().Parse(text.NewReader(source))

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindLink {
			return ast.WalkContinue, nil
		}
		link := n.(*ast.Link)
		dest := string(link.Destination)

		u, err := url.Parse(dest)
		if err != nil || u.Host != "" {
			// External reference: leave it alone.
			return ast.WalkContinue, nil
		}

		label := linkText(link, source)
		if phony[dest] {
			href := "?action=" + url.QueryEscape(dest)
			link.Destination = []byte(href)
			link.SetAttributeString("class", []byte("action"))
			wf.Actions = append(wf.Actions, WorkflowLink{Href: href, Text: label})
		} else {
			// Relative to /branches/, so the branch page resolves it
			// to its own views.
			href := branch + "/views/" + dest
			link.Destination = []byte(href)
			wf.Views = append(wf.Views, WorkflowLink{Href: href, Text: label})
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return Workflow{}, err
	}

	var buf bytes.Buffer
	if err := md.Renderer().Render(&buf, source, doc); err != nil {
		return Workflow{}, err
	}
	wf.HTML = buf.String()

	return wf, nil
}

// workflowRaw extracts the comment block following the workflow marker,
// stripped of its comment prefixes. Accumulation stops at, and the result
// excludes, the first non-comment line. Empty string when no marker exists.
func workflowRaw(lines []string) string {
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(line, workflowMarker) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return ""
	}

	var block []string
	for _, line := range lines[start:] {
		if !strings.HasPrefix(line, "#") {
			break
		}
		if strings.HasPrefix(line, "# ") {
			block = append(block, line[2:])
		} else {
			block = append(block, line[1:])
		}
	}
	return strings.Join(block, "\n")
}

// linkText collects the plain text of a link's children.
func linkText(link *ast.Link, source []byte) string {
	var sb strings.Builder
	for child := link.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Text:
			sb.Write(c.Segment.Value(source))
		case *ast.String:
			sb.Write(c.Value)
		}
	}
	return sb.String()
}

package readme

import (
	"strings"
	"text/template"

	"github.com/meysamhadeli/doctreeai/embed_data"
	"github.com/meysamhadeli/doctreeai/tree"
	"github.com/pmezard/go-difflib/difflib"
)

var skeletonTemplate = template.Must(template.New("readme_skeleton").Parse(string(embed_data.ReadmeSkeleton)))

type skeletonEntry struct {
	Path    string
	Summary string
}

type skeletonData struct {
	Title       string
	Description string
	Entries     []skeletonEntry
}

// Skeleton renders a new README from the root summary and the summaries of
// the root's direct children.
func Skeleton(title string, root *tree.Node) (string, error) {
	data := skeletonData{Title: title, Description: "No project summary is available yet."}
	if root != nil {
		if root.HasSummary() {
			data.Description = strings.TrimSpace(root.Summary)
		}
		for _, child := range root.Children {
			if !child.HasSummary() {
				continue
			}
			p := child.Path
			if child.IsDir() {
				p += "/"
			}
			data.Entries = append(data.Entries, skeletonEntry{Path: p, Summary: oneLine(child.Summary)})
		}
	}

	var b strings.Builder
	if err := skeletonTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Merge replaces the lines that have a suggested text. Every other line is
// kept byte for byte, and replaced lines keep their indentation and terminator.
func Merge(lines []Line, suggestions []Suggestion) string {
	replace := make(map[int]string, len(suggestions))
	for _, s := range suggestions {
		if s.Suggested != "" {
			replace[s.LineNumber] = s.Suggested
		}
	}

	merged := make([]Line, len(lines))
	copy(merged, lines)
	for i, line := range merged {
		if text, ok := replace[line.Number]; ok {
			merged[i].Text = leadingSpace(line.Text) + text
		}
	}
	return Render(merged)
}

// hasReplacements reports whether any suggestion would change a line.
func hasReplacements(suggestions []Suggestion) bool {
	for _, s := range suggestions {
		if s.Suggested != "" {
			return true
		}
	}
	return false
}

// leadingSpace keeps list indentation when a line is replaced.
func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

// ProposalDiff renders a unified diff between two README versions.
func ProposalDiff(name, before, after string) (string, error) {
	if before == after {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  2,
	})
}

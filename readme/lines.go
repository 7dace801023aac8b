// Package readme ties README lines to the cache keys of the code they describe
// and reports, or rewrites, the lines whose code has since changed.
package readme

import (
	"strings"

	"github.com/meysamhadeli/doctreeai/hasher"
)

// Line is one README line, numbered from 1.
type Line struct {
	Number int
	// Text excludes the line terminator.
	Text string
	// Ending is the terminator read from disk: "\n", "\r\n", or "" for a last
	// line without one.
	Ending   string
	Checksum string
	// Content is false for blank lines, headings, fences, rules and fenced code.
	Content bool
}

// ParseLines splits README text into numbered lines. A trailing newline does
// not produce an extra empty line. Checksums ignore the terminator, so
// converting line endings does not void a mapping.
func ParseLines(content string) []Line {
	if content == "" {
		return nil
	}
	lines := make([]Line, 0, strings.Count(content, "\n")+1)

	inFence := false
	for rest := content; rest != ""; {
		text, ending := rest, ""
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			text, ending = rest[:i], "\n"
			rest = rest[i+1:]
		} else {
			rest = ""
		}
		if strings.HasSuffix(text, "\r") {
			text = strings.TrimSuffix(text, "\r")
			ending = "\r" + ending
		}
		trimmed := strings.TrimSpace(text)

		fence := isFence(trimmed)
		isContent := !inFence && !fence && isContentLine(trimmed)
		if fence {
			inFence = !inFence
		}

		lines = append(lines, Line{
			Number:   len(lines) + 1,
			Text:     text,
			Ending:   ending,
			Checksum: hasher.LineChecksum(text),
			Content:  isContent,
		})
	}
	return lines
}

func isFence(trimmed string) bool {
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

func isContentLine(trimmed string) bool {
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return false
	}
	switch trimmed {
	case "---", "***", "___":
		return false
	}
	return true
}

// Render is the inverse of ParseLines: every line is written back with the
// terminator it was read with.
func Render(lines []Line) string {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line.Text)
		b.WriteString(line.Ending)
	}
	return b.String()
}

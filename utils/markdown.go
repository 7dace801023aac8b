package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

const (
	ansiGreen = "\x1b[92m"
	ansiRed   = "\x1b[91m"
	ansiReset = "\x1b[0m"
)

// RenderMarkdown highlights content as markdown, line by line, so a long
// summary can be interrupted between lines. Inside diff fences, added and
// removed lines are colored instead of highlighted.
func RenderMarkdown(ctx context.Context, w io.Writer, content string, theme string) error {
	inCodeBlock := false
	for _, line := range strings.Split(content, "\n") {
		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
		}

		if inCodeBlock && strings.HasPrefix(line, "+") {
			fmt.Fprint(w, ansiGreen+line+ansiReset+"\n")
			continue
		}
		if inCodeBlock && strings.HasPrefix(line, "-") {
			fmt.Fprint(w, ansiRed+line+ansiReset+"\n")
			continue
		}

		var buf bytes.Buffer
		if err := quick.Highlight(&buf, line+"\n", "markdown", "terminal256", theme); err != nil {
			return err
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// RenderDiff prints a unified diff with the chroma diff lexer.
func RenderDiff(w io.Writer, diff string, theme string) error {
	if diff == "" {
		return nil
	}
	return quick.Highlight(w, diff, "diff", "terminal256", theme)
}

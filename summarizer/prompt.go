package summarizer

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/meysamhadeli/doctreeai/embed_data"
	"github.com/meysamhadeli/doctreeai/tree"
)

var (
	fileTemplate      = template.Must(template.New("file").Parse(string(embed_data.FileSummaryPrompt)))
	directoryTemplate = template.Must(template.New("directory").Parse(string(embed_data.DirectorySummaryPrompt)))
	systemPrompt      = strings.TrimSpace(string(embed_data.SystemPrompt))
)

type filePromptData struct {
	Path    string
	Symbols []string
	Content string
}

type directoryPromptData struct {
	Name    string
	Content string
}

func renderFilePrompt(node *tree.Node, symbols []string) (string, error) {
	var b strings.Builder
	err := fileTemplate.Execute(&b, filePromptData{
		Path:    node.Path,
		Symbols: symbols,
		Content: string(node.Content()),
	})
	return b.String(), err
}

func renderDirectoryPrompt(name string, childLines []string) (string, error) {
	var b strings.Builder
	err := directoryTemplate.Execute(&b, directoryPromptData{
		Name:    name,
		Content: strings.Join(childLines, "\n\n"),
	})
	return b.String(), err
}

// childLine formats one child summary as directory compute input.
func childLine(child *tree.Node) string {
	if child.IsDir() {
		return fmt.Sprintf("**%s/** (directory): %s", child.Name, child.Summary)
	}
	return fmt.Sprintf("**%s**: %s", child.Name, child.Summary)
}

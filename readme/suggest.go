package readme

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/meysamhadeli/doctreeai/embed_data"
	"github.com/meysamhadeli/doctreeai/providers/contracts"
	"github.com/meysamhadeli/doctreeai/providers/models"
	"github.com/meysamhadeli/doctreeai/summarizer"
	"github.com/pterm/pterm"
)

// noChange is the reply that keeps a stale line as written.
const noChange = "NO_CHANGE"

var (
	linePromptTemplate = template.Must(template.New("readme_line").Parse(string(embed_data.ReadmeLinePrompt)))
	systemPrompt       = strings.TrimSpace(string(embed_data.SystemPrompt))
)

type linePromptData struct {
	ReadmeFile     string
	LineNumber     int
	Line           string
	Summaries      []string
	ProjectSummary string
}

// Suggestion is the proposed fix for one stale line.
type Suggestion struct {
	LineNumber int
	Current    string
	// Suggested is empty when the line is still accurate or the call failed.
	Suggested string
	NoChange  bool
	Stale     []StaleRef
	Err       error
}

type suggester struct {
	provider   contracts.ISummaryProvider
	retry      summarizer.RetryPolicy
	readmeFile string
	logger     *pterm.Logger
}

// suggest asks the provider for a corrected line. Only fatal errors and
// cancellation are returned; other failures are kept on the suggestion.
func (s *suggester) suggest(ctx context.Context, state *LineState, idx *Index, projectSummary string) (Suggestion, error) {
	suggestion := Suggestion{LineNumber: state.Number, Current: state.Text, Stale: state.Stale}

	var prompt strings.Builder
	err := linePromptTemplate.Execute(&prompt, linePromptData{
		ReadmeFile:     s.readmeFile,
		LineNumber:     state.Number,
		Line:           state.Text,
		Summaries:      refSummaries(state, idx),
		ProjectSummary: projectSummary,
	})
	if err != nil {
		suggestion.Err = fmt.Errorf("failed to render prompt: %w", err)
		return suggestion, nil
	}

	resp, err := s.call(ctx, models.SummaryRequest{System: systemPrompt, Prompt: prompt.String(), ContextPath: fmt.Sprintf("%s:%d", s.readmeFile, state.Number)})
	if err != nil {
		if models.IsFatal(err) || ctx.Err() != nil {
			return suggestion, err
		}
		s.logger.Warn("failed to suggest readme line", s.logger.Args("line", state.Number, "error", err))
		suggestion.Err = err
		return suggestion, nil
	}

	text := cleanReply(resp.Text)
	if text == "" || strings.EqualFold(text, noChange) || text == strings.TrimSpace(state.Text) {
		suggestion.NoChange = true
		return suggestion, nil
	}
	suggestion.Suggested = text
	return suggestion, nil
}

func (s *suggester) call(ctx context.Context, request models.SummaryRequest) (*models.SummaryResponse, error) {
	for attempt := 1; ; attempt++ {
		resp, err := s.provider.Summarize(ctx, request)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		delay, retry := s.retry.Next(attempt, err)
		if !retry {
			return nil, err
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

func refSummaries(state *LineState, idx *Index) []string {
	summaries := make([]string, 0, len(state.Refs))
	for _, ref := range state.Refs {
		node, ok := idx.Node(ref.Path)
		switch {
		case !ok:
			summaries = append(summaries, fmt.Sprintf("%s: (removed from the project)", ref.Path))
		case node.HasSummary():
			summaries = append(summaries, fmt.Sprintf("%s: %s", ref.Path, oneLine(node.Summary)))
		}
	}
	return summaries
}

// cleanReply keeps the first non-empty line of a reply without wrapping quotes.
func cleanReply(reply string) string {
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, q := range []string{`"`, "`", "'"} {
			if len(line) >= 2 && strings.HasPrefix(line, q) && strings.HasSuffix(line, q) {
				line = strings.TrimSpace(line[1 : len(line)-1])
			}
		}
		return line
	}
	return ""
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

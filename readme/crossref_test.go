package readme

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/meysamhadeli/doctreeai/providers/models"
	"github.com/meysamhadeli/doctreeai/summarizer"
	"github.com/meysamhadeli/doctreeai/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type replyProvider struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (p *replyProvider) Name() string      { return "fake" }
func (p *replyProvider) ModelName() string { return "fake-model" }

func (p *replyProvider) Summarize(ctx context.Context, req models.SummaryRequest) (*models.SummaryResponse, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, req.Prompt)
	p.mu.Unlock()
	text, err := p.reply(req.Prompt)
	if err != nil {
		return nil, err
	}
	return &models.SummaryResponse{Text: text}, nil
}

func (p *replyProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

type crossrefFixture struct {
	dir      string
	readme   string
	mapping  string
	provider *replyProvider
}

func newCrossrefFixture(t *testing.T, readme string, reply func(string) (string, error)) *crossrefFixture {
	t.Helper()
	dir := t.TempDir()
	f := &crossrefFixture{
		dir:      dir,
		readme:   filepath.Join(dir, "README.md"),
		mapping:  MappingPath(filepath.Join(dir, ".doctreeai_cache")),
		provider: &replyProvider{reply: reply},
	}
	if readme != "" {
		require.NoError(t, os.WriteFile(f.readme, []byte(readme), 0o644))
	}
	return f
}

func (f *crossrefFixture) run(t *testing.T, mode Mode, dryRun bool, root *tree.Node) (*Report, error) {
	t.Helper()
	c, err := NewCrossReferencer(f.provider, Options{
		ReadmePath:  f.readme,
		MappingPath: f.mapping,
		Mode:        mode,
		DryRun:      dryRun,
		ProjectName: "sample",
		Retry:       summarizer.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
	require.NoError(t, err)
	return c.Run(context.Background(), root)
}

func (f *crossrefFixture) readReadme(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.readme)
	require.NoError(t, err)
	return string(data)
}

func TestValidate_ReportsStaleLineWithoutWriting(t *testing.T) {
	f := newCrossrefFixture(t, sampleReadme, func(string) (string, error) {
		return `"Records are sharded by cache/store.go on disk."`, nil
	})

	report, err := f.run(t, ModeValidate, false, sampleTree("v1"))
	require.NoError(t, err)
	assert.True(t, report.MappingSaved)
	assert.Equal(t, 2, report.MappedLines)
	assert.Empty(t, report.Stale)
	assert.Zero(t, f.provider.calls())

	report, err = f.run(t, ModeValidate, false, sampleTree("v2"))
	require.NoError(t, err)
	require.Len(t, report.Suggestions, 1)
	s := report.Suggestions[0]
	assert.Equal(t, 3, s.LineNumber)
	assert.Equal(t, "Records are sharded by cache/store.go on disk.", s.Suggested)
	assert.Contains(t, report.Diff, "+Records are sharded by cache/store.go on disk.")
	assert.False(t, report.Written)
	assert.Equal(t, sampleReadme, f.readReadme(t))

	prompt := f.provider.prompts[0]
	assert.Contains(t, prompt, `Line 3: "Records are kept by cache/store.go on disk."`)
	assert.Contains(t, prompt, "cache/store.go: Implements `Store`")
	assert.Contains(t, prompt, "A tool that summarizes source trees.")

	// The line is still unresolved, so the next pass reports it again.
	report, err = f.run(t, ModeValidate, false, sampleTree("v2"))
	require.NoError(t, err)
	assert.Len(t, report.Stale, 1)
}

func TestValidate_NoChangeRevalidatesLine(t *testing.T) {
	f := newCrossrefFixture(t, sampleReadme, func(string) (string, error) { return "NO_CHANGE", nil })

	_, err := f.run(t, ModeValidate, false, sampleTree("v1"))
	require.NoError(t, err)

	report, err := f.run(t, ModeValidate, false, sampleTree("v2"))
	require.NoError(t, err)
	require.Len(t, report.Suggestions, 1)
	assert.True(t, report.Suggestions[0].NoChange)
	assert.Empty(t, report.Diff)

	report, err = f.run(t, ModeValidate, false, sampleTree("v2"))
	require.NoError(t, err)
	assert.Empty(t, report.Stale)
	assert.Equal(t, 1, f.provider.calls())
}

func TestGenerate_ReplacesOnlyStaleLines(t *testing.T) {
	f := newCrossrefFixture(t, sampleReadme, func(string) (string, error) {
		return "Records are sharded by cache/store.go on disk.", nil
	})

	_, err := f.run(t, ModeGenerate, false, sampleTree("v1"))
	require.NoError(t, err)
	assert.Equal(t, sampleReadme, f.readReadme(t), "nothing stale on the first pass")

	report, err := f.run(t, ModeGenerate, false, sampleTree("v2"))
	require.NoError(t, err)
	assert.True(t, report.Written)
	assert.Equal(t, replaceLine(sampleReadme, 3, "Records are sharded by cache/store.go on disk."), f.readReadme(t))

	report, err = f.run(t, ModeGenerate, false, sampleTree("v2"))
	require.NoError(t, err)
	assert.Empty(t, report.Stale)
	assert.False(t, report.Written)
	assert.Equal(t, 1, f.provider.calls())
}

func TestGenerate_KeepsLineEndingsOfUntouchedReadme(t *testing.T) {
	variants := map[string]string{
		"crlf":             strings.ReplaceAll(sampleReadme, "\n", "\r\n"),
		"no final newline": strings.TrimSuffix(sampleReadme, "\n"),
	}
	for name, readme := range variants {
		t.Run(name, func(t *testing.T) {
			f := newCrossrefFixture(t, readme, func(string) (string, error) {
				return "Records are sharded by cache/store.go on disk.", nil
			})

			for _, mode := range []Mode{ModeValidate, ModeGenerate} {
				report, err := f.run(t, mode, false, sampleTree("v1"))
				require.NoError(t, err)
				assert.Empty(t, report.Stale)
				assert.Empty(t, report.Diff)
				assert.False(t, report.Written)
				assert.Equal(t, readme, f.readReadme(t))
			}

			report, err := f.run(t, ModeGenerate, false, sampleTree("v2"))
			require.NoError(t, err)
			assert.True(t, report.Written)
			assert.Equal(t, replaceLine(readme, 3, "Records are sharded by cache/store.go on disk."), f.readReadme(t))
		})
	}
}

func TestGenerate_FailedSuggestionLeavesReadmeUntouched(t *testing.T) {
	f := newCrossrefFixture(t, sampleReadme, func(string) (string, error) {
		return "NO_CHANGE", nil
	})
	_, err := f.run(t, ModeValidate, false, sampleTree("v1"))
	require.NoError(t, err)

	f.provider.reply = func(string) (string, error) { return "", errors.New("bad request") }
	report, err := f.run(t, ModeGenerate, false, sampleTree("v2"))
	require.NoError(t, err)
	require.Len(t, report.Suggestions, 1)
	assert.Error(t, report.Suggestions[0].Err)
	assert.Empty(t, report.Diff)
	assert.False(t, report.Written)
	assert.Equal(t, sampleReadme, f.readReadme(t))
}

func TestGenerate_CreatesReadmeFromSkeleton(t *testing.T) {
	f := newCrossrefFixture(t, "", func(string) (string, error) {
		t.Fatal("no suggestion expected")
		return "", nil
	})

	report, err := f.run(t, ModeGenerate, false, sampleTree("v1"))
	require.NoError(t, err)
	assert.True(t, report.Created)
	assert.True(t, report.Written)

	content := f.readReadme(t)
	assert.True(t, strings.HasPrefix(content, "# sample\n"))
	assert.Contains(t, content, "A tool that summarizes source trees.")
	assert.Contains(t, content, "- `cache/`: Content addressed record storage.")
	assert.Contains(t, content, "- `main.go`: Entry point that calls run_pipeline.")
	assert.Contains(t, content, "## Installation")
	assert.Contains(t, content, "## License")
	assert.Positive(t, report.MappedLines)

	mapping, err := LoadMapping(f.mapping)
	require.NoError(t, err)
	assert.Len(t, mapping.Entries, report.MappedLines)
}

func TestValidate_MissingReadme(t *testing.T) {
	f := newCrossrefFixture(t, "", func(string) (string, error) { return "", nil })

	report, err := f.run(t, ModeValidate, false, sampleTree("v1"))
	require.NoError(t, err)
	assert.False(t, report.Exists)
	assert.False(t, report.Created)
	_, err = os.Stat(f.readme)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDryRun_WritesNothing(t *testing.T) {
	f := newCrossrefFixture(t, "", func(string) (string, error) { return "", nil })

	report, err := f.run(t, ModeGenerate, true, sampleTree("v1"))
	require.NoError(t, err)
	assert.True(t, report.Created)
	assert.False(t, report.Written)
	assert.False(t, report.MappingSaved)
	assert.NotEmpty(t, report.Diff)

	_, err = os.Stat(f.readme)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(f.mapping)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFatalErrorAbortsPass(t *testing.T) {
	f := newCrossrefFixture(t, sampleReadme, func(string) (string, error) {
		return "", &models.FatalError{StatusCode: 401, Err: errors.New("bad key")}
	})
	_, err := f.run(t, ModeValidate, false, sampleTree("v1"))
	require.NoError(t, err)

	_, err = f.run(t, ModeValidate, false, sampleTree("v2"))
	require.Error(t, err)
	assert.True(t, models.IsFatal(err))
}

func TestNonFatalErrorKeepsLineStale(t *testing.T) {
	f := newCrossrefFixture(t, sampleReadme, func(string) (string, error) {
		return "", errors.New("bad request")
	})
	_, err := f.run(t, ModeGenerate, false, sampleTree("v1"))
	require.NoError(t, err)

	report, err := f.run(t, ModeGenerate, false, sampleTree("v2"))
	require.NoError(t, err)
	require.Len(t, report.Suggestions, 1)
	assert.Error(t, report.Suggestions[0].Err)
	assert.False(t, report.Written)
	assert.Equal(t, sampleReadme, f.readReadme(t))
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("generate")
	require.NoError(t, err)
	assert.Equal(t, ModeGenerate, mode)

	_, err = ParseMode("rewrite")
	assert.Error(t, err)
}

func TestMerge_KeepsIndentation(t *testing.T) {
	lines := ParseLines("a\n  - old item\nb\n")
	merged := Merge(lines, []Suggestion{{LineNumber: 2, Suggested: "- new item"}, {LineNumber: 3, NoChange: true}})
	assert.Equal(t, "a\n  - new item\nb\n", merged)

	lines = ParseLines("a\r\n  - old item\r\nb")
	merged = Merge(lines, []Suggestion{{LineNumber: 2, Suggested: "- new item"}})
	assert.Equal(t, "a\r\n  - new item\r\nb", merged)
}

func TestCleanReply(t *testing.T) {
	assert.Equal(t, "new text", cleanReply("\n  \"new text\"\nextra"))
	assert.Equal(t, "NO_CHANGE", cleanReply("`NO_CHANGE`"))
	assert.Empty(t, cleanReply("  \n "))
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	readme := filepath.Join(dir, "README.md")
	mapping := MappingPath(dir)

	info, err := Inspect(readme, mapping)
	require.NoError(t, err)
	assert.False(t, info.Exists)

	content := "# Tool\n\n## Overview\n\nText.\n\n```\n# not a heading\n```\n"
	require.NoError(t, os.WriteFile(readme, []byte(content), 0o644))
	require.NoError(t, SaveMapping(mapping, &Mapping{Entries: []MappingEntry{{LineNumber: 5, LineChecksum: "x"}}}))

	info, err = Inspect(readme, mapping)
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, int64(len(content)), info.Size)
	assert.Equal(t, []string{"Tool", "Overview"}, info.Sections)
	assert.True(t, info.HasDescription)
	assert.Equal(t, 1, info.MappedLines)
}

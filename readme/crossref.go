package readme

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/meysamhadeli/doctreeai/cache"
	"github.com/meysamhadeli/doctreeai/providers/contracts"
	"github.com/meysamhadeli/doctreeai/summarizer"
	"github.com/meysamhadeli/doctreeai/tree"
	"github.com/meysamhadeli/doctreeai/utils"
	"github.com/pterm/pterm"
)

// Mode selects between reporting stale lines and rewriting them.
type Mode string

const (
	// ModeValidate reports stale lines with suggestions and never writes the README.
	ModeValidate Mode = "validate"
	// ModeGenerate creates a missing README or replaces its stale lines.
	ModeGenerate Mode = "generate"
)

// ParseMode accepts "validate" or "generate".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeValidate, ModeGenerate:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown readme mode %q, expected %q or %q", s, ModeValidate, ModeGenerate)
}

// Options configure a CrossReferencer.
type Options struct {
	ReadmePath  string
	MappingPath string
	Mode        Mode
	// DryRun skips README and mapping writes.
	DryRun      bool
	ProjectName string
	Retry       summarizer.RetryPolicy
	Logger      *pterm.Logger
}

// Report describes one cross-reference pass.
type Report struct {
	Mode       Mode
	ReadmePath string
	Exists     bool
	// Created is set when a README was synthesized from the skeleton.
	Created     bool
	Written     bool
	MappedLines int
	Reused      int
	Voided      int
	Recomputed  int
	Stale       []*LineState
	Suggestions []Suggestion
	// Diff is the unified diff of the proposed or written README.
	Diff         string
	MappingSaved bool
}

// CrossReferencer maps README lines to cache keys and acts on stale lines.
type CrossReferencer struct {
	provider contracts.ISummaryProvider
	opts     Options
	logger   *pterm.Logger
}

// NewCrossReferencer validates opts.
func NewCrossReferencer(provider contracts.ISummaryProvider, opts Options) (*CrossReferencer, error) {
	if provider == nil {
		return nil, errors.New("readme cross-referencer requires a summary provider")
	}
	if opts.ReadmePath == "" || opts.MappingPath == "" {
		return nil, errors.New("readme and mapping paths are required")
	}
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry = summarizer.DefaultRetryPolicy
	}
	if opts.ProjectName == "" {
		opts.ProjectName = filepath.Base(filepath.Dir(opts.ReadmePath))
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	return &CrossReferencer{provider: provider, opts: opts, logger: logger}, nil
}

// Run analyzes the README against the completed tree root.
func (c *CrossReferencer) Run(ctx context.Context, root *tree.Node) (*Report, error) {
	report := &Report{Mode: c.opts.Mode, ReadmePath: c.opts.ReadmePath}

	data, err := os.ReadFile(c.opts.ReadmePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return report, fmt.Errorf("failed to read %s: %w", c.opts.ReadmePath, err)
	default:
		report.Exists = true
	}
	content := string(data)

	previous, err := LoadMapping(c.opts.MappingPath)
	if err != nil {
		c.logger.Warn("rebuilding readme mapping", c.logger.Args("path", c.opts.MappingPath, "error", err))
	}

	idx := NewIndex(root)
	if !report.Exists {
		return report, c.runWithoutReadme(report, root, idx)
	}

	lines := ParseLines(content)
	analysis := Analyze(lines, idx, previous)
	report.Reused, report.Voided, report.Recomputed = analysis.Reused, analysis.Voided, analysis.Recomputed
	report.Stale = analysis.StaleLines()
	c.logger.Debug("readme analyzed", c.logger.Args(
		"lines", len(lines), "mapped", len(analysis.Mapped), "stale", len(report.Stale),
		"reused", analysis.Reused, "voided", analysis.Voided))

	s := &suggester{
		provider:   c.provider,
		retry:      c.opts.Retry,
		readmeFile: filepath.Base(c.opts.ReadmePath),
		logger:     c.logger,
	}
	projectSummary := ""
	if root != nil {
		projectSummary = root.Summary
	}
	for _, state := range report.Stale {
		suggestion, err := s.suggest(ctx, state, idx, projectSummary)
		if err != nil {
			return report, fmt.Errorf("readme line %d: %w", state.Number, err)
		}
		if suggestion.NoChange {
			analysis.Refresh(state.Number)
		}
		report.Suggestions = append(report.Suggestions, suggestion)
	}

	mapping := analysis.Mapping()
	if !hasReplacements(report.Suggestions) {
		return report, c.saveMapping(report, mapping)
	}

	merged := Merge(lines, report.Suggestions)
	if report.Diff, err = ProposalDiff(filepath.Base(c.opts.ReadmePath), content, merged); err != nil {
		return report, fmt.Errorf("failed to diff readme: %w", err)
	}
	if c.opts.Mode == ModeGenerate && merged != content {
		if err := c.writeReadme(report, merged); err != nil {
			return report, err
		}
		// Replaced lines have new checksums and get mapped to current keys.
		mapping = Analyze(ParseLines(merged), idx, mapping).Mapping()
	}
	return report, c.saveMapping(report, mapping)
}

func (c *CrossReferencer) runWithoutReadme(report *Report, root *tree.Node, idx *Index) error {
	if c.opts.Mode == ModeValidate {
		c.logger.Info("no readme to validate", c.logger.Args("path", c.opts.ReadmePath))
		return c.saveMapping(report, &Mapping{Version: MappingVersion})
	}

	content, err := Skeleton(c.opts.ProjectName, root)
	if err != nil {
		return fmt.Errorf("failed to render readme skeleton: %w", err)
	}
	if report.Diff, err = ProposalDiff(filepath.Base(c.opts.ReadmePath), "", content); err != nil {
		return fmt.Errorf("failed to diff readme: %w", err)
	}
	report.Created = true
	if err := c.writeReadme(report, content); err != nil {
		return err
	}
	return c.saveMapping(report, Analyze(ParseLines(content), idx, nil).Mapping())
}

func (c *CrossReferencer) writeReadme(report *Report, content string) error {
	if c.opts.DryRun {
		return nil
	}
	if err := cache.WriteFileAtomic(c.opts.ReadmePath, []byte(content)); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.opts.ReadmePath, err)
	}
	report.Written = true
	c.logger.Info("readme written", c.logger.Args("path", c.opts.ReadmePath, "created", report.Created))
	return nil
}

func (c *CrossReferencer) saveMapping(report *Report, mapping *Mapping) error {
	report.MappedLines = len(mapping.Entries)
	if c.opts.DryRun {
		return nil
	}
	if err := SaveMapping(c.opts.MappingPath, mapping); err != nil {
		return err
	}
	report.MappingSaved = true
	return nil
}

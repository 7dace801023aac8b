package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/meysamhadeli/doctreeai/cache"
	"github.com/meysamhadeli/doctreeai/code_analyzer"
	analyzer_contracts "github.com/meysamhadeli/doctreeai/code_analyzer/contracts"
	"github.com/meysamhadeli/doctreeai/constants/lipgloss"
	"github.com/meysamhadeli/doctreeai/ignore"
	"github.com/meysamhadeli/doctreeai/providers/models"
	"github.com/meysamhadeli/doctreeai/readme"
	"github.com/meysamhadeli/doctreeai/summarizer"
	"github.com/meysamhadeli/doctreeai/tree"
	"github.com/meysamhadeli/doctreeai/utils"
	"github.com/meysamhadeli/doctreeai/watcher"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// runCmd: doctreeai run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Summarize the project and cross-reference its README.",
	Long: `The 'run' command summarizes every file, then every directory, then the project itself,
reusing cached summaries for content that did not change. It then maps README lines to the code they
mention and reports stale lines ('validate' mode) or rewrites them ('generate' mode).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions{}
		opts.force, _ = cmd.Flags().GetBool("force")
		opts.dryRun, _ = cmd.Flags().GetBool("dry-run")
		opts.watch, _ = cmd.Flags().GetBool("watch")

		rootDependencies, err := handleRootCommand(cmd)
		if err != nil {
			return err
		}
		return handleRunCommand(rootDependencies, opts)
	},
}

func init() {
	runCmd.Flags().Bool("force", false, "Ignore cached summaries and recompute every node.")
	runCmd.Flags().Bool("dry-run", false, "Validate the README without writing it or the mapping, and print the summary tree.")
	runCmd.Flags().Bool("watch", false, "Keep running and re-run after file changes.")
	rootCmd.AddCommand(runCmd)
}

type runOptions struct {
	force  bool
	dryRun bool
	watch  bool
}

// pipeline holds what stays the same across watch iterations.
type pipeline struct {
	deps       *RootDependencies
	opts       runOptions
	matcher    *ignore.Matcher
	store      *cache.Store
	analyzer   analyzer_contracts.ICodeAnalyzer
	readmePath string
}

func handleRunCommand(rootDependencies *RootDependencies, opts runOptions) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p, err := newPipeline(rootDependencies, opts)
	if err != nil {
		return err
	}

	err = p.runOnce(ctx)
	if ctx.Err() != nil {
		fmt.Println(lipgloss.Yellow.Render("\n🔄 Interrupted. Summaries computed so far are cached."))
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	if opts.watch {
		return p.watch(ctx)
	}
	return nil
}

func newPipeline(deps *RootDependencies, opts runOptions) (*pipeline, error) {
	cfg := deps.Config
	dir := cacheDir(deps.Cwd, cfg)

	store, err := cache.Open(dir, deps.Logger)
	if err != nil {
		return nil, err
	}

	matcher := ignore.NewMatcher(ignore.MatcherOptions{
		RootDir:          deps.Cwd,
		Excludes:         cfg.Exclude,
		MaxFileSizeBytes: cfg.MaxFileSize,
	})
	p := &pipeline{
		deps:       deps,
		opts:       opts,
		matcher:    matcher,
		store:      store,
		analyzer:   code_analyzer.NewCodeAnalyzer(deps.Logger),
		readmePath: readmePath(deps.Cwd, cfg),
	}
	// Neither the cache nor the README may feed the fingerprints they are derived from.
	if rel := relativeTo(deps.Cwd, dir); rel != "" {
		matcher.ExcludePath(rel)
	}
	if rel := relativeTo(deps.Cwd, p.readmePath); rel != "" {
		matcher.ExcludePath(rel)
	}
	return p, nil
}

func (p *pipeline) runOnce(ctx context.Context) error {
	cfg := p.deps.Config
	logger := p.deps.Logger
	p.deps.TokenManagement.ClearToken()

	spinner := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgLightBlue)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100).WithRemoveWhenDone(true)
	spinnerInstance, _ := spinner.Start("Scanning project...")

	builder := &tree.Builder{
		Root:        p.deps.Cwd,
		Include:     p.matcher.Include,
		MaxFileSize: cfg.MaxFileSize,
		Logger:      logger,
	}
	root, warnings, err := builder.Build(ctx)
	if err != nil {
		_ = spinnerInstance.Stop()
		return err
	}

	var progressMu sync.Mutex
	s, err := summarizer.New(p.store, p.deps.Provider, summarizer.Options{
		Workers:          cfg.Workers,
		MaxParallelCalls: cfg.MaxParallelCalls,
		Force:            p.opts.force,
		RootName:         filepath.Base(p.deps.Cwd),
		Retry:            cfg.RetryPolicy(),
		Logger:           logger,
		Analyzer:         p.analyzer,
		Progress: func(done, total int) {
			progressMu.Lock()
			defer progressMu.Unlock()
			spinnerInstance.UpdateText(fmt.Sprintf("Summarizing %d/%d nodes...", done, total))
		},
	})
	if err != nil {
		_ = spinnerInstance.Stop()
		return err
	}

	report, runErr := s.Run(ctx, root)
	_ = spinnerInstance.Stop()
	fmt.Print("\r")

	report.Warnings = append(report.Warnings, warnings...)
	perf := p.store.Performance()
	logger.Debug("cache lookups", logger.Args("requests", perf.TotalRequests, "hits", perf.Hits, "hit_rate", fmt.Sprintf("%.1f%%", perf.HitRate)))
	printSummaryReport(report)
	if runErr != nil {
		return runErr
	}

	mode, _ := readme.ParseMode(cfg.ReadmeMode)
	if p.opts.dryRun {
		mode = readme.ModeValidate
	}
	crossReferencer, err := readme.NewCrossReferencer(p.deps.Provider, readme.Options{
		ReadmePath:  p.readmePath,
		MappingPath: readme.MappingPath(p.store.Dir()),
		Mode:        mode,
		DryRun:      p.opts.dryRun,
		ProjectName: filepath.Base(p.deps.Cwd),
		Retry:       cfg.RetryPolicy(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	readmeReport, err := crossReferencer.Run(ctx, root)
	if err != nil {
		return err
	}
	if err := printReadmeReport(readmeReport, cfg.Theme); err != nil {
		return err
	}

	if p.opts.dryRun {
		if err := printDryRun(ctx, root, cfg.Theme); err != nil {
			return err
		}
	}
	p.deps.TokenManagement.DisplayTokens(p.deps.Provider.Name(), p.deps.Provider.ModelName())
	return nil
}

func (p *pipeline) watch(ctx context.Context) error {
	w, err := watcher.NewWatcher(p.deps.Cwd, p.matcher, watcher.DefaultInterval, p.deps.Logger)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Close()
	go w.Start(ctx)

	fmt.Println(lipgloss.Info.Render("👀 Watching for changes. Press Ctrl+C to stop."))
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-w.Events():
			for _, event := range batch {
				p.deps.Logger.Debug("change detected", p.deps.Logger.Args("path", event.Path, "op", event.Op.String()))
				if name := filepath.Base(event.Path); name == ".gitignore" || name == ignore.IgnoreFileName {
					p.matcher.Reload()
				}
			}
			fmt.Println(lipgloss.Info.Render(fmt.Sprintf("🔁 %d change(s) detected, re-running...", len(batch))))

			err := p.runOnce(ctx)
			switch {
			case ctx.Err() != nil:
				return nil
			case models.IsFatal(err):
				return err
			case err != nil:
				fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
			}
		}
	}
}

func printSummaryReport(report *summarizer.Report) {
	lines := []string{
		lipgloss.Title.Render("Summary"),
		fmt.Sprintf("Nodes:        %d", report.Total),
		fmt.Sprintf("Reused:       %d", report.Reused),
		fmt.Sprintf("Computed:     %d", report.Computed),
		fmt.Sprintf("Deduplicated: %d", report.Deduplicated),
		fmt.Sprintf("Skipped:      %d", report.Skipped),
		fmt.Sprintf("Failed:       %d", len(report.Failed)),
		fmt.Sprintf("Duration:     %s", report.Duration.Round(time.Millisecond)),
	}
	fmt.Println(lipgloss.BoxStyle.Render(strings.Join(lines, "\n")))

	for _, failed := range report.Failed {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("✗ %s: %v", failed.Path, failed.Err)))
	}
	for _, path := range report.Degraded {
		fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("⚠ %s was summarized from partial input and not cached", path)))
	}
	for _, warning := range report.Warnings {
		fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("⚠ skipped %s", warning.String())))
	}
}

func printReadmeReport(report *readme.Report, theme string) error {
	name := filepath.Base(report.ReadmePath)
	switch {
	case report.Created && report.Written:
		fmt.Println(lipgloss.Green.Render(fmt.Sprintf("✓ Created %s", name)))
	case report.Created:
		fmt.Println(lipgloss.Info.Render(fmt.Sprintf("%s does not exist, it would be created:", name)))
	case !report.Exists:
		fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("No %s found. Use --readme_mode generate to create one.", name)))
		return nil
	}

	if report.Exists {
		fmt.Println(lipgloss.Info.Render(fmt.Sprintf("%s: %d mapped line(s), %d stale", name, report.MappedLines, len(report.Stale))))
	}
	for _, suggestion := range report.Suggestions {
		refs := make([]string, 0, len(suggestion.Stale))
		for _, ref := range suggestion.Stale {
			refs = append(refs, fmt.Sprintf("%s (%s)", ref.Path, ref.Reason))
		}
		fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("Line %d depends on %s", suggestion.LineNumber, strings.Join(refs, ", "))))
		fmt.Println(lipgloss.Gray.Render("  - " + strings.TrimSpace(suggestion.Current)))
		switch {
		case suggestion.Err != nil:
			fmt.Println(lipgloss.Red.Render(fmt.Sprintf("  no suggestion: %v", suggestion.Err)))
		case suggestion.NoChange:
			fmt.Println(lipgloss.Green.Render("  still accurate"))
		default:
			fmt.Println(lipgloss.Green.Render("  + " + suggestion.Suggested))
		}
	}

	if report.Written && !report.Created {
		fmt.Println(lipgloss.Green.Render(fmt.Sprintf("✓ Updated %s", name)))
		return nil
	}
	if report.Diff != "" && !report.Written {
		return utils.RenderDiff(os.Stdout, report.Diff, theme)
	}
	return nil
}

func printDryRun(ctx context.Context, root *tree.Node, theme string) error {
	if root.HasSummary() {
		fmt.Println(lipgloss.Title.Render("Project summary"))
		if err := utils.RenderMarkdown(ctx, os.Stdout, root.Summary, theme); err != nil {
			return err
		}
	}
	return pterm.DefaultTree.WithRoot(summaryTree(root)).Render()
}

func summaryTree(node *tree.Node) pterm.TreeNode {
	text := node.Name
	if node.IsDir() && node.Path != tree.RootPath {
		text += "/"
	}
	switch {
	case node.Status == tree.Failed:
		text += " " + lipgloss.Red.Render("(failed)")
	case node.HasSummary():
		text += " " + lipgloss.Gray.Render(firstSentence(node.Summary, 80))
	}

	treeNode := pterm.TreeNode{Text: text}
	for _, child := range node.Children {
		treeNode.Children = append(treeNode.Children, summaryTree(child))
	}
	return treeNode
}

func firstSentence(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if i := strings.Index(s, ". "); i >= 0 {
		s = s[:i+1]
	}
	if runes := []rune(s); len(runes) > limit {
		s = string(runes[:limit-1]) + "…"
	}
	return s
}

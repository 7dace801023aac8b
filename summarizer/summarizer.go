// Package summarizer computes file, directory and project summaries bottom-up,
// reusing cached summaries for every fingerprint seen before.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meysamhadeli/doctreeai/cache"
	analyzer_contracts "github.com/meysamhadeli/doctreeai/code_analyzer/contracts"
	"github.com/meysamhadeli/doctreeai/hasher"
	"github.com/meysamhadeli/doctreeai/providers/contracts"
	"github.com/meysamhadeli/doctreeai/providers/models"
	"github.com/meysamhadeli/doctreeai/tree"
	"github.com/meysamhadeli/doctreeai/utils"
	"github.com/pterm/pterm"
)

// Options tune a Summarizer.
type Options struct {
	// Workers is the size of the node worker pool.
	Workers int
	// MaxParallelCalls caps concurrent compute calls, independently of Workers.
	MaxParallelCalls int
	// Force bypasses cache lookups. Results replace existing records.
	Force bool
	// RootName labels the root directory in its prompt.
	RootName string
	Retry    RetryPolicy
	Logger   *pterm.Logger
	// Analyzer is optional. When set, file symbols are stored with each entry.
	Analyzer analyzer_contracts.ICodeAnalyzer
	// Progress is called after each node reaches a terminal state.
	Progress func(done, total int)
}

// Summarizer owns the cache store and compute provider for a run.
type Summarizer struct {
	store    *cache.Store
	provider contracts.ISummaryProvider
	opts     Options
	logger   *pterm.Logger
	sem      chan struct{}
}

// New validates the options and builds a Summarizer.
func New(store *cache.Store, provider contracts.ISummaryProvider, opts Options) (*Summarizer, error) {
	if store == nil {
		return nil, errors.New("summarizer requires a cache store")
	}
	if provider == nil {
		return nil, errors.New("summarizer requires a summary provider")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxParallelCalls < 1 {
		opts.MaxParallelCalls = 1
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry = DefaultRetryPolicy
	}
	if opts.RootName == "" {
		opts.RootName = tree.RootPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	return &Summarizer{
		store:    store,
		provider: provider,
		opts:     opts,
		logger:   logger,
		sem:      make(chan struct{}, opts.MaxParallelCalls),
	}, nil
}

// run is the state of one Run call. Nodes are addressed by index; parent is a
// side table so the tree itself needs no back pointers.
type run struct {
	ctx      context.Context
	cancel   context.CancelFunc
	nodes    []*tree.Node
	parent   []int
	pending  []int32
	jobs     chan int
	inflight *inflight
	report   reportBuilder
	done     atomic.Int64

	fatalOnce sync.Once
	fatalErr  error
}

// Run summarizes root in post-order. Node failures are recorded in the report;
// the returned error is non-nil only for a fatal compute error or cancellation.
func (s *Summarizer) Run(ctx context.Context, root *tree.Node) (*Report, error) {
	started := time.Now()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		ctx:      runCtx,
		cancel:   cancel,
		inflight: newInflight(),
	}
	r.flatten(root, -1)

	total := len(r.nodes)
	r.jobs = make(chan int, total)
	for i, node := range r.nodes {
		if len(node.Children) == 0 {
			r.jobs <- i
		}
	}

	s.logger.Debug("summarizer started", s.logger.Args("nodes", total, "workers", s.opts.Workers, "force", s.opts.Force))

	var wg sync.WaitGroup
	for w := 0; w < s.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range r.jobs {
				s.process(r, r.nodes[id])
				s.complete(r, id, total)
			}
		}()
	}
	wg.Wait()

	report := r.report.finish(total, started)
	if r.fatalErr != nil {
		return report, r.fatalErr
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (r *run) flatten(node *tree.Node, parent int) {
	id := len(r.nodes)
	r.nodes = append(r.nodes, node)
	r.parent = append(r.parent, parent)
	r.pending = append(r.pending, int32(len(node.Children)))
	for _, child := range node.Children {
		r.flatten(child, id)
	}
}

// complete releases the parent once its last child is terminal. The job
// channel is sized to the node count, so sends never block.
func (s *Summarizer) complete(r *run, id int, total int) {
	done := int(r.done.Add(1))
	if s.opts.Progress != nil {
		s.opts.Progress(done, total)
	}
	if done == total {
		close(r.jobs)
		return
	}
	if p := r.parent[id]; p >= 0 {
		if atomic.AddInt32(&r.pending[p], -1) == 0 {
			r.jobs <- p
		}
	}
}

func (s *Summarizer) process(r *run, node *tree.Node) {
	if err := r.ctx.Err(); err != nil {
		s.fail(r, node, err)
		return
	}
	if node.IsDir() {
		s.processDirectory(r, node)
	} else {
		s.processFile(r, node)
	}
}

func (s *Summarizer) processFile(r *run, node *tree.Node) {
	defer node.ReleaseContent()

	if node.Binary || len(node.Content()) == 0 {
		node.Status = tree.Skipped
		r.report.record(node, false, result{})
		return
	}

	key := node.Fingerprint
	if s.reuse(r, node, key) {
		return
	}

	res, shared, err := r.inflight.do(r.ctx, key, func() (result, error) {
		var symbols []string
		if s.opts.Analyzer != nil {
			symbols = s.opts.Analyzer.ExtractSymbols(r.ctx, node.Path, node.Content())
		}
		prompt, err := renderFilePrompt(node, symbols)
		if err != nil {
			return result{}, fmt.Errorf("failed to render prompt: %w", err)
		}
		res, err := s.compute(r.ctx, node.Path, prompt)
		if err != nil {
			return result{}, err
		}
		res.symbols = symbols
		s.persist(node, key, res)
		return res, nil
	})
	s.finish(r, node, key, res, shared, err)
}

func (s *Summarizer) processDirectory(r *run, node *tree.Node) {
	key := node.Rehash()

	var lines []string
	failedChildren := 0
	for _, child := range node.Children {
		if child.Status == tree.Failed {
			failedChildren++
		}
		if child.Status == tree.Failed || child.Degraded {
			node.Degraded = true
		}
		if child.HasSummary() {
			lines = append(lines, childLine(child))
		}
	}
	if failedChildren > 0 {
		s.logger.Warn("directory has failed children", s.logger.Args("path", node.Path, "failed", failedChildren))
	}

	if s.reuse(r, node, key) {
		node.Degraded = false
		return
	}

	if len(lines) == 0 {
		if failedChildren > 0 {
			s.fail(r, node, fmt.Errorf("all %d summarizable children failed", failedChildren))
			return
		}
		node.Status = tree.Skipped
		r.report.record(node, false, result{})
		return
	}

	name := node.Name
	if node.Path == tree.RootPath {
		name = s.opts.RootName
	}
	degraded := node.Degraded

	res, shared, err := r.inflight.do(r.ctx, key, func() (result, error) {
		prompt, err := renderDirectoryPrompt(name, lines)
		if err != nil {
			return result{}, fmt.Errorf("failed to render prompt: %w", err)
		}
		res, err := s.compute(r.ctx, node.Path, prompt)
		if err != nil {
			return result{}, err
		}
		if !degraded {
			s.persist(node, key, res)
		}
		return res, nil
	})
	s.finish(r, node, key, res, shared, err)
}

// reuse serves node from the cache unless Force is set.
func (s *Summarizer) reuse(r *run, node *tree.Node, key hasher.Digest) bool {
	if s.opts.Force {
		return false
	}
	entry, ok := s.store.Get(key)
	if !ok || entry.Summary == "" {
		return false
	}
	node.Summary = entry.Summary
	node.Symbols = entry.Symbols
	node.Status = tree.Reused
	s.link(node, key)
	s.logger.Trace("cache hit", s.logger.Args("path", node.Path, "key", key.Short()))
	r.report.record(node, false, result{})
	return true
}

func (s *Summarizer) finish(r *run, node *tree.Node, key hasher.Digest, res result, shared bool, err error) {
	if err != nil {
		s.fail(r, node, err)
		return
	}
	node.Summary = res.summary
	node.Symbols = res.symbols
	node.Status = tree.Computed
	if !node.Degraded {
		// A duplicate may share a result that its leader did not persist.
		if _, err := s.store.Lookup(key); err == nil {
			s.link(node, key)
		}
	}
	if shared {
		s.logger.Debug("served duplicate content from in-run result", s.logger.Args("path", node.Path, "key", key.Short()))
	}
	r.report.record(node, shared, res)
}

func (s *Summarizer) fail(r *run, node *tree.Node, err error) {
	node.Status = tree.Failed
	node.Err = err
	node.Degraded = true
	if models.IsFatal(err) {
		r.fatalOnce.Do(func() {
			r.fatalErr = fmt.Errorf("aborting run at %s: %w", node.Path, err)
			r.cancel()
		})
	}
	if !errors.Is(err, context.Canceled) {
		s.logger.Error("summary failed", s.logger.Args("path", node.Path, "error", err))
	}
	r.report.record(node, false, result{})
}

// compute calls the provider under the parallel-call cap, retrying per the policy.
// The cap is released while waiting out a backoff.
func (s *Summarizer) compute(ctx context.Context, path string, prompt string) (result, error) {
	request := models.SummaryRequest{System: systemPrompt, Prompt: prompt, ContextPath: path}

	for attempt := 1; ; attempt++ {
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return result{}, ctx.Err()
		}
		resp, err := s.provider.Summarize(ctx, request)
		<-s.sem

		if err == nil {
			return result{summary: resp.Text, inputTokens: resp.InputTokens, outputTokens: resp.OutputTokens}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result{}, ctxErr
		}

		delay, retry := s.opts.Retry.Next(attempt, err)
		if !retry {
			return result{}, err
		}
		s.logger.Warn("retrying summary", s.logger.Args("path", path, "attempt", attempt, "delay", delay.String(), "error", err))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return result{}, ctx.Err()
		}
	}
}

func (s *Summarizer) persist(node *tree.Node, key hasher.Digest, res result) {
	entry := &cache.Entry{
		Key:         key.String(),
		PathHint:    node.Path,
		Kind:        node.Kind.String(),
		Summary:     res.summary,
		Symbols:     res.symbols,
		GeneratedAt: time.Now().UTC(),
	}
	write := s.store.Put
	if s.opts.Force {
		write = s.store.Replace
	}
	if err := write(entry); err != nil {
		s.logger.Warn("failed to persist summary", s.logger.Args("path", node.Path, "error", err))
	}
}

func (s *Summarizer) link(node *tree.Node, key hasher.Digest) {
	if err := s.store.Link(node.Path, node.IsDir(), key); err != nil {
		s.logger.Debug("failed to update cache mirror", s.logger.Args("path", node.Path, "error", err))
	}
}

package summarizer

import (
	"sort"
	"sync"
	"time"

	"github.com/meysamhadeli/doctreeai/tree"
)

// FailedNode is a node left without a summary.
type FailedNode struct {
	Path string
	Err  error
}

// Report is the end-of-run summary.
type Report struct {
	Total        int
	Reused       int
	Computed     int
	Deduplicated int
	Skipped      int
	Failed       []FailedNode
	Warnings     []tree.Warning
	// Degraded lists directories summarized from partial input; they were not persisted.
	Degraded     []string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
}

// ComputeCalls is the number of nodes that needed the compute step this run.
func (r *Report) ComputeCalls() int { return r.Computed }

// HasFailures reports whether any node failed.
func (r *Report) HasFailures() bool { return len(r.Failed) > 0 }

type reportBuilder struct {
	mu     sync.Mutex
	report Report
}

func (b *reportBuilder) record(node *tree.Node, shared bool, res result) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch node.Status {
	case tree.Reused:
		if shared {
			b.report.Deduplicated++
		} else {
			b.report.Reused++
		}
	case tree.Computed:
		if shared {
			b.report.Deduplicated++
		} else {
			b.report.Computed++
			b.report.InputTokens += res.inputTokens
			b.report.OutputTokens += res.outputTokens
		}
	case tree.Skipped:
		b.report.Skipped++
	case tree.Failed:
		b.report.Failed = append(b.report.Failed, FailedNode{Path: node.Path, Err: node.Err})
	}
	if node.Degraded && node.IsDir() && node.Status == tree.Computed {
		b.report.Degraded = append(b.report.Degraded, node.Path)
	}
}

func (b *reportBuilder) finish(total int, started time.Time) *Report {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.report
	r.Total = total
	r.Duration = time.Since(started)
	sort.Slice(r.Failed, func(i, j int) bool { return r.Failed[i].Path < r.Failed[j].Path })
	sort.Strings(r.Degraded)
	return &r
}

package summarizer

import (
	"context"
	"sync"

	"github.com/meysamhadeli/doctreeai/hasher"
)

type result struct {
	summary      string
	symbols      []string
	inputTokens  int
	outputTokens int
}

type call struct {
	done chan struct{}
	res  result
	err  error
}

// inflight guarantees at most one compute per fingerprint within a run. Calls
// stay registered after they finish, so a late duplicate reuses the result.
type inflight struct {
	mu    sync.Mutex
	calls map[hasher.Digest]*call
}

func newInflight() *inflight {
	return &inflight{calls: make(map[hasher.Digest]*call)}
}

// do runs fn for key unless another caller already did or is doing so, in
// which case it waits for that result. shared is true for waiters.
func (r *inflight) do(ctx context.Context, key hasher.Digest, fn func() (result, error)) (res result, shared bool, err error) {
	r.mu.Lock()
	if c, ok := r.calls[key]; ok {
		r.mu.Unlock()
		select {
		case <-c.done:
			return c.res, true, c.err
		case <-ctx.Done():
			return result{}, true, ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	r.calls[key] = c
	r.mu.Unlock()

	c.res, c.err = fn()
	close(c.done)
	return c.res, false, c.err
}

package summarizer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meysamhadeli/doctreeai/hasher"
	"github.com/meysamhadeli/doctreeai/providers/models"
	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Next(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	transient := &models.TransientError{StatusCode: 429, Err: errors.New("slow down")}

	cases := []struct {
		attempt int
		err     error
		delay   time.Duration
		retry   bool
	}{
		{1, transient, time.Second, true},
		{2, transient, 2 * time.Second, true},
		{3, transient, 4 * time.Second, true},
		{4, transient, 5 * time.Second, true},
		{5, transient, 0, false},
		{1, &models.FatalError{Err: errors.New("unauthorized")}, 0, false},
		{1, errors.New("bad request"), 0, false},
		{1, context.Canceled, 0, false},
		{1, nil, 0, false},
	}

	for _, tc := range cases {
		delay, retry := policy.Next(tc.attempt, tc.err)
		assert.Equal(t, tc.retry, retry, "attempt %d err %v", tc.attempt, tc.err)
		assert.Equal(t, tc.delay, delay, "attempt %d err %v", tc.attempt, tc.err)
	}
}

func TestRetryPolicy_WrappedTransient(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), &models.TransientError{Err: errors.New("reset")})
	_, retry := DefaultRetryPolicy.Next(1, wrapped)
	assert.True(t, retry)
}

func TestInflight_SingleExecution(t *testing.T) {
	registry := newInflight()
	key := hasher.Fingerprint([]byte("shared"))

	var executions atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]result, 10)
	sharedCount := atomic.Int32{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, shared, err := registry.do(context.Background(), key, func() (result, error) {
				executions.Add(1)
				<-release
				return result{summary: "once"}, nil
			})
			assert.NoError(t, err)
			if shared {
				sharedCount.Add(1)
			}
			results[i] = res
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), executions.Load())
	assert.Equal(t, int32(9), sharedCount.Load())
	for _, res := range results {
		assert.Equal(t, "once", res.summary)
	}

	// A caller arriving after completion still gets the stored result.
	res, shared, err := registry.do(context.Background(), key, func() (result, error) {
		executions.Add(1)
		return result{}, nil
	})
	assert.NoError(t, err)
	assert.True(t, shared)
	assert.Equal(t, "once", res.summary)
	assert.Equal(t, int32(1), executions.Load())
}

func TestInflight_WaiterHonoursCancellation(t *testing.T) {
	registry := newInflight()
	key := hasher.Fingerprint([]byte("slow"))
	release := make(chan struct{})
	defer close(release)

	started := make(chan struct{})
	go func() {
		_, _, _ = registry.do(context.Background(), key, func() (result, error) {
			close(started)
			<-release
			return result{}, nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, shared, err := registry.do(ctx, key, func() (result, error) {
		t.Fatal("waiter must not execute")
		return result{}, nil
	})
	assert.True(t, shared)
	assert.ErrorIs(t, err, context.Canceled)
}

package gateway

import (
	"context"
	"sync/atomic"
)

// RetryBudget caps the retries spent by every call of one pipeline run.
// It is shared by concurrent calls and only touched atomically.
type RetryBudget struct {
	remaining atomic.Int64
}

// NewRetryBudget allows n retries in total.
func NewRetryBudget(n int) *RetryBudget {
	b := &RetryBudget{}
	b.remaining.Store(int64(n))
	return b
}

// Remaining returns the retries still available.
func (b *RetryBudget) Remaining() int {
	if b == nil {
		return 0
	}
	return int(b.remaining.Load())
}

func (b *RetryBudget) take() bool {
	if b == nil {
		return true
	}
	for {
		cur := b.remaining.Load()
		if cur <= 0 {
			return false
		}
		if b.remaining.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

type budgetKey struct{}

// WithRetryBudget attaches a run budget to ctx. Calls without one retry up
// to their own attempt limit.
func WithRetryBudget(ctx context.Context, b *RetryBudget) context.Context {
	return context.WithValue(ctx, budgetKey{}, b)
}

func budgetFrom(ctx context.Context) *RetryBudget {
	b, _ := ctx.Value(budgetKey{}).(*RetryBudget)
	return b
}

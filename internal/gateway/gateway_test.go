package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NarrativeScorer/internal/ports"
)

type scriptedReply struct {
	text  string
	err   error
	delay time.Duration
}

type scriptedClient struct {
	mu       sync.Mutex
	replies  []scriptedReply
	calls    int
	messages [][]ports.ChatMessage
}

func (c *scriptedClient) Complete(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	c.mu.Lock()
	idx := c.calls
	c.calls++
	c.messages = append(c.messages, messages)
	reply := c.replies[len(c.replies)-1]
	if idx < len(c.replies) {
		reply = c.replies[idx]
	}
	c.mu.Unlock()

	if reply.delay > 0 {
		time.Sleep(reply.delay)
	}
	return reply.text, reply.err
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

var scoreSchema = Schema{Name: "score", Definition: "score: number & >=0 & <=10", ArrayKey: "items"}

func fastConfig() Config {
	return Config{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffCap: 2 * time.Millisecond, MaxConcurrent: 2}
}

func testSpec() PromptSpec {
	return PromptSpec{Stage: "test", Role: "You score entries.", Context: "Entry text", Format: `{"score": number}`}
}

func TestInvokeReturnsValidatedPayload(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{replies: []scriptedReply{{text: "Result:\n```json\n{\"score\": 7}\n```"}}}
	g := New(client, fastConfig(), nil)

	payload, err := g.Invoke(context.Background(), testSpec(), scoreSchema, time.Second)
	require.NoError(t, err)

	var out struct {
		Score float64 `json:"score"`
	}
	require.NoError(t, payload.Decode(&out))
	assert.Equal(t, 7.0, out.Score)
	assert.Equal(t, 1, client.callCount())
	require.Len(t, client.messages[0], 2)
	assert.Equal(t, "system", client.messages[0][0].Role)
	assert.Contains(t, client.messages[0][1].Content, "Output format:")
}

func TestInvokeRetriesMalformedThenSucceeds(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{replies: []scriptedReply{
		{text: "I think it is pretty good."},
		{text: `{"score": 42}`},
		{text: `{"score": 6}`},
	}}
	g := New(client, fastConfig(), nil)

	payload, err := g.Invoke(context.Background(), testSpec(), scoreSchema, time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":6}`, string(payload))
	assert.Equal(t, 3, client.callCount())
}

func TestInvokeExhaustsAttempts(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{replies: []scriptedReply{{err: fmt.Errorf("status 429: %w", ports.ErrModelRateLimited)}}}
	g := New(client, fastConfig(), nil)

	_, err := g.Invoke(context.Background(), testSpec(), scoreSchema, time.Second)
	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, KindRateLimited, ge.Kind)
	assert.Equal(t, 3, ge.Attempts)
	assert.Equal(t, "test", ge.Stage)
	assert.True(t, ge.Transient())
	assert.ErrorIs(t, err, ports.ErrModelRateLimited)
	assert.Equal(t, 3, client.callCount())
}

func TestInvokeDoesNotRetryPermanentFailures(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{replies: []scriptedReply{{err: fmt.Errorf("status 401: %w", ports.ErrModelUnauthorized)}}}
	g := New(client, fastConfig(), nil)

	_, err := g.Invoke(context.Background(), testSpec(), scoreSchema, time.Second)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, client.callCount())
}

func TestInvokeEnforcesCallTimeout(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{replies: []scriptedReply{{text: `{"score": 5}`, delay: 300 * time.Millisecond}}}
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	g := New(client, cfg, nil)

	start := time.Now()
	_, err := g.Invoke(context.Background(), testSpec(), scoreSchema, 20*time.Millisecond)
	elapsed := time.Since(start)

	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, KindTimeout, ge.Kind)
	assert.Less(t, elapsed, 250*time.Millisecond)
}

func TestInvokeStopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{replies: []scriptedReply{{err: ports.ErrModelUnavailable}}}
	cfg := fastConfig()
	cfg.MaxAttempts = 50
	cfg.BackoffBase = 20 * time.Millisecond
	cfg.BackoffCap = 20 * time.Millisecond
	g := New(client, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.Invoke(ctx, testSpec(), scoreSchema, time.Second)
	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, KindTimeout, ge.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, client.callCount(), 50)
}

func TestInvokeHonorsRetryBudget(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{replies: []scriptedReply{{err: ports.ErrModelUnavailable}}}
	cfg := fastConfig()
	cfg.MaxAttempts = 5
	g := New(client, cfg, nil)

	budget := NewRetryBudget(1)
	ctx := WithRetryBudget(context.Background(), budget)

	_, err := g.Invoke(ctx, testSpec(), scoreSchema, time.Second)
	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, KindUnavailable, ge.Kind)
	assert.Equal(t, 2, ge.Attempts)
	assert.Equal(t, 0, budget.Remaining())

	_, err = g.Invoke(ctx, testSpec(), scoreSchema, time.Second)
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, 1, ge.Attempts)
	assert.Equal(t, 3, client.callCount())
}

func TestInvokeWrapsTopLevelArray(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{replies: []scriptedReply{{text: `[{"id": "a"}]`}}}
	g := New(client, fastConfig(), nil)

	schema := Schema{Name: "items", Definition: `items: [...{id: string}]`, ArrayKey: "items"}
	payload, err := g.Invoke(context.Background(), testSpec(), schema, time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"id":"a"}]}`, string(payload))
}

func TestInvokeWithoutClient(t *testing.T) {
	t.Parallel()

	g := New(nil, fastConfig(), nil)
	_, err := g.Invoke(context.Background(), testSpec(), scoreSchema, time.Second)
	assert.True(t, IsPermanent(err))
}

type gaugeClient struct {
	current atomic.Int64
	peak    atomic.Int64
}

func (c *gaugeClient) Complete(ctx context.Context, _ []ports.ChatMessage) (string, error) {
	n := c.current.Add(1)
	defer c.current.Add(-1)
	for {
		old := c.peak.Load()
		if n <= old || c.peak.CompareAndSwap(old, n) {
			break
		}
	}
	select {
	case <-time.After(15 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return `{"score": 3}`, nil
}

func TestInvokeRespectsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	client := &gaugeClient{}
	g := New(client, fastConfig(), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Invoke(context.Background(), testSpec(), scoreSchema, time.Second)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, client.peak.Load(), int64(2))
	assert.Equal(t, int64(0), g.InFlight())
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindPermanent, classify(ports.ErrModelBadRequest))
	assert.Equal(t, KindRateLimited, classify(fmt.Errorf("wrap: %w", ports.ErrModelRateLimited)))
	assert.Equal(t, KindUnavailable, classify(errors.New("connection reset")))
	assert.Equal(t, KindTimeout, classify(context.DeadlineExceeded))
	assert.Equal(t, KindMalformed, classify(fmt.Errorf("%w: x", errMalformed)))
}

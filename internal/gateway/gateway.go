package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"

	"NarrativeScorer/internal/ports"
)

const (
	defaultMaxAttempts   = 3
	defaultBackoffBase   = 250 * time.Millisecond
	defaultBackoffCap    = 4 * time.Second
	defaultMaxConcurrent = 4
	jitterPercent        = 20
)

// Payload is a schema-validated JSON value.
type Payload json.RawMessage

// Decode unmarshals the payload into v.
func (p Payload) Decode(v any) error {
	return json.Unmarshal(p, v)
}

// Invoker is what analysis stages depend on.
type Invoker interface {
	Invoke(ctx context.Context, spec PromptSpec, schema Schema, timeout time.Duration) (Payload, error)
}

type Config struct {
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	MaxConcurrent int
	SystemPrompt  string
}

// Gateway mediates every model call: prompt rendering, per-attempt
// timeouts, payload extraction, schema validation, retries and the shared
// concurrency limit.
type Gateway struct {
	client   ports.ModelClient
	cfg      Config
	limiter  *semaphore.Weighted
	inFlight atomic.Int64
	logger   *slog.Logger
}

func New(client ports.ModelClient, cfg Config, logger *slog.Logger) *Gateway {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = defaultBackoffCap
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gateway{
		client:  client,
		cfg:     cfg,
		limiter: semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:  logger,
	}
}

// InFlight returns the number of model calls currently outstanding.
func (g *Gateway) InFlight() int64 {
	return g.inFlight.Load()
}

// Invoke performs one logical model call. It either returns a payload that
// passed schema validation or an *Error. Permanent failures are never
// retried; transient ones are retried with capped exponential backoff
// while the attempt limit, the run budget and ctx allow.
func (g *Gateway) Invoke(ctx context.Context, spec PromptSpec, schema Schema, timeout time.Duration) (Payload, error) {
	if g.client == nil {
		return nil, &Error{Kind: KindPermanent, Stage: spec.Stage, Err: errors.New("model client is not configured")}
	}

	messages := spec.Messages(g.cfg.SystemPrompt)
	budget := budgetFrom(ctx)

	backoff := retry.NewExponential(g.cfg.BackoffBase)
	backoff = retry.WithCappedDuration(g.cfg.BackoffCap, backoff)
	backoff = retry.WithJitterPercent(jitterPercent, backoff)
	backoff = retry.WithMaxRetries(uint64(g.cfg.MaxAttempts-1), backoff)

	var (
		payload  Payload
		lastErr  error
		attempts int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attempts > 0 && !budget.take() {
			return errBudgetExhausted
		}
		attempts++

		p, err := g.attempt(ctx, messages, schema, timeout)
		if err == nil {
			payload = p
			return nil
		}
		lastErr = err
		kind := classify(err)
		g.logger.Debug("model call failed",
			"stage", spec.Stage,
			"attempt", attempts,
			"kind", string(kind),
			"error", err,
		)
		if kind == KindPermanent {
			return err
		}
		return retry.RetryableError(err)
	})
	if err == nil {
		return payload, nil
	}

	if lastErr == nil {
		lastErr = err
	}
	kind := classify(lastErr)
	if ctxErr := ctx.Err(); ctxErr != nil && kind != KindPermanent {
		kind = KindTimeout
		lastErr = fmt.Errorf("%w (last failure: %v)", ctxErr, lastErr)
	}
	return nil, &Error{Kind: kind, Stage: spec.Stage, Attempts: attempts, Err: lastErr}
}

func (g *Gateway) attempt(ctx context.Context, messages []ports.ChatMessage, schema Schema, timeout time.Duration) (Payload, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := g.limiter.Acquire(callCtx, 1); err != nil {
		return nil, fmt.Errorf("%w: waiting for a model slot: %v", errTimeout, err)
	}
	defer g.limiter.Release(1)
	g.inFlight.Add(1)
	defer g.inFlight.Add(-1)

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := g.client.Complete(callCtx, messages)
		done <- result{text: text, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-callCtx.Done():
		return nil, fmt.Errorf("%w: %v", errTimeout, callCtx.Err())
	}
	if res.err != nil {
		if callCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", errTimeout, res.err)
		}
		return nil, res.err
	}

	raw, err := Extract(res.text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	raw, err = wrapArray(raw, schema.ArrayKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if err := schema.Validate(raw); err != nil {
		return nil, err
	}
	return Payload(raw), nil
}

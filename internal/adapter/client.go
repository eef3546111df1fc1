package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/advisorhub/mira/pkg/models"
)

var tracer = otel.Tracer("mira-adapter")

const (
	defaultMaxRetries     = 2
	defaultCallTimeout    = 30 * time.Second
	defaultRetryDelay     = 100 * time.Millisecond
	maxRetryDelay         = 2 * time.Second
	currentProbeTimeout   = 3 * time.Second
	candidateProbeTimeout = 2 * time.Second
)

// ClientOptions configures NewClient. Zero fields take the defaults.
type ClientOptions struct {
	// Adapter is the initial adapter. Defaults to the first candidate.
	Adapter Adapter
	// Candidates are the failover targets in order. Defaults to
	// BuildCandidateAdapters for TenantConfig.
	Candidates   []Adapter
	TenantConfig *models.TenantModelConfig
	Env          Env
	HTTPClient   *http.Client

	// MaxRetries is the number of retries after the first attempt.
	// Zero means 2, negative disables retries.
	MaxRetries int
	// Timeout bounds one adapter call. Defaults to 30s.
	Timeout time.Duration
	// RetryDelay is the first backoff delay. Defaults to 100ms.
	RetryDelay time.Duration
	// RequireProvider fails construction when only the mock is available.
	RequireProvider bool
}

type clientState struct {
	current    Adapter
	candidates []Adapter
}

// Client dispatches chat operations through the healthiest adapter.
// Before every operation it probes the current adapter and swaps in the
// first healthy candidate if the probe fails.
type Client struct {
	state      atomic.Pointer[clientState]
	served     atomic.Pointer[Info]
	maxRetries int
	timeout    time.Duration
	retryDelay time.Duration
}

// NewClient builds a failover client.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	candidates := opts.Candidates
	if len(candidates) == 0 {
		candidates = BuildCandidateAdapters(ctx, Options{TenantConfig: opts.TenantConfig, Env: opts.Env, HTTPClient: opts.HTTPClient})
	}
	current := opts.Adapter
	if current == nil {
		current = candidates[0]
	}
	if opts.RequireProvider && onlyMock(current, candidates) {
		return nil, fmt.Errorf("no provider available beyond the mock adapter: %w", ErrMissingProviderConfig)
	}

	c := &Client{
		maxRetries: opts.MaxRetries,
		timeout:    opts.Timeout,
		retryDelay: opts.RetryDelay,
	}
	if tc := opts.TenantConfig; tc != nil {
		if c.maxRetries == 0 && tc.MaxRetries != nil {
			c.maxRetries = *tc.MaxRetries
		}
		if c.timeout == 0 && tc.TimeoutMs != nil && *tc.TimeoutMs > 0 {
			c.timeout = time.Duration(*tc.TimeoutMs) * time.Millisecond
		}
	}
	switch {
	case c.maxRetries == 0:
		c.maxRetries = defaultMaxRetries
	case c.maxRetries < 0:
		c.maxRetries = 0
	}
	if c.timeout <= 0 {
		c.timeout = defaultCallTimeout
	}
	if c.retryDelay <= 0 {
		c.retryDelay = defaultRetryDelay
	}
	c.state.Store(&clientState{current: current, candidates: candidates})
	return c, nil
}

func onlyMock(current Adapter, candidates []Adapter) bool {
	if current.ID() != "mock" {
		return false
	}
	for _, a := range candidates {
		if a.ID() != "mock" {
			return false
		}
	}
	return true
}

// AdapterInfo identifies the adapter that most recently served a call, or
// the current adapter before any call.
func (c *Client) AdapterInfo() Info {
	if info := c.served.Load(); info != nil {
		return *info
	}
	a := c.state.Load().current
	return Info{ID: a.ID(), Name: a.Name()}
}

func (c *Client) markServed(a Adapter) {
	c.served.Store(&Info{ID: a.ID(), Name: a.Name()})
}

func probe(ctx context.Context, a Adapter, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return a.Health(ctx)
}

// ensureHealthy returns the adapter to dispatch to. A failed probe of the
// current adapter swaps in the first healthy candidate; if none is healthy
// the current adapter is kept and its errors surface to the caller.
func (c *Client) ensureHealthy(ctx context.Context, label string) Adapter {
	st := c.state.Load()
	if probe(ctx, st.current, min(c.timeout, currentProbeTimeout)) {
		return st.current
	}
	log.Warn().Str("op", label).Str("adapter", st.current.ID()).Msg("Adapter health check failed")

	for _, cand := range st.candidates {
		if cand == st.current {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if !probe(ctx, cand, candidateProbeTimeout) {
			continue
		}
		if c.state.CompareAndSwap(st, &clientState{current: cand, candidates: st.candidates}) {
			log.Info().Str("op", label).Str("from", st.current.ID()).Str("to", cand.ID()).Msg("Adapter fallback")
			return cand
		}
		return c.state.Load().current
	}
	return st.current
}

func (c *Client) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.Multiplier = 2
	b.MaxInterval = maxRetryDelay
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)
}

// retryable marks cancellation as permanent. Parent deadline expiry is
// also final; a per-call timeout is not.
func retryable(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return backoff.Permanent(err)
	}
	return err
}

// Chat sends req through the current adapter with retries.
func (c *Client) Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResult, error) {
	ctx, span := tracer.Start(ctx, "adapter.Chat")
	defer span.End()

	attempt := 0
	var last Adapter
	res, err := backoff.RetryWithData(func() (*models.ChatResult, error) {
		attempt++
		a := c.ensureHealthy(ctx, "chat")
		last = a

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		res, err := a.Chat(callCtx, req)
		if err == nil {
			c.markServed(a)
			span.SetAttributes(attribute.String("mira.adapter", a.ID()), attribute.Int("mira.attempts", attempt))
			return res, nil
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("chat timed out after %s: %w", c.timeout, err)
		}
		log.Warn().Err(err).Str("adapter", a.ID()).Int("attempt", attempt).Msg("Adapter call failed")
		return nil, retryable(ctx, err)
	}, c.backOff(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		id := "unknown"
		if last != nil {
			id = last.ID()
		}
		return nil, fmt.Errorf("chat via %s failed after %d attempt(s): %w", id, attempt, err)
	}
	return res, nil
}

// StreamChat streams req through the current adapter. The returned channel
// ends after a terminal event or when ctx is done. Failures to start a
// stream are retried; on exhaustion an error event with code stream_error
// is emitted.
func (c *Client) StreamChat(ctx context.Context, req *models.ChatRequest) <-chan models.AgentEvent {
	out := make(chan models.AgentEvent)
	go func() {
		defer close(out)
		ctx, span := tracer.Start(ctx, "adapter.StreamChat")
		defer span.End()

		emit := func(ev models.AgentEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		attempt := 0
		err := backoff.Retry(func() error {
			attempt++
			a := c.ensureHealthy(ctx, "streamChat")
			events, err := a.StreamChat(ctx, req)
			if err != nil {
				log.Warn().Err(err).Str("adapter", a.ID()).Int("attempt", attempt).Msg("Adapter stream failed")
				return retryable(ctx, err)
			}
			c.markServed(a)
			span.SetAttributes(attribute.String("mira.adapter", a.ID()))
			for {
				select {
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					if !emit(ev) {
						return backoff.Permanent(ctx.Err())
					}
					if ev.Terminal() {
						return nil
					}
				}
			}
		}, c.backOff(ctx))

		if err == nil || ctx.Err() != nil {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		emit(models.AgentEvent{Type: models.EventError, Data: models.ErrorData{Error: models.ErrorDetail{
			Message: err.Error(), Code: "stream_error", Type: "adapter_error",
		}}})
	}()
	return out
}

// GetClientSecret returns the client secret issued by the current adapter.
func (c *Client) GetClientSecret(ctx context.Context) (string, error) {
	a := c.ensureHealthy(ctx, "getClientSecret")
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	secret, err := a.GetClientSecret(callCtx)
	if err != nil {
		return "", fmt.Errorf("client secret via %s: %w", a.ID(), err)
	}
	c.markServed(a)
	return secret, nil
}

// Health reports whether any adapter is healthy.
func (c *Client) Health(ctx context.Context) bool {
	a := c.ensureHealthy(ctx, "health")
	ok := probe(ctx, a, min(c.timeout, currentProbeTimeout))
	if ok {
		c.markServed(a)
	}
	return ok
}

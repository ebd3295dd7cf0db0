package backend

import (
	"context"
	"time"

	"rook/internal/logging"
)

// CallRequest is one structured invocation from the caller's point of view.
// Credential selection, model, and token defaults are handled by Caller.
type CallRequest struct {
	Prompt          string
	System          string
	MaxOutputTokens int
	Temperature     float64
}

// Caller is the retry and rotation orchestrator. Call never returns an
// error: when every attempt fails it substitutes a deterministic fallback
// plan and says so in the result metadata.
type Caller struct {
	pool        *Pool
	invoker     Invoker
	model       string
	maxRetries  int
	backoffBase time.Duration
}

// NewCaller wires a credential pool and an invoker into an orchestrator.
// pool may be nil; every Call then short-circuits to the fallback plan.
func NewCaller(pool *Pool, invoker Invoker, model string, maxRetries int, backoffBase time.Duration) *Caller {
	if maxRetries <= 0 {
		maxRetries = 4
	}
	return &Caller{
		pool:        pool,
		invoker:     invoker,
		model:       model,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
	}
}

// Model returns the configured model name.
func (c *Caller) Model() string {
	return c.model
}

// Call runs the retry loop: up to maxRetries attempts, rotating the
// credential cursor after every failure and backing off exponentially
// between attempts. Quota failures mark the key dead before rotating.
func (c *Caller) Call(ctx context.Context, req CallRequest) Result {
	if c.pool == nil || c.pool.Size() == 0 {
		logging.APIWarn("no credentials available, serving fallback plan")
		return c.fallbackResult(req.Prompt, OriginFallback, "", 0)
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			delay := c.backoffBase * (1 << uint(attempt-2))
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					logging.APIWarn("call cancelled during backoff: %v", ctx.Err())
					return c.fallbackResult(req.Prompt, OriginFallbackAfterError, ctx.Err().Error(), attempt-1)
				}
			}
		}

		attempts = attempt
		cred := c.pool.Current()
		text, transcript, err := c.invoker.Invoke(ctx, Request{
			Prompt:          req.Prompt,
			System:          req.System,
			Model:           c.model,
			MaxOutputTokens: req.MaxOutputTokens,
			Temperature:     req.Temperature,
			Credential:      cred,
		})
		if err == nil {
			return Result{
				Text:       text,
				Transcript: transcript,
				Meta: Meta{
					Model:        c.model,
					Origin:       OriginBackend,
					KeyMasked:    cred.Masked(),
					AttemptsUsed: attempt,
				},
			}
		}

		lastErr = err
		if IsQuota(err) {
			c.pool.MarkDead(cred)
		} else {
			logging.APIWarn("attempt %d/%d with %s failed: %v", attempt, c.maxRetries, cred.Masked(), err)
			c.pool.Rotate()
		}

		if ctx.Err() != nil {
			break
		}
	}

	errMsg := ""
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	logging.APIError("all %d attempt(s) failed, serving fallback plan: %s", attempts, errMsg)
	return c.fallbackResult(req.Prompt, OriginFallbackAfterError, errMsg, attempts)
}

func (c *Caller) fallbackResult(prompt string, origin Origin, errMsg string, attempts int) Result {
	return Result{
		Text: FallbackText(prompt),
		Meta: Meta{
			Model:        c.model,
			Origin:       origin,
			Error:        errMsg,
			AttemptsUsed: attempts,
		},
	}
}

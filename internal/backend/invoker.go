package backend

import "context"

// Request is a single backend attempt. The caller layer fills Credential on
// each attempt; everything else is fixed for the lifetime of one Call.
type Request struct {
	Prompt          string
	System          string
	Model           string
	MaxOutputTokens int
	Temperature     float64
	Credential      Credential
}

// Invoker performs exactly one backend attempt. No retries, no rotation, no
// fallback; failures come back as *Error so the caller can classify them.
// The second return value is the raw response transcript (the decoded API
// response) kept for audit records.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (text string, transcript any, err error)
}

// Origin records where a Result's text came from.
type Origin string

const (
	// OriginBackend means a live completion from the model.
	OriginBackend Origin = "backend"
	// OriginFallback means the pool was empty and no attempt was made.
	OriginFallback Origin = "fallback"
	// OriginFallbackAfterError means every retry failed and the canned plan
	// was substituted.
	OriginFallbackAfterError Origin = "fallback-after-error"
)

// Meta describes how a Result was produced.
type Meta struct {
	Model        string `json:"model"`
	Origin       Origin `json:"origin"`
	KeyMasked    string `json:"key_masked,omitempty"`
	Error        string `json:"error,omitempty"`
	AttemptsUsed int    `json:"attempts_used"`
}

// RepairAttempt records one extra backend round made while coercing a
// malformed completion into structured form.
type RepairAttempt struct {
	Stage   string `json:"stage"`
	Snippet string `json:"snippet,omitempty"`
	Meta    Meta   `json:"meta"`
}

// Result is the outcome of a Call. It always carries usable Text: on total
// failure the text is a canned fallback plan and Meta.Origin says so.
type Result struct {
	Text       string          `json:"text"`
	Transcript any             `json:"-"`
	Meta       Meta            `json:"meta"`
	Repairs    []RepairAttempt `json:"repairs,omitempty"`
}

package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rook/internal/backend"
)

// scriptedCaller returns canned results in order, repeating the last one.
type scriptedCaller struct {
	results []backend.Result
	calls   []backend.CallRequest
}

func (s *scriptedCaller) Call(_ context.Context, req backend.CallRequest) backend.Result {
	s.calls = append(s.calls, req)
	idx := len(s.calls) - 1
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	return s.results[idx]
}

func live(text string) backend.Result {
	return backend.Result{Text: text, Meta: backend.Meta{Origin: backend.OriginBackend, AttemptsUsed: 1}}
}

func TestInvokeStructuredDirectParse(t *testing.T) {
	caller := &scriptedCaller{results: []backend.Result{live(`{"actions": [], "summary": "direct"}`)}}
	o := NewOrchestrator(caller)

	obj, res := o.InvokeStructured(context.Background(), "prompt", "system", Options{MaxOutputTokens: 400})
	assert.Equal(t, "direct", obj["summary"])
	assert.Empty(t, res.Repairs)
	assert.Len(t, caller.calls, 1)
}

func TestInvokeStructuredLocalRecoveryNeedsNoExtraCalls(t *testing.T) {
	caller := &scriptedCaller{results: []backend.Result{
		live("Sure thing!\n```json\n{\"actions\": [], \"summary\": \"fenced\"}\n```"),
	}}
	o := NewOrchestrator(caller)

	obj, res := o.InvokeStructured(context.Background(), "prompt", "system", Options{})
	assert.Equal(t, "fenced", obj["summary"])
	assert.Empty(t, res.Repairs)
	assert.Len(t, caller.calls, 1)
}

func TestInvokeStructuredRepairRound(t *testing.T) {
	caller := &scriptedCaller{results: []backend.Result{
		live(`MAX_TOKENS {"actions": [ truncated`),
		live(`{"actions": [], "summary": "repaired"}`),
	}}
	o := NewOrchestrator(caller)

	obj, res := o.InvokeStructured(context.Background(), "prompt", "system", Options{RepairTokens: 150})
	assert.Equal(t, "repaired", obj["summary"])
	require.Len(t, res.Repairs, 1)
	assert.Equal(t, "repair", res.Repairs[0].Stage)
	assert.NotEmpty(t, res.Repairs[0].Snippet)

	require.Len(t, caller.calls, 2)
	assert.Contains(t, caller.calls[1].Prompt, "MAX_TOKENS", "repair round receives the malformed text")
	assert.Contains(t, caller.calls[1].System, `{"actions": [], "summary": "parse_failed"}`,
		"repair instruction names the give-up object")
	assert.Equal(t, 150, caller.calls[1].MaxOutputTokens)
}

func TestInvokeStructuredRegenerationRound(t *testing.T) {
	caller := &scriptedCaller{results: []backend.Result{
		live("no json here at all"),
		live("still no json"),
		live(`{"actions": [], "summary": "regenerated"}`),
	}}
	o := NewOrchestrator(caller)

	obj, res := o.InvokeStructured(context.Background(), "the original prompt", "system", Options{RepairTokens: 150})
	assert.Equal(t, "regenerated", obj["summary"])
	require.Len(t, res.Repairs, 2)
	assert.Equal(t, "repair", res.Repairs[0].Stage)
	assert.Equal(t, "regenerate", res.Repairs[1].Stage)

	require.Len(t, caller.calls, 3)
	assert.Contains(t, caller.calls[2].Prompt, "the original prompt")
	assert.Contains(t, caller.calls[2].Prompt, "ONLY a single valid JSON object")
}

func TestInvokeStructuredSentinel(t *testing.T) {
	caller := &scriptedCaller{results: []backend.Result{live("garbage forever")}}
	o := NewOrchestrator(caller)

	obj, res := o.InvokeStructured(context.Background(), "prompt", "system", Options{})
	assert.Equal(t, "parse_failed", obj["summary"])
	assert.Empty(t, obj["actions"])
	assert.Len(t, res.Repairs, 2, "both recovery rounds were attempted")
}

func TestInvokeStructuredSkipsRecoveryWhenFallbackServed(t *testing.T) {
	// Fallback text always parses, so recovery never fires for it; this
	// guards the repair gate against non-live results sneaking through.
	caller := &scriptedCaller{results: []backend.Result{
		{Text: "not json", Meta: backend.Meta{Origin: backend.OriginFallbackAfterError}},
	}}
	o := NewOrchestrator(caller)

	obj, res := o.InvokeStructured(context.Background(), "prompt", "system", Options{})
	assert.Equal(t, "parse_failed", obj["summary"])
	require.Len(t, res.Repairs, 2)
	for _, r := range res.Repairs {
		assert.NotEqual(t, backend.OriginBackend, r.Meta.Origin)
	}
}

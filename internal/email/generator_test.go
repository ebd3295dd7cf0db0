package email

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"rook/internal/backend"
	"rook/internal/extract"
)

// routedInvoker answers worker, merge, and repair calls differently, keyed
// off the system prompt. Workers run concurrently, so call recording is
// locked.
type routedInvoker struct {
	mu sync.Mutex

	workerParsed map[string]any
	workerText   string

	mergeParsed map[string]any
	mergeText   string

	repairParsed map[string]any
	repairText   string

	workerCalls  int
	mergePrompts []string
	repairPrompt string
}

func (r *routedInvoker) InvokeStructured(_ context.Context, prompt, system string, _ extract.Options) (map[string]any, backend.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta := backend.Meta{Model: "test-model", Origin: backend.OriginBackend}
	switch {
	case strings.Contains(system, "email-writing"):
		r.workerCalls++
		return r.workerParsed, backend.Result{Text: r.workerText, Meta: meta}
	case strings.Contains(system, "email merger"):
		r.mergePrompts = append(r.mergePrompts, prompt)
		return r.mergeParsed, backend.Result{Text: r.mergeText, Meta: meta}
	default:
		r.repairPrompt = prompt
		return r.repairParsed, backend.Result{Text: r.repairText, Meta: meta}
	}
}

func TestGenerateMergedHappyPath(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	inv := &routedInvoker{
		workerParsed: map[string]any{"to": "client@acme.io", "subject": "Budget update", "body": "Draft body."},
		mergeParsed:  map[string]any{"to": "client@acme.io", "subject": "Budget update", "body": "Merged body."},
	}
	gen := NewGenerator(inv, Config{Workers: 3})

	final, record := gen.GenerateMerged(context.Background(), "Budget update", "spend was cut 20%")

	assert.Equal(t, "client@acme.io", final.To)
	assert.Equal(t, "Budget update", final.Subject)
	assert.Equal(t, "Merged body.", final.Body)
	assert.NotContains(t, final.Meta, "repair_used")

	assert.Equal(t, 3, inv.workerCalls)
	require.Len(t, record.Drafts, 3)
	assert.Len(t, record.RawDrafts, 3)
	assert.Equal(t, "test-model", record.MergeMeta.Model)
	assert.Empty(t, inv.repairPrompt)

	// Every worker draft lands in the merge prompt.
	require.Len(t, inv.mergePrompts, 1)
	assert.Contains(t, inv.mergePrompts[0], "[DRAFT 3]")
	assert.Contains(t, inv.mergePrompts[0], "Draft body.")
}

func TestGenerateMergedRepairsCorruptedMerge(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	inv := &routedInvoker{
		workerParsed: map[string]any{"to": "client@acme.io", "subject": "Hi", "body": "Draft body."},
		workerText:   `{"to":"client@acme.io","subject":"Hi","body":"Draft body."}`,
		mergeParsed:  map[string]any{"to": "client@acme.io", "subject": "Hi", "body": "GenerateContentResponse(sdk_http_response=...)"},
		repairParsed: map[string]any{"to": "client@acme.io", "subject": "Hi", "body": "Clean body."},
	}
	gen := NewGenerator(inv, Config{Workers: 2})

	final, _ := gen.GenerateMerged(context.Background(), "Hi", "notes")

	assert.Equal(t, "Clean body.", final.Body)
	assert.Equal(t, true, final.Meta["repair_used"])
	// The repair round sees the raw worker texts, not the merged wreck.
	assert.Contains(t, inv.repairPrompt, "Draft body.")
}

func TestGenerateMergedKeepsMergeWhenRepairEmpty(t *testing.T) {
	inv := &routedInvoker{
		workerParsed: map[string]any{"to": "client@acme.io", "subject": "Hi", "body": "Draft body."},
		mergeParsed:  map[string]any{"to": "client@acme.io", "subject": "Hi", "body": "MAX_TOKENS truncated"},
	}
	gen := NewGenerator(inv, Config{Workers: 1})

	final, _ := gen.GenerateMerged(context.Background(), "Hi", "notes")

	// Repair produced nothing usable, so the merged draft stands as-is.
	assert.Equal(t, "MAX_TOKENS truncated", final.Body)
	assert.NotContains(t, final.Meta, "repair_used")
	assert.NotEmpty(t, inv.repairPrompt)
}

func TestGenerateMergedSalvagesProseDraft(t *testing.T) {
	inv := &routedInvoker{
		workerText:  "Subject line here\nActual body of the email.",
		mergeParsed: map[string]any{"to": "client@acme.io", "subject": "Hi", "body": "Merged."},
	}
	gen := NewGenerator(inv, Config{Workers: 1})

	_, record := gen.GenerateMerged(context.Background(), "Hi", "notes")

	require.Len(t, record.Drafts, 1)
	assert.Equal(t, "Actual body of the email.", record.Drafts[0].Body)
	assert.Equal(t, "Hi", record.Drafts[0].Subject)
	assert.Equal(t, "client@example.com", record.Drafts[0].To)
}

func TestNormalizeParsed(t *testing.T) {
	t.Run("complete draft passes through", func(t *testing.T) {
		d := normalizeParsed(map[string]any{"to": "a@b.c", "subject": "S", "body": "B"}, "", "hint")
		assert.Equal(t, Draft{To: "a@b.c", Subject: "S", Body: "B", Meta: map[string]any{}}, d)
	})

	t.Run("missing fields fall back to defaults", func(t *testing.T) {
		d := normalizeParsed(nil, "only line", "")
		assert.Equal(t, "client@example.com", d.To)
		assert.Equal(t, "Update", d.Subject)
		assert.Equal(t, "only line", d.Body)
	})

	t.Run("body recovered from embedded json", func(t *testing.T) {
		raw := "noise before {\"to\":\"x@y.z\",\"subject\":\"Found\",\"body\":\"Recovered.\"} noise after"
		d := normalizeParsed(map[string]any{}, raw, "hint")
		assert.Equal(t, "Recovered.", d.Body)
		assert.Equal(t, "Found", d.Subject)
		assert.Equal(t, true, d.Meta["from_raw_json"])
	})
}

func TestIsCorrupted(t *testing.T) {
	assert.False(t, isCorrupted(Draft{Body: "Hello, plain email."}))
	for _, marker := range corruptionMarkers {
		assert.True(t, isCorrupted(Draft{Body: "x " + marker + " y"}), marker)
	}
	assert.True(t, isCorrupted(Draft{Subject: "Candidate(finish_reason=...)"}))
}

package extract

import (
	"context"
	"encoding/json"

	"rook/internal/backend"
	"rook/internal/logging"
)

// Invoker is the slice of the backend caller this package needs.
// *backend.Caller satisfies it.
type Invoker interface {
	Call(ctx context.Context, req backend.CallRequest) backend.Result
}

// Options bounds one structured invocation.
type Options struct {
	MaxOutputTokens int
	Temperature     float64
	// RepairTokens caps the two recovery calls (repair and regeneration).
	RepairTokens int
}

const repairSystem = "You are a JSON repair tool. The text you receive contains, somewhere inside it, " +
	"a single JSON object. Output that object and nothing else: no prose, no markdown fences. " +
	`If no object can be found, output exactly {"actions": [], "summary": "parse_failed"}.`

// Sentinel is the object returned when every ladder stage fails. Callers
// treat its summary value as the signal that extraction gave up.
func Sentinel() map[string]any {
	return map[string]any{"actions": []any{}, "summary": "parse_failed"}
}

// Orchestrator turns free-form completions into parsed objects, spending up
// to two extra backend rounds on recovery when local parsing fails.
type Orchestrator struct {
	caller Invoker
}

// NewOrchestrator wraps a backend caller.
func NewOrchestrator(caller Invoker) *Orchestrator {
	return &Orchestrator{caller: caller}
}

// InvokeStructured performs the full ladder: one primary call, local parsing
// (direct, fenced, balanced-scan), then a repair call over the malformed
// text, then one regeneration call, then the sentinel. The returned Result
// is the primary call's result with any recovery rounds appended to Repairs.
func (o *Orchestrator) InvokeStructured(ctx context.Context, prompt, system string, opts Options) (map[string]any, backend.Result) {
	result := o.caller.Call(ctx, backend.CallRequest{
		Prompt:          prompt,
		System:          system,
		MaxOutputTokens: opts.MaxOutputTokens,
		Temperature:     opts.Temperature,
	})

	if obj, ok := Parse(result.Text); ok {
		return obj, result
	}
	logging.ExtractWarn("local parse failed (len=%d origin=%s), trying repair round", len(result.Text), result.Meta.Origin)

	// Fallback text is built locally and always parses, so reaching this
	// point means a live completion was malformed; recovery rounds are
	// worth the tokens.
	if obj, ok := o.repairRound(ctx, result.Text, opts, &result); ok {
		return obj, result
	}
	if obj, ok := o.regenerateRound(ctx, prompt, system, opts, &result); ok {
		return obj, result
	}

	logging.ExtractWarn("all ladder stages failed, returning sentinel")
	return Sentinel(), result
}

// repairRound asks the backend to pull the JSON object out of the malformed
// text, then runs the local stages on the answer.
func (o *Orchestrator) repairRound(ctx context.Context, malformed string, opts Options, result *backend.Result) (map[string]any, bool) {
	repair := o.caller.Call(ctx, backend.CallRequest{
		Prompt:          malformed,
		System:          repairSystem,
		MaxOutputTokens: opts.RepairTokens,
		Temperature:     0,
	})
	result.Repairs = append(result.Repairs, backend.RepairAttempt{
		Stage:   "repair",
		Snippet: snippet(malformed),
		Meta:    repair.Meta,
	})
	if repair.Meta.Origin != backend.OriginBackend {
		return nil, false
	}
	obj, ok := Parse(repair.Text)
	if ok {
		logging.Extract("repair round recovered a valid object")
	}
	return obj, ok
}

// regenerateRound re-runs the original request with the format requirement
// restated, as a last resort before the sentinel.
func (o *Orchestrator) regenerateRound(ctx context.Context, prompt, system string, opts Options, result *backend.Result) (map[string]any, bool) {
	regen := o.caller.Call(ctx, backend.CallRequest{
		Prompt: prompt + "\n\nReturn ONLY a single valid JSON object. No prose, no markdown fences.",
		System: system,
		MaxOutputTokens: func() int {
			if opts.RepairTokens > 0 {
				return opts.RepairTokens
			}
			return opts.MaxOutputTokens
		}(),
		Temperature: 0,
	})
	result.Repairs = append(result.Repairs, backend.RepairAttempt{
		Stage: "regenerate",
		Meta:  regen.Meta,
	})
	if regen.Meta.Origin != backend.OriginBackend {
		return nil, false
	}
	obj, ok := Parse(regen.Text)
	if ok {
		logging.Extract("regeneration round recovered a valid object")
	}
	return obj, ok
}

func snippet(s string) string {
	const max = 400
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// MustJSON marshals v for prompts and logs, favoring continuity over error
// handling since inputs here are always marshalable maps and slices.
func MustJSON(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(out)
}

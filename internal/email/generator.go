// Package email generates outbound drafts by fanning several generation
// calls out in parallel, merging them, and repairing the merge when the
// model leaked SDK debris into it.
package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"rook/internal/backend"
	"rook/internal/extract"
	"rook/internal/logging"
	"rook/internal/store"
)

// StructuredInvoker is the slice of the extraction orchestrator this
// package needs. *extract.Orchestrator satisfies it.
type StructuredInvoker interface {
	InvokeStructured(ctx context.Context, prompt, system string, opts extract.Options) (map[string]any, backend.Result)
}

// Draft is one produced email.
type Draft struct {
	To      string         `json:"to"`
	Subject string         `json:"subject"`
	Body    string         `json:"body"`
	Meta    map[string]any `json:"meta"`
}

// Record is the audit trail of one generation: every draft, the merge, and
// the optional repair, in one object.
type Record struct {
	Final     Draft          `json:"final"`
	Drafts    []Draft        `json:"workers"`
	RawDrafts []string       `json:"raw_workers"`
	MergeMeta backend.Meta   `json:"raw_merge_meta"`
	CreatedAt time.Time      `json:"created_at"`
}

// Config bounds one generation run.
type Config struct {
	Workers      int
	WorkerTokens int
	MergeTokens  int
	RepairTokens int
	// LogDir, when set, receives one JSON record per generation.
	LogDir string
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 3
	}
	if c.WorkerTokens <= 0 {
		c.WorkerTokens = 250
	}
	if c.MergeTokens <= 0 {
		c.MergeTokens = 400
	}
	if c.RepairTokens <= 0 {
		c.RepairTokens = 150
	}
	return c
}

// corruptionMarkers are SDK debris strings; any of them in a merged draft
// means the model echoed a raw API response instead of writing an email.
var corruptionMarkers = []string{"sdk_http_response", "Candidate(", "MAX_TOKENS", "GenerateContentResponse"}

const workerSystem = "You are an email-writing assistant. ALWAYS output EXACT JSON ONLY.\n" +
	`Return JSON: {"to":"...","subject":"...","body":"..."}` + "\n" +
	"Use professional marketing tone. KEEP IT SHORT."

const mergeSystem = "You are an email merger. You will receive multiple JSON emails.\n" +
	`Your job: produce ONE final JSON email: {"to":"...","subject":"...","body":"..."}.` + "\n" +
	"No extra text. Always valid JSON."

const repairSystem = "You will be given messy text. Extract and output EXACTLY one JSON:\n" +
	`{"to":"...","subject":"...","body":"..."}` + "\n" +
	"Short, professional marketing email."

// Generator runs draft fan-out and merge.
type Generator struct {
	invoker StructuredInvoker
	cfg     Config
}

// NewGenerator wires the extraction orchestrator with run bounds.
func NewGenerator(invoker StructuredInvoker, cfg Config) *Generator {
	return &Generator{invoker: invoker, cfg: cfg.withDefaults()}
}

// GenerateMerged produces the final draft for a subject hint and notes.
// Worker drafts run concurrently; draft failures degrade to empty drafts
// that normalization fills, so the merge always has inputs.
func (g *Generator) GenerateMerged(ctx context.Context, subjectHint, notes string) (Draft, Record) {
	logging.Email("generating %d parallel draft(s) for %q", g.cfg.Workers, subjectHint)

	parsedDrafts := make([]map[string]any, g.cfg.Workers)
	rawDrafts := make([]backend.Result, g.cfg.Workers)

	grp, grpCtx := errgroup.WithContext(ctx)
	for i := 0; i < g.cfg.Workers; i++ {
		grp.Go(func() error {
			prompt := fmt.Sprintf("Subject hint: %s\nNotes: %s\nWrite a short professional email. JSON only.",
				subjectHint, notes)
			parsedDrafts[i], rawDrafts[i] = g.invoker.InvokeStructured(grpCtx, prompt, workerSystem, extract.Options{
				MaxOutputTokens: g.cfg.WorkerTokens,
				Temperature:     0.3,
				RepairTokens:    g.cfg.RepairTokens,
			})
			return nil
		})
	}
	// Workers never return errors; Wait only orders the writes above.
	_ = grp.Wait()

	drafts := make([]Draft, g.cfg.Workers)
	rawTexts := make([]string, g.cfg.Workers)
	for i := range drafts {
		drafts[i] = normalizeParsed(parsedDrafts[i], rawDrafts[i].Text, subjectHint)
		rawTexts[i] = rawDrafts[i].Text
	}

	mergeParsed, mergeRaw := g.invoker.InvokeStructured(ctx, mergePrompt(drafts, subjectHint), mergeSystem, extract.Options{
		MaxOutputTokens: g.cfg.MergeTokens,
		Temperature:     0,
		RepairTokens:    g.cfg.RepairTokens,
	})
	final := normalizeParsed(mergeParsed, mergeRaw.Text, subjectHint)

	if isCorrupted(final) {
		logging.EmailWarn("merged draft looks corrupted, running repair round")
		repairParsed, repairRaw := g.invoker.InvokeStructured(ctx,
			extract.MustJSON(map[string]any{"workers": rawTexts}), repairSystem, extract.Options{
				MaxOutputTokens: 350,
				Temperature:     0,
				RepairTokens:    g.cfg.RepairTokens,
			})
		repaired := normalizeParsed(repairParsed, repairRaw.Text, subjectHint)
		if repaired.Body != "" {
			repaired.Meta["repair_used"] = true
			final = repaired
		}
	}

	record := Record{
		Final:     final,
		Drafts:    drafts,
		RawDrafts: rawTexts,
		MergeMeta: mergeRaw.Meta,
		CreatedAt: time.Now().UTC(),
	}
	if g.cfg.LogDir != "" {
		if path, err := store.WriteJSON(g.cfg.LogDir, "final_email", record); err == nil {
			final.Meta["log_path"] = path
		} else {
			logging.EmailWarn("could not write email record: %v", err)
		}
	}
	return final, record
}

func mergePrompt(drafts []Draft, subjectHint string) string {
	var b strings.Builder
	b.WriteString("DRAFTS:\n")
	for i, d := range drafts {
		fmt.Fprintf(&b, "[DRAFT %d]\n%s\n\n", i+1, extract.MustJSON(d))
	}
	fmt.Fprintf(&b, "Subject hint: %s\n\nFINAL_JSON:", subjectHint)
	return b.String()
}

func isCorrupted(d Draft) bool {
	combined := d.Body + d.Subject
	for _, marker := range corruptionMarkers {
		if strings.Contains(combined, marker) {
			return true
		}
	}
	return false
}

// normalizeParsed coerces a parsed completion into a complete draft. Missing
// fields are recovered from the raw text: first by JSON extraction, then by
// treating the first line as the subject and the rest as the body.
func normalizeParsed(parsed map[string]any, rawText, subjectHint string) Draft {
	if parsed == nil {
		parsed = map[string]any{}
	}
	d := Draft{
		To:      stringField(parsed, "to", "client@example.com"),
		Subject: stringField(parsed, "subject", ""),
		Body:    stringField(parsed, "body", ""),
		Meta:    map[string]any{},
	}
	if m, ok := parsed["meta"].(map[string]any); ok {
		for k, v := range m {
			d.Meta[k] = v
		}
	}
	if d.Subject == "" {
		d.Subject = subjectHint
	}
	if d.Subject == "" {
		d.Subject = "Update"
	}

	if d.Body != "" {
		return d
	}

	if salvaged, ok := extract.Parse(rawText); ok {
		if to := stringField(salvaged, "to", ""); to != "" {
			d.To = to
		}
		if subject := stringField(salvaged, "subject", ""); subject != "" {
			d.Subject = subject
		}
		d.Body = stringField(salvaged, "body", "")
		if d.Body != "" {
			d.Meta["from_raw_json"] = true
			return d
		}
	}

	lines := nonEmptyLines(rawText)
	if len(lines) > 1 {
		d.Body = clip(strings.Join(lines[1:], "\n"), 1200)
	} else {
		d.Body = clip(rawText, 1200)
	}
	return d
}

func stringField(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rook/internal/logging"
)

// Wire types for the generateContent REST endpoint.

type wireRequest struct {
	Contents          []wireContent   `json:"contents"`
	SystemInstruction *wireContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  wireGeneration  `json:"generationConfig"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text string `json:"text"`
}

type wireGeneration struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type wireResponse struct {
	Candidates []struct {
		Content      wireContent `json:"content"`
		FinishReason string      `json:"finishReason,omitempty"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// HTTPInvoker talks to the generateContent REST endpoint directly. It makes
// exactly one attempt per Invoke; rotation and retry live in Caller.
type HTTPInvoker struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPInvoker builds an invoker against the given API base URL.
func NewHTTPInvoker(baseURL string, timeout time.Duration) *HTTPInvoker {
	return &HTTPInvoker{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

// Invoke performs one generateContent round trip.
func (h *HTTPInvoker) Invoke(ctx context.Context, req Request) (string, any, error) {
	if req.Credential.Raw() == "" {
		return "", nil, NewError(KindBackend, "empty credential")
	}

	body := wireRequest{
		Contents: []wireContent{
			{Role: "user", Parts: []wirePart{{Text: req.Prompt}}},
		},
		GenerationConfig: wireGeneration{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
		},
	}
	if req.System != "" {
		body.SystemInstruction = &wireContent{Parts: []wirePart{{Text: req.System}}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", nil, NewError(KindBackend, "marshal request").WithCause(err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", h.BaseURL, req.Model, req.Credential.Raw())

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return "", nil, NewError(KindTransport, "create request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(httpReq)
	if err != nil {
		logging.APIError("http invoke failed for %s: %v", req.Credential.Masked(), err)
		return "", nil, NewError(KindTransport, "request failed").WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, NewError(KindTransport, "read response").WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.APIWarn("http invoke status %d for %s", resp.StatusCode, req.Credential.Masked())
		return "", nil, classifyStatus(resp.StatusCode, truncate(string(raw), 300))
	}

	var decoded wireResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", nil, NewError(KindBackend, "unparseable response body").WithCause(err)
	}
	if decoded.Error != nil {
		return "", nil, classifyStatus(decoded.Error.Code, decoded.Error.Message)
	}

	var sb strings.Builder
	for _, cand := range decoded.Candidates {
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
		break
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		// A 200 with no text sometimes precedes a working retry, so it is
		// classified as a backend error rather than accepted as-is.
		return "", decoded, NewError(KindBackend, "empty completion").WithStatus(resp.StatusCode)
	}

	logging.APIDebug("http invoke ok: model=%s key=%s len=%d took=%v",
		req.Model, req.Credential.Masked(), len(text), time.Since(start))
	return text, decoded, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

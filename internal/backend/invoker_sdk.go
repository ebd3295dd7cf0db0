package backend

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"rook/internal/logging"
)

// SDKInvoker drives the official genai SDK. Because each attempt may use a
// different API credential, a client is created per Invoke instead of being
// held on the struct.
type SDKInvoker struct{}

// NewSDKInvoker returns an SDK-backed invoker.
func NewSDKInvoker() *SDKInvoker {
	return &SDKInvoker{}
}

// Invoke performs one generation round trip through the SDK.
func (s *SDKInvoker) Invoke(ctx context.Context, req Request) (string, any, error) {
	if req.Credential.Raw() == "" {
		return "", nil, NewError(KindBackend, "empty credential")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: req.Credential.Raw(),
	})
	if err != nil {
		return "", nil, NewError(KindTransport, "create client").WithCause(err)
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), config)
	if err != nil {
		return "", nil, classifySDKError(err, req.Credential)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", resp, NewError(KindBackend, "empty completion").WithStatus(200)
	}

	logging.APIDebug("sdk invoke ok: model=%s key=%s len=%d took=%v",
		req.Model, req.Credential.Masked(), len(text), time.Since(start))
	return text, resp, nil
}

func classifySDKError(err error, cred Credential) *Error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		logging.APIWarn("sdk invoke failed for %s: code=%d %s", cred.Masked(), apiErr.Code, apiErr.Status)
		return classifyStatus(apiErr.Code, apiErr.Message).WithCause(err)
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return NewError(KindQuota, err.Error()).WithCause(err)
		}
	}
	logging.APIError("sdk invoke failed for %s: %v", cred.Masked(), err)
	return NewError(KindTransport, "sdk request failed").WithCause(err)
}

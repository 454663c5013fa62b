package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/northlake-dev/msgbridge/internal/capability"
	"github.com/northlake-dev/msgbridge/internal/endpointkind"
	"github.com/northlake-dev/msgbridge/internal/modelselect"
	"github.com/northlake-dev/msgbridge/internal/nonstream"
	"github.com/northlake-dev/msgbridge/internal/providerid"
	"github.com/northlake-dev/msgbridge/internal/reqtransform"
	"github.com/northlake-dev/msgbridge/internal/secret"
	"github.com/northlake-dev/msgbridge/internal/sse"
	"github.com/northlake-dev/msgbridge/internal/streaming"
	"github.com/northlake-dev/msgbridge/internal/upstream"
	"github.com/northlake-dev/msgbridge/internal/wire"
)

// handleMessages implements POST /v1/messages (§4.8).
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(ctx, w, wire.ErrInvalidRequest, "failed to read request body", "", http.StatusBadRequest)
		return
	}

	var req wire.AnthropicRequest
	if err := json.Unmarshal(rawBody, &req); err != nil || req.Messages == nil {
		writeError(ctx, w, wire.ErrInvalidRequest, "request body must include a messages array", "", http.StatusBadRequest)
		return
	}

	resolved := s.resolveKey()
	if resolved.Key == "" {
		writeError(ctx, w, wire.ErrAuthentication, "No API key found for the configured provider", "set the appropriate *_API_KEY environment variable", http.StatusBadRequest)
		return
	}

	kindRecord, err := s.detector.Detect(ctx, s.cfg.BaseURL, resolved.Key, s.endpointHint())
	if err != nil {
		slog.ErrorContext(ctx, "endpoint-kind detection failed", "error", Redact(err.Error()))
		writeError(ctx, w, wire.ErrUpstream, "failed to classify upstream endpoint", "", http.StatusBadGateway)
		return
	}

	model := modelselect.Select(req.Model, req.ThinkingEnabled(), s.cfg.ModelDefaults)

	if kindRecord.Kind == endpointkind.AnthropicNative {
		s.forwardAnthropicNative(ctx, w, r, rawBody, model, resolved.Key, req.Stream)
		return
	}
	s.forwardOpenAICompatible(ctx, w, r, &req, model, resolved.Key)
}

// resolveKey consults the fixed env-var priority list first (§4.1), then
// falls back to a logged-in Claude subscription's OAuth access token for
// the anthropic provider when configured (SPEC_FULL.md §B) — never the
// reverse, since an explicit env var always reflects deliberate operator
// configuration.
func (s *Server) resolveKey() secret.Resolved {
	if resolved := secret.Resolve(s.cfg.Provider, s.env); resolved.Key != "" {
		return resolved
	}
	if s.cfg.Provider == providerid.Anthropic && s.cfg.OAuthTokenSource != nil {
		if token, err := s.cfg.OAuthTokenSource(); err == nil && token != "" {
			return secret.Resolved{Key: token, Source: "oauth"}
		}
	}
	return secret.Resolved{}
}

func (s *Server) endpointHint() providerid.EndpointHint {
	if defaults, ok := providerid.Lookup(s.cfg.Provider); ok {
		return defaults.Hint
	}
	return providerid.HintOpenAICompatible
}

func (s *Server) forwardAnthropicNative(ctx context.Context, w http.ResponseWriter, r *http.Request, rawBody []byte, model, key string, stream bool) {
	body, err := reqtransform.ToAnthropicPassthrough(rawBody, model)
	if err != nil {
		writeError(ctx, w, wire.ErrInvalidRequest, "failed to prepare upstream request", "", http.StatusBadRequest)
		return
	}

	upstreamReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		writeError(ctx, w, wire.ErrUpstream, "failed to build upstream request", "", http.StatusBadGateway)
		return
	}
	upstreamReq.Header.Set("Content-Type", "application/json")

	headers := reqtransform.SelectAuthHeader(endpointkind.AnthropicNative, key, s.cfg.AnthropicVersion)
	resp, err := s.client.Do(upstreamReq, headers)
	if err != nil {
		writeError(ctx, w, wire.ErrUpstream, "upstream request failed", "", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if stream {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(ctx, w, wire.ErrUpstream, "streaming not supported", "", http.StatusInternalServerError)
			return
		}
		idleBody := upstream.NewIdleTimeoutReader(resp.Body, upstream.IdleBetweenEvents)
		defer idleBody.Close()
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(resp.StatusCode)
		io.Copy(flushWriter{w: w, flusher: flusher}, idleBody)
		return
	}

	idleBody := upstream.NewIdleTimeoutReader(resp.Body, upstream.NonStreamBodyDeadline)
	defer idleBody.Close()
	respBody, err := io.ReadAll(idleBody)
	if err != nil {
		writeError(ctx, w, wire.ErrUpstream, "failed to read upstream response", "", http.StatusBadGateway)
		return
	}
	rewritten, err := nonstream.ToAnthropicPassthrough(respBody, model, s.registry)
	if err != nil {
		rewritten = respBody
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(rewritten)
}

func (s *Server) forwardOpenAICompatible(ctx context.Context, w http.ResponseWriter, r *http.Request, req *wire.AnthropicRequest, model, key string) {
	openAIReq, err := reqtransform.ToOpenAI(req, model)
	if err != nil {
		writeError(ctx, w, wire.ErrInvalidRequest, "failed to translate request", "", http.StatusBadRequest)
		return
	}

	inject, err := s.registry.PreTransformRequest(model, openAIReq, s.cfg.ForceToolError)
	var forceErr *capability.ForceToolError
	if errors.As(err, &forceErr) {
		writeError(ctx, w, wire.ErrToolUnsupported, forceErr.Hint, "", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(ctx, w, wire.ErrInvalidRequest, "failed to apply model transformers", "", http.StatusBadRequest)
		return
	}
	if inject {
		if err := reqtransform.AppendToLastOpenAIUserMessage(openAIReq.Messages, capability.InjectToolFallbackText(req.Tools)); err != nil {
			writeError(ctx, w, wire.ErrInvalidRequest, "failed to build tool-fallback text", "", http.StatusBadRequest)
			return
		}
	}

	bodyBytes, err := json.Marshal(openAIReq)
	if err != nil {
		writeError(ctx, w, wire.ErrInvalidRequest, "failed to encode upstream request", "", http.StatusBadRequest)
		return
	}

	upstreamReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		writeError(ctx, w, wire.ErrUpstream, "failed to build upstream request", "", http.StatusBadGateway)
		return
	}
	upstreamReq.Header.Set("Content-Type", "application/json")

	headers := reqtransform.SelectAuthHeader(endpointkind.OpenAICompatible, key, "")
	for _, h := range secret.ProviderSpecificHeaders(s.cfg.Provider, s.env) {
		headers = append(headers, reqtransform.AuthHeader{Name: h.Name, Value: h.Value})
	}

	resp, err := s.client.Do(upstreamReq, headers)
	if err != nil {
		writeError(ctx, w, wire.ErrUpstream, "upstream request failed", "", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if openAIReq.Stream {
		machine := streaming.New(s.registry, model)
		sseWriter, werr := sse.NewWriter(w)
		if werr != nil {
			writeError(ctx, w, wire.ErrUpstream, "streaming not supported", "", http.StatusInternalServerError)
			return
		}
		idleBody := upstream.NewIdleTimeoutReader(resp.Body, upstream.IdleBetweenEvents)
		defer idleBody.Close()
		bodyPreview := ""
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			preview, _ := io.ReadAll(io.LimitReader(idleBody, 2048))
			bodyPreview = string(preview)
		}
		reader := sse.NewReader(idleBody).WithIdleTimeout(idleBody.TimedOut)
		machine.Run(reader, sseWriter, resp.StatusCode, bodyPreview)
		return
	}

	idleBody := upstream.NewIdleTimeoutReader(resp.Body, upstream.NonStreamBodyDeadline)
	defer idleBody.Close()
	respBody, err := io.ReadAll(idleBody)
	if err != nil {
		writeError(ctx, w, wire.ErrUpstream, "failed to read upstream response", "", http.StatusBadGateway)
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		writeError(ctx, w, wire.ErrUpstream, Redact(string(respBody)), "", resp.StatusCode)
		return
	}

	var openAIResp wire.OpenAIResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		writeError(ctx, w, wire.ErrUpstream, "upstream returned an unparseable response", "", http.StatusBadGateway)
		return
	}
	anthropicResp := nonstream.FromOpenAI(&openAIResp, model, s.registry)
	writeJSON(ctx, w, anthropicResp, http.StatusOK)
}

// handleDebugEcho implements POST /v1/debug/echo (§4.8): it makes no
// upstream call, returning the planned payload, selected model, and a
// redacted header set instead.
func (s *Server) handleDebugEcho(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(ctx, w, wire.ErrInvalidRequest, "failed to read request body", "", http.StatusBadRequest)
		return
	}
	var req wire.AnthropicRequest
	if err := json.Unmarshal(rawBody, &req); err != nil {
		writeError(ctx, w, wire.ErrInvalidRequest, "invalid JSON body", "", http.StatusBadRequest)
		return
	}

	resolved := s.resolveKey()
	model := modelselect.Select(req.Model, req.ThinkingEnabled(), s.cfg.ModelDefaults)

	kindRecord, _ := s.detector.Detect(ctx, s.cfg.BaseURL, resolved.Key, s.endpointHint())

	var planned any
	var headers []reqtransform.AuthHeader
	if kindRecord.Kind == endpointkind.AnthropicNative {
		body, _ := reqtransform.ToAnthropicPassthrough(rawBody, model)
		planned = json.RawMessage(body)
		headers = reqtransform.SelectAuthHeader(endpointkind.AnthropicNative, resolved.Key, s.cfg.AnthropicVersion)
	} else {
		openAIReq, err := reqtransform.ToOpenAI(&req, model)
		if err == nil {
			s.registry.PreTransformRequest(model, openAIReq, s.cfg.ForceToolError)
		}
		planned = openAIReq
		headers = reqtransform.SelectAuthHeader(endpointkind.OpenAICompatible, resolved.Key, "")
	}

	redactedHeaders := make(map[string]string, len(headers))
	for _, h := range headers {
		if h.Name == "Authorization" {
			redactedHeaders[h.Name] = "Bearer ***REDACTED***"
			continue
		}
		if h.Name == "x-api-key" {
			redactedHeaders[h.Name] = "***REDACTED***"
			continue
		}
		redactedHeaders[h.Name] = h.Value
	}

	var matched []string
	for _, entry := range s.registry.Transformers(model) {
		for _, t := range entry.Transformers {
			matched = append(matched, string(t))
		}
	}

	writeJSON(ctx, w, map[string]any{
		"plannedUpstreamPayload": planned,
		"selectedModel":          model,
		"headers":                redactedHeaders,
		"configuration": map[string]any{
			"hasApiKey": resolved.Key != "",
		},
		"matchedCapabilityTransformers": matched,
	}, http.StatusOK)
}

// handleHealth implements GET /health (§4.8).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resolved := s.resolveKey()
	rec, _ := s.detector.Detect(ctx, s.cfg.BaseURL, resolved.Key, s.endpointHint())

	body := map[string]any{
		"ok":              true,
		"baseUrl":         s.cfg.BaseURL,
		"endpointKind":    string(rec.Kind),
		"detectionSource": string(rec.DetectionSource),
	}
	if !rec.LastProbedAt.IsZero() {
		body["lastProbedAt"] = rec.LastProbedAt
	}
	writeJSON(ctx, w, body, http.StatusOK)
}

// flushWriter wraps an http.ResponseWriter+Flusher pair so io.Copy flushes
// after every write, matching the teacher's FlushInterval:-1 passthrough
// behavior for byte-exact SSE forwarding.
type flushWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if n > 0 {
		f.flusher.Flush()
	}
	return n, err
}

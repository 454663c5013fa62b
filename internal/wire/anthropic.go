// Package wire holds the hand-authored request/response shapes for both
// protocol dialects the proxy speaks (§3 Data Model). They are plain
// structs with json tags rather than generated or SDK-internal types,
// because the proxy must accept and re-emit the wire bytes exactly as
// spec.md describes them, including partial/streaming shapes the
// anthropic-sdk-go client-side param types are not meant to decode.
package wire

import "encoding/json"

// AnthropicRequest is the accepted downstream request shape (§3).
type AnthropicRequest struct {
	Model       string             `json:"model,omitempty"`
	Messages    []AnthropicMessage `json:"messages"`
	System      json.RawMessage    `json:"system,omitempty"`
	MaxTokens   *int64             `json:"max_tokens,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Tools       []AnthropicTool    `json:"tools,omitempty"`
	ToolChoice  json.RawMessage    `json:"tool_choice,omitempty"`
	// Thinking mirrors the client-sent shape, either a bare boolean or an
	// object like {"type":"enabled","budget_tokens":N}; use
	// ThinkingEnabled to interpret it (§3 "thinking (boolean hint)").
	Thinking json.RawMessage `json:"thinking,omitempty"`
}

// ThinkingEnabled reports whether the thinking hint requests reasoning
// mode, accepting both the bare-boolean and the object wire shapes.
func (r *AnthropicRequest) ThinkingEnabled() bool {
	if len(r.Thinking) == 0 {
		return false
	}
	var asBool bool
	if json.Unmarshal(r.Thinking, &asBool) == nil {
		return asBool
	}
	var asObject struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(r.Thinking, &asObject) == nil {
		return asObject.Type == "enabled"
	}
	return false
}

// AnthropicMessage is one turn in an AnthropicRequest.
type AnthropicMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// AnthropicContentBlock is one element of a message's content array when
// Content is a list rather than a bare string.
type AnthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// AnthropicTool is a client-declared tool spec (§3).
type AnthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// AnthropicToolChoice normalizes the three shapes tool_choice can take on
// the wire: {"type":"auto"}, {"type":"tool","name":...}, {"type":"any"}.
type AnthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// AnthropicResponse is the non-streaming response shape (§3).
type AnthropicResponse struct {
	ID           string                  `json:"id"`
	Type         string                  `json:"type"`
	Role         string                  `json:"role"`
	Model        string                  `json:"model"`
	StopReason   string                  `json:"stop_reason"`
	StopSequence *string                 `json:"stop_sequence"`
	Content      []AnthropicContentBlock `json:"content"`
	Usage        Usage                   `json:"usage"`
	Warnings     []string                `json:"warnings,omitempty"`
}

// Usage is the token accounting shape shared by responses and
// message_delta events.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// ErrorEnvelope is the downstream error wire shape (§6).
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Error kinds named in §6/§7.
const (
	ErrAuthentication  = "authentication_error"
	ErrToolUnsupported = "tool_unsupported"
	ErrUpstream        = "upstream_error"
	ErrInvalidRequest  = "invalid_request_error"
)

// Package reqtransform implements spec component C4: turning the accepted
// Anthropic-shaped request into either a passthrough anthropic-native body
// or a translated OpenAI-compatible body, and selecting the auth header
// for whichever endpoint kind is in play.
package reqtransform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/northlake-dev/msgbridge/internal/endpointkind"
	"github.com/northlake-dev/msgbridge/internal/wire"
)

// defaultAnthropicVersion is used when the client omits the
// anthropic-version header (§4.4, §9 Open Question: resolved in favor of
// the version the teacher's own impersonation transport pins).
const defaultAnthropicVersion = "2023-06-01"

// AuthHeader names the single header chosen for the upstream request; the
// two schemes are mutually exclusive per §4.4.
type AuthHeader struct {
	Name  string
	Value string
}

// SelectAuthHeader returns the header carrying key for the given endpoint
// kind, adding anthropic-version alongside x-api-key for anthropic-native.
func SelectAuthHeader(kind endpointkind.Kind, key, anthropicVersion string) []AuthHeader {
	if kind == endpointkind.AnthropicNative {
		if anthropicVersion == "" {
			anthropicVersion = defaultAnthropicVersion
		}
		return []AuthHeader{
			{Name: "x-api-key", Value: key},
			{Name: "anthropic-version", Value: anthropicVersion},
		}
	}
	return []AuthHeader{{Name: "Authorization", Value: "Bearer " + key}}
}

// ToAnthropicPassthrough substitutes the resolved upstream model id into a
// raw client body and strips client-private fields, for the
// anthropic-native forwarding path (§4.4 first sentence).
func ToAnthropicPassthrough(rawBody []byte, upstreamModel string) ([]byte, error) {
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(rawBody, &patch); err != nil {
		return nil, fmt.Errorf("reqtransform: decode passthrough body: %w", err)
	}

	modelJSON, err := json.Marshal(upstreamModel)
	if err != nil {
		return nil, err
	}
	patch["model"] = modelJSON

	delete(patch, "metadata")

	return json.Marshal(patch)
}

// ToOpenAI translates req (already model-substituted by the caller) into
// an OpenAI-compatible chat-completions body per §4.4's bullet list.
func ToOpenAI(req *wire.AnthropicRequest, upstreamModel string) (*wire.OpenAIRequest, error) {
	out := &wire.OpenAIRequest{
		Model:       upstreamModel,
		Stream:      req.Stream,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.Stream {
		out.StreamOptions = &wire.StreamOptions{IncludeUsage: true}
	}

	if len(req.System) > 0 {
		sysText, err := collapseSystem(req.System)
		if err != nil {
			return nil, err
		}
		if sysText != "" {
			out.Messages = append(out.Messages, wire.OpenAIMessage{
				Role:    "system",
				Content: json.RawMessage(mustQuote(sysText)),
			})
		}
	}

	for _, msg := range req.Messages {
		translated, err := translateMessage(msg)
		if err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, translated...)
	}

	if len(req.Tools) > 0 {
		out.Tools = make([]wire.OpenAITool, 0, len(req.Tools))
		for _, t := range req.Tools {
			out.Tools = append(out.Tools, wire.OpenAITool{
				Type: "function",
				Function: wire.OpenAIToolFunction{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.InputSchema,
				},
			})
		}
	}

	if len(req.ToolChoice) > 0 {
		choice, err := normalizeToolChoice(req.ToolChoice)
		if err != nil {
			return nil, err
		}
		out.ToolChoice = choice
	}

	return out, nil
}

// collapseSystem implements the System bullet: an array of content blocks
// is joined by newlines; a bare string passes through unchanged.
func collapseSystem(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) == 0 {
		return "", nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("reqtransform: decode system string: %w", err)
		}
		return s, nil
	}

	var blocks []wire.AnthropicContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", fmt.Errorf("reqtransform: decode system blocks: %w", err)
	}
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// translateMessage expands one Anthropic message into zero or more OpenAI
// messages: text blocks concatenate into the primary message, tool_use
// blocks append to its tool_calls, and each tool_result block becomes its
// own trailing {role:"tool"} message (§4.4).
func translateMessage(msg wire.AnthropicMessage) ([]wire.OpenAIMessage, error) {
	trimmed := strings.TrimSpace(string(msg.Content))
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(msg.Content, &s); err != nil {
			return nil, fmt.Errorf("reqtransform: decode string content: %w", err)
		}
		return []wire.OpenAIMessage{{Role: msg.Role, Content: json.RawMessage(mustQuote(s))}}, nil
	}

	var blocks []wire.AnthropicContentBlock
	if err := json.Unmarshal(msg.Content, &blocks); err != nil {
		return nil, fmt.Errorf("reqtransform: decode content blocks: %w", err)
	}

	var textParts []string
	var toolCalls []wire.OpenAIToolCall
	var toolMessages []wire.OpenAIMessage

	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				textParts = append(textParts, b.Text)
			}
		case "tool_use":
			args := "{}"
			if len(b.Input) > 0 {
				args = string(b.Input)
			}
			toolCalls = append(toolCalls, wire.OpenAIToolCall{
				ID:   b.ID,
				Type: "function",
				Function: wire.OpenAIToolCallFunc{
					Name:      b.Name,
					Arguments: args,
				},
			})
		case "tool_result":
			content, err := toolResultString(b.Content)
			if err != nil {
				return nil, err
			}
			toolMessages = append(toolMessages, wire.OpenAIMessage{
				Role:       "tool",
				ToolCallID: b.ToolUseID,
				Content:    json.RawMessage(mustQuote(content)),
			})
		}
	}

	primary := wire.OpenAIMessage{Role: msg.Role}
	if len(textParts) > 0 {
		primary.Content = json.RawMessage(mustQuote(strings.Join(textParts, "\n")))
	}
	primary.ToolCalls = toolCalls

	out := make([]wire.OpenAIMessage, 0, 1+len(toolMessages))
	if len(textParts) > 0 || len(toolCalls) > 0 {
		out = append(out, primary)
	}
	out = append(out, toolMessages...)
	return out, nil
}

// toolResultString implements the tool_result bullet: a bare string passes
// through, an array of blocks is serialized to a JSON string.
func toolResultString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("reqtransform: decode tool_result string: %w", err)
		}
		return s, nil
	}
	return string(raw), nil
}

// normalizeToolChoice implements the tool_choice bullet's three-way
// mapping.
func normalizeToolChoice(raw json.RawMessage) (any, error) {
	var choice wire.AnthropicToolChoice
	if err := json.Unmarshal(raw, &choice); err != nil {
		return nil, fmt.Errorf("reqtransform: decode tool_choice: %w", err)
	}
	switch choice.Type {
	case "auto":
		return "auto", nil
	case "any":
		return "required", nil
	case "tool":
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": choice.Name},
		}, nil
	default:
		return "auto", nil
	}
}

// AppendToLastUserMessage appends text to the last message in messages
// with role "user", handling both the bare-string and content-block-array
// wire shapes. Used to inject the tool-unsupported fallback description
// (§4.5) into the transcript before translation to OpenAI shape. Returns
// messages unchanged if there is no user message.
func AppendToLastUserMessage(messages []wire.AnthropicMessage, text string) ([]wire.AnthropicMessage, error) {
	lastUser := -1
	for i, m := range messages {
		if m.Role == "user" {
			lastUser = i
		}
	}
	if lastUser == -1 {
		return messages, nil
	}

	trimmed := strings.TrimSpace(string(messages[lastUser].Content))
	if len(trimmed) == 0 || trimmed[0] == '"' {
		var s string
		if len(trimmed) > 0 {
			if err := json.Unmarshal(messages[lastUser].Content, &s); err != nil {
				return nil, fmt.Errorf("reqtransform: decode last user message: %w", err)
			}
		}
		messages[lastUser].Content = json.RawMessage(mustQuote(s + text))
		return messages, nil
	}

	var blocks []wire.AnthropicContentBlock
	if err := json.Unmarshal(messages[lastUser].Content, &blocks); err != nil {
		return nil, fmt.Errorf("reqtransform: decode last user message blocks: %w", err)
	}
	blocks = append(blocks, wire.AnthropicContentBlock{Type: "text", Text: text})
	raw, err := json.Marshal(blocks)
	if err != nil {
		return nil, err
	}
	messages[lastUser].Content = raw
	return messages, nil
}

// AppendToLastOpenAIUserMessage appends text to the last message in
// messages with role "user", used to inject the tool-unsupported fallback
// description into an already-translated OpenAI message list (§4.5).
func AppendToLastOpenAIUserMessage(messages []wire.OpenAIMessage, text string) error {
	lastUser := -1
	for i, m := range messages {
		if m.Role == "user" {
			lastUser = i
		}
	}
	if lastUser == -1 {
		return nil
	}

	var existing string
	if len(messages[lastUser].Content) > 0 {
		if err := json.Unmarshal(messages[lastUser].Content, &existing); err != nil {
			return fmt.Errorf("reqtransform: decode last OpenAI user message: %w", err)
		}
	}
	messages[lastUser].Content = json.RawMessage(mustQuote(existing + text))
	return nil
}

func mustQuote(s string) []byte {
	b, err := json.Marshal(s)
	if err != nil {
		// json.Marshal on a string only fails for invalid UTF-8 handling,
		// which Go's encoding/json never does for a Go string.
		panic(err)
	}
	return b
}

// Package nonstream implements spec component C7: the non-streaming JSON
// response mapper, the synchronous counterpart of the streaming state
// machine in internal/streaming.
package nonstream

import (
	"encoding/json"

	"github.com/northlake-dev/msgbridge/internal/capability"
	"github.com/northlake-dev/msgbridge/internal/wire"
)

// emptyResponsePlaceholder and its accompanying warning implement §4.7's
// empty-response fallback.
const (
	emptyResponsePlaceholder = "Model response was empty"
	emptyResponseWarning     = "Model response was empty and a placeholder message was inserted."
)

// FromOpenAI maps an OpenAIResponse into the Anthropic shape for the
// openai-compatible non-streaming path (§4.7).
func FromOpenAI(resp *wire.OpenAIResponse, model string, registry *capability.Registry) *wire.AnthropicResponse {
	out := &wire.AnthropicResponse{
		ID:    resp.ID,
		Type:  "message",
		Role:  "assistant",
		Model: model,
		Usage: wire.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}

	var finishReason string
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		finishReason = choice.FinishReason

		if len(choice.Message.Content) > 0 {
			var text string
			if err := json.Unmarshal(choice.Message.Content, &text); err == nil && text != "" {
				out.Content = append(out.Content, wire.AnthropicContentBlock{Type: wire.BlockText, Text: text})
			}
		}

		for _, tc := range choice.Message.ToolCalls {
			args := tc.Function.Arguments
			if registry != nil {
				var warn bool
				args, warn = registry.RepairToolArguments(model, args)
				if warn {
					out.Warnings = append(out.Warnings, capability.EnhanceToolWarning)
				}
			}
			out.Content = append(out.Content, wire.AnthropicContentBlock{
				Type:  wire.BlockToolUse,
				ID:    tc.ID,
				Name:  tc.Function.Name,
				Input: json.RawMessage(args),
			})
		}
	}

	if len(out.Content) == 0 {
		out.Content = append(out.Content, wire.AnthropicContentBlock{Type: wire.BlockText, Text: emptyResponsePlaceholder})
		out.Warnings = append(out.Warnings, emptyResponseWarning)
	}

	out.StopReason = stopReasonFromOpenAI(finishReason)
	return out
}

// stopReasonFromOpenAI duplicates the streaming mapper's table (§4.6,
// referenced by §4.7 as "Map finish_reason as in §4.6") — kept as a
// private copy rather than a cross-package call to avoid coupling C6 and
// C7 to each other's internals for a four-case switch.
func stopReasonFromOpenAI(reason string) string {
	switch reason {
	case "stop":
		return wire.StopEndTurn
	case "length":
		return wire.StopMaxTokens
	case "tool_calls":
		return wire.StopToolUse
	case "content_filter":
		return wire.StopSequenceStop
	default:
		return wire.StopEndTurn
	}
}

// ToAnthropicPassthrough applies the optional warning-injection pass named
// in §4.7 for Anthropic-native upstreams: the body is forwarded unchanged,
// so there is nothing to transform, but a malformed tool_use block's input
// still gets repaired if the selected model matches the enhancetool
// transformer.
func ToAnthropicPassthrough(rawBody []byte, model string, registry *capability.Registry) ([]byte, error) {
	var resp wire.AnthropicResponse
	if err := json.Unmarshal(rawBody, &resp); err != nil {
		return rawBody, nil
	}
	if registry == nil || !registry.Has(model, capability.EnhanceTool) {
		return rawBody, nil
	}

	changed := false
	for i, block := range resp.Content {
		if block.Type != wire.BlockToolUse {
			continue
		}
		var asObject map[string]json.RawMessage
		if json.Unmarshal(block.Input, &asObject) == nil {
			continue
		}
		resp.Content[i].Input = json.RawMessage("{}")
		resp.Warnings = append(resp.Warnings, capability.EnhanceToolWarning)
		changed = true
	}
	if !changed {
		return rawBody, nil
	}
	return json.Marshal(resp)
}

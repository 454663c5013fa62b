package nonstream_test

import (
	"encoding/json"
	"testing"

	"github.com/northlake-dev/msgbridge/internal/capability"
	"github.com/northlake-dev/msgbridge/internal/nonstream"
	"github.com/northlake-dev/msgbridge/internal/wire"
)

func TestFromOpenAI_TextResponseMapsToTextBlock(t *testing.T) {
	resp := &wire.OpenAIResponse{
		ID: "chatcmpl-1",
		Choices: []wire.OpenAIChoice{
			{Message: wire.OpenAIMessage{Role: "assistant", Content: json.RawMessage(`"Hello!"`)}, FinishReason: "stop"},
		},
	}
	out := nonstream.FromOpenAI(resp, "gpt-x", capability.DefaultRegistry())
	if len(out.Content) != 1 || out.Content[0].Type != wire.BlockText || out.Content[0].Text != "Hello!" {
		t.Fatalf("got %+v", out.Content)
	}
	if out.StopReason != wire.StopEndTurn {
		t.Fatalf("got stop_reason %q", out.StopReason)
	}
	if out.Type != "message" || out.Role != "assistant" {
		t.Fatalf("got %+v", out)
	}
}

func TestFromOpenAI_EmptyResponseInsertsPlaceholder(t *testing.T) {
	resp := &wire.OpenAIResponse{Choices: []wire.OpenAIChoice{{FinishReason: "stop"}}}
	out := nonstream.FromOpenAI(resp, "gpt-x", capability.DefaultRegistry())
	if len(out.Content) != 1 || out.Content[0].Text != "Model response was empty" {
		t.Fatalf("got %+v", out.Content)
	}
	if len(out.Warnings) != 1 {
		t.Fatalf("got warnings %+v", out.Warnings)
	}
}

func TestFromOpenAI_ToolCallsBecomeToolUseBlocks(t *testing.T) {
	resp := &wire.OpenAIResponse{
		Choices: []wire.OpenAIChoice{{
			Message: wire.OpenAIMessage{ToolCalls: []wire.OpenAIToolCall{
				{ID: "call_1", Function: wire.OpenAIToolCallFunc{Name: "get_weather", Arguments: `{"city":"SF"}`}},
			}},
			FinishReason: "tool_calls",
		}},
	}
	out := nonstream.FromOpenAI(resp, "gpt-x", capability.DefaultRegistry())
	if len(out.Content) != 1 || out.Content[0].Type != wire.BlockToolUse || out.Content[0].Name != "get_weather" {
		t.Fatalf("got %+v", out.Content)
	}
	if out.StopReason != wire.StopToolUse {
		t.Fatalf("got %q", out.StopReason)
	}
}

func TestFromOpenAI_MalformedToolArgumentsRepairedWhenModelMatches(t *testing.T) {
	resp := &wire.OpenAIResponse{
		Choices: []wire.OpenAIChoice{{
			Message: wire.OpenAIMessage{ToolCalls: []wire.OpenAIToolCall{
				{ID: "call_1", Function: wire.OpenAIToolCallFunc{Name: "f", Arguments: `{broken`}},
			}},
		}},
	}
	out := nonstream.FromOpenAI(resp, "deepseek-reasoner", capability.DefaultRegistry())
	if string(out.Content[0].Input) != "{}" {
		t.Fatalf("got input %s", out.Content[0].Input)
	}
	if len(out.Warnings) != 1 {
		t.Fatalf("got %+v", out.Warnings)
	}
}

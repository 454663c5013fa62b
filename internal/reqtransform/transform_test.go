package reqtransform_test

import (
	"encoding/json"
	"testing"

	"github.com/northlake-dev/msgbridge/internal/endpointkind"
	"github.com/northlake-dev/msgbridge/internal/reqtransform"
	"github.com/northlake-dev/msgbridge/internal/wire"
)

func TestSelectAuthHeader_AnthropicNativeAddsVersion(t *testing.T) {
	headers := reqtransform.SelectAuthHeader(endpointkind.AnthropicNative, "sk-123", "")
	if len(headers) != 2 || headers[0].Name != "x-api-key" || headers[0].Value != "sk-123" {
		t.Fatalf("got %+v", headers)
	}
	if headers[1].Name != "anthropic-version" || headers[1].Value != "2023-06-01" {
		t.Fatalf("want default anthropic-version, got %+v", headers[1])
	}
}

func TestSelectAuthHeader_OpenAICompatibleUsesBearer(t *testing.T) {
	headers := reqtransform.SelectAuthHeader(endpointkind.OpenAICompatible, "sk-123", "")
	if len(headers) != 1 || headers[0].Name != "Authorization" || headers[0].Value != "Bearer sk-123" {
		t.Fatalf("got %+v", headers)
	}
}

func TestToOpenAI_CollapsesSystemBlocksAndPrependsMessage(t *testing.T) {
	req := &wire.AnthropicRequest{
		System: json.RawMessage(`[{"type":"text","text":"line one"},{"type":"text","text":"line two"}]`),
		Messages: []wire.AnthropicMessage{
			{Role: "user", Content: json.RawMessage(`"hi"`)},
		},
	}
	out, err := reqtransform.ToOpenAI(req, "gpt-x")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Messages) != 2 || out.Messages[0].Role != "system" {
		t.Fatalf("want system message first, got %+v", out.Messages)
	}
	var sys string
	if err := json.Unmarshal(out.Messages[0].Content, &sys); err != nil {
		t.Fatal(err)
	}
	if sys != "line one\nline two" {
		t.Fatalf("got %q", sys)
	}
}

func TestToOpenAI_ToolUseBlockBecomesToolCall(t *testing.T) {
	req := &wire.AnthropicRequest{
		Messages: []wire.AnthropicMessage{
			{Role: "assistant", Content: json.RawMessage(
				`[{"type":"tool_use","id":"call_1","name":"get_weather","input":{"city":"SF"}}]`,
			)},
		},
	}
	out, err := reqtransform.ToOpenAI(req, "gpt-x")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Messages) != 1 || len(out.Messages[0].ToolCalls) != 1 {
		t.Fatalf("got %+v", out.Messages)
	}
	call := out.Messages[0].ToolCalls[0]
	if call.ID != "call_1" || call.Function.Name != "get_weather" || call.Function.Arguments != `{"city":"SF"}` {
		t.Fatalf("got %+v", call)
	}
}

func TestToOpenAI_ToolResultBecomesTrailingToolMessage(t *testing.T) {
	req := &wire.AnthropicRequest{
		Messages: []wire.AnthropicMessage{
			{Role: "assistant", Content: json.RawMessage(
				`[{"type":"tool_use","id":"call_1","name":"get_weather","input":{}}]`,
			)},
			{Role: "user", Content: json.RawMessage(
				`[{"type":"tool_result","tool_use_id":"call_1","content":"72F"}]`,
			)},
		},
	}
	out, err := reqtransform.ToOpenAI(req, "gpt-x")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Messages) != 2 || out.Messages[1].Role != "tool" || out.Messages[1].ToolCallID != "call_1" {
		t.Fatalf("got %+v", out.Messages)
	}
	var content string
	if err := json.Unmarshal(out.Messages[1].Content, &content); err != nil {
		t.Fatal(err)
	}
	if content != "72F" {
		t.Fatalf("got %q", content)
	}
}

func TestToOpenAI_ToolsWrappedAsFunctions(t *testing.T) {
	req := &wire.AnthropicRequest{
		Tools: []wire.AnthropicTool{
			{Name: "get_weather", Description: "gets weather", InputSchema: json.RawMessage(`{"type":"object"}`)},
		},
	}
	out, err := reqtransform.ToOpenAI(req, "gpt-x")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Tools) != 1 || out.Tools[0].Type != "function" || out.Tools[0].Function.Name != "get_weather" {
		t.Fatalf("got %+v", out.Tools)
	}
}

func TestToOpenAI_ToolChoiceNormalization(t *testing.T) {
	cases := []struct {
		in   string
		want any
	}{
		{`{"type":"auto"}`, "auto"},
		{`{"type":"any"}`, "required"},
	}
	for _, c := range cases {
		req := &wire.AnthropicRequest{ToolChoice: json.RawMessage(c.in)}
		out, err := reqtransform.ToOpenAI(req, "gpt-x")
		if err != nil {
			t.Fatal(err)
		}
		if out.ToolChoice != c.want {
			t.Fatalf("in=%s: got %+v, want %+v", c.in, out.ToolChoice, c.want)
		}
	}

	req := &wire.AnthropicRequest{ToolChoice: json.RawMessage(`{"type":"tool","name":"get_weather"}`)}
	out, err := reqtransform.ToOpenAI(req, "gpt-x")
	if err != nil {
		t.Fatal(err)
	}
	m, ok := out.ToolChoice.(map[string]any)
	if !ok || m["type"] != "function" {
		t.Fatalf("got %+v", out.ToolChoice)
	}
}

func TestToAnthropicPassthrough_SubstitutesModelAndStripsPrivateFields(t *testing.T) {
	raw := []byte(`{"model":"claude-3-opus","messages":[],"metadata":{"user_id":"u1"}}`)
	out, err := reqtransform.ToAnthropicPassthrough(raw, "claude-3-5-sonnet-20241022")
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatal(err)
	}
	var model string
	if err := json.Unmarshal(decoded["model"], &model); err != nil {
		t.Fatal(err)
	}
	if model != "claude-3-5-sonnet-20241022" {
		t.Fatalf("got model %q", model)
	}
	if _, ok := decoded["metadata"]; ok {
		t.Fatal("want metadata stripped")
	}
}

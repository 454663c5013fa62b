package wire

// Event type names for the downstream SSE sequence (§4.6, §3 "Streaming
// event sequence"). One struct per event serves both the streaming state
// machine and its tests.
const (
	EventMessageStart      = "message_start"
	EventPing               = "ping"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventError             = "error"
)

// Content block types (§4.6, glossary "Content block").
const (
	BlockText    = "text"
	BlockToolUse = "tool_use"
	BlockThinking = "thinking"
)

// Delta types carried by content_block_delta events.
const (
	DeltaText          = "text_delta"
	DeltaInputJSON     = "input_json_delta"
	DeltaThinking      = "thinking_delta"
)

// Stop reasons emitted on message_delta (§4.6 FINALIZING mapping table).
const (
	StopEndTurn      = "end_turn"
	StopMaxTokens    = "max_tokens"
	StopToolUse      = "tool_use"
	StopSequenceStop = "stop_sequence"
)

// MessageStartEvent is the payload of the first event in every response
// (§4.6: "placeholder id/model and empty content").
type MessageStartEvent struct {
	Type    string         `json:"type"`
	Message MessageStartBody `json:"message"`
}

type MessageStartBody struct {
	ID           string                  `json:"id"`
	Type         string                  `json:"type"`
	Role         string                  `json:"role"`
	Model        string                  `json:"model"`
	Content      []AnthropicContentBlock `json:"content"`
	StopReason   *string                 `json:"stop_reason"`
	StopSequence *string                 `json:"stop_sequence"`
	Usage        Usage                   `json:"usage"`
}

// PingEvent carries no fields beyond its type.
type PingEvent struct {
	Type string `json:"type"`
}

// ContentBlockStartEvent opens block Index with the block's type-specific
// seed payload (empty text, or {id,name,input:{}} for a tool_use block).
type ContentBlockStartEvent struct {
	Type         string                `json:"type"`
	Index        int                   `json:"index"`
	ContentBlock AnthropicContentBlock `json:"content_block"`
}

// ContentBlockDeltaEvent carries one incremental update for block Index.
type ContentBlockDeltaEvent struct {
	Type  string                 `json:"type"`
	Index int                    `json:"index"`
	Delta ContentBlockDeltaBody  `json:"delta"`
}

// ContentBlockDeltaBody's fields are mutually exclusive by Type: Text for
// text_delta, PartialJSON for input_json_delta, Thinking for
// thinking_delta.
type ContentBlockDeltaBody struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
}

// ContentBlockStopEvent closes block Index.
type ContentBlockStopEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// MessageDeltaEvent carries the final stop_reason and cumulative usage
// (§4.6 FINALIZING).
type MessageDeltaEvent struct {
	Type  string             `json:"type"`
	Delta MessageDeltaBody   `json:"delta"`
	Usage Usage              `json:"usage"`
}

type MessageDeltaBody struct {
	StopReason   string   `json:"stop_reason"`
	StopSequence *string  `json:"stop_sequence,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// MessageStopEvent terminates the response; it carries no fields beyond
// its type.
type MessageStopEvent struct {
	Type string `json:"type"`
}

// StreamErrorEvent is emitted as `event: error` for the AWAIT_UPSTREAM_STATUS
// non-2xx and transient-upstream-on-stream cases (§4.6, §6).
type StreamErrorEvent struct {
	Type   string `json:"type"`
	Status int    `json:"status"`
	Body   string `json:"body"`
}

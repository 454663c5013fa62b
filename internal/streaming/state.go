// Package streaming implements spec component C6: the state machine that
// consumes an OpenAI-compatible upstream SSE stream and re-emits it as
// Anthropic-shaped SSE. The Anthropic-native passthrough path never enters
// this package — it is forwarded byte-for-byte by the C8 reverse proxy.
package streaming

import (
	"github.com/google/uuid"

	"github.com/northlake-dev/msgbridge/internal/capability"
	"github.com/northlake-dev/msgbridge/internal/wire"
)

// phase names the machine's states (§4.6).
type phase int

const (
	phaseAwaitUpstreamStatus phase = iota
	phaseStreaming
	phaseFinalizing
	phaseDone
)

// blockKind distinguishes the three content-block flavors a downstream
// index can hold (glossary "Content block").
type blockKind int

const (
	blockKindText blockKind = iota
	blockKindReasoning
	blockKindToolUse
)

// toolBlock tracks one tool_use block's accumulated arguments string, so
// consecutive deltas can be diffed into partial_json fragments (§4.6).
type toolBlock struct {
	index        int
	id           string
	name         string
	lastArgs     string
}

// Machine holds all per-request state named in §3's "In-flight request
// state" lifecycle: the content-block index map, partial-JSON
// accumulators, and phase. One Machine serves exactly one response and is
// discarded on message_stop or downstream disconnect.
type Machine struct {
	registry *capability.Registry
	model    string

	phase phase

	messageID string

	textIndex       int
	textOpen        bool
	reasoningIndex  int
	reasoningOpen   bool
	nextIndex       int
	lastOpenedIndex int

	toolBlocksByUpstreamIndex map[int]*toolBlock

	finishReason string
	usage        wire.Usage

	parseErrorStreak int
	warnings         []string
}

// New creates a Machine for one response. model is the upstream model id
// already selected by C3, used to consult the capability registry for the
// reasoning and enhancetool transformers.
func New(registry *capability.Registry, model string) *Machine {
	return &Machine{
		registry:                  registry,
		model:                     model,
		phase:                     phaseAwaitUpstreamStatus,
		messageID:                 "msg_" + uuid.NewString(),
		textIndex:                 -1,
		reasoningIndex:            -1,
		toolBlocksByUpstreamIndex: make(map[int]*toolBlock),
	}
}

// Done reports whether the machine has reached its terminal state.
func (m *Machine) Done() bool { return m.phase == phaseDone }

package streaming

import (
	"encoding/json"
	"strings"

	"github.com/northlake-dev/msgbridge/internal/capability"
	"github.com/northlake-dev/msgbridge/internal/sse"
	"github.com/northlake-dev/msgbridge/internal/wire"
)

// maxConsecutiveParseErrors implements §4.6/§7's "three in a row → treat
// as disconnect" protocol rule.
const maxConsecutiveParseErrors = 3

// downstreamWriter is the subset of *sse.Writer the state machine needs,
// kept narrow so tests can substitute a recording fake.
type downstreamWriter interface {
	WriteEvent(name string, v any) error
}

var _ downstreamWriter = (*sse.Writer)(nil)

// Run drives the machine to completion, reading records from upstream and
// writing Anthropic-shaped events to w. It returns nil once the machine
// reaches DONE by any path (normal finish, upstream disconnect, or a
// downstream write failure — the last of which aborts without a returned
// error, per §4.6 "release resources; do not emit further events").
func (m *Machine) Run(upstream *sse.Reader, w downstreamWriter, upstreamStatus int, bodyPreview string) error {
	if upstreamStatus < 200 || upstreamStatus >= 300 {
		return m.emitUpstreamStatusError(w, upstreamStatus, bodyPreview)
	}
	if err := m.emitMessageStart(w); err != nil {
		return nil
	}
	m.phase = phaseStreaming

	for {
		rec, ok := upstream.Next()
		if !ok {
			if upstream.TimedOut() {
				if err := m.disconnect(w); err != nil {
					return nil
				}
				return nil
			}
			if err := m.finish(w, stopReasonFromOpenAI(""), nil); err != nil {
				return nil
			}
			return nil
		}

		if rec.Data == "[DONE]" {
			if err := m.finish(w, stopReasonFromOpenAI(m.finishReason), nil); err != nil {
				return nil
			}
			return nil
		}

		var chunk wire.OpenAIChunk
		if err := json.Unmarshal([]byte(rec.Data), &chunk); err != nil {
			m.parseErrorStreak++
			if m.parseErrorStreak >= maxConsecutiveParseErrors {
				if err := m.disconnect(w); err != nil {
					return nil
				}
				return nil
			}
			continue
		}
		m.parseErrorStreak = 0

		if chunk.Usage != nil {
			m.usage = *chunk.Usage
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if err := m.applyDelta(w, choice.Delta); err != nil {
			return nil
		}

		if choice.FinishReason != nil {
			m.finishReason = *choice.FinishReason
			if err := m.closeAllBlocks(w); err != nil {
				return nil
			}
			if err := m.finish(w, stopReasonFromOpenAI(m.finishReason), nil); err != nil {
				return nil
			}
			return nil
		}
	}
}

// Disconnect implements the upstream-disconnect failure path for callers
// that detect a terminal upstream failure outside Run's own loop — Run
// itself takes this path internally when upstream.TimedOut() reports the
// idle-between-events deadline (§5) fired.
func (m *Machine) Disconnect(w downstreamWriter) error {
	return m.disconnect(w)
}

func (m *Machine) disconnect(w downstreamWriter) error {
	if err := m.closeAllBlocks(w); err != nil {
		return err
	}
	return m.finish(w, wire.StopEndTurn, []string{"upstream_disconnected"})
}

func (m *Machine) emitUpstreamStatusError(w downstreamWriter, status int, bodyPreview string) error {
	if err := w.WriteEvent(wire.EventError, wire.StreamErrorEvent{
		Type:   wire.ErrUpstream,
		Status: status,
		Body:   bodyPreview,
	}); err != nil {
		return err
	}
	if err := w.WriteEvent(wire.EventMessageStop, wire.MessageStopEvent{Type: wire.EventMessageStop}); err != nil {
		return err
	}
	m.phase = phaseDone
	return nil
}

func (m *Machine) emitMessageStart(w downstreamWriter) error {
	if err := w.WriteEvent(wire.EventMessageStart, wire.MessageStartEvent{
		Type: wire.EventMessageStart,
		Message: wire.MessageStartBody{
			ID:      m.messageID,
			Type:    "message",
			Role:    "assistant",
			Model:   m.model,
			Content: []wire.AnthropicContentBlock{},
		},
	}); err != nil {
		return err
	}
	return w.WriteEvent(wire.EventPing, wire.PingEvent{Type: wire.EventPing})
}

// applyDelta handles one chunk's delta fields in the order named by §4.6's
// table: text, then reasoning, then tool_calls.
func (m *Machine) applyDelta(w downstreamWriter, delta wire.OpenAIChunkDelta) error {
	if delta.Content != "" {
		if !m.textOpen {
			if err := m.openBlock(w, blockKindText, wire.AnthropicContentBlock{Type: wire.BlockText}); err != nil {
				return err
			}
			m.textIndex = m.lastOpenedIndex
			m.textOpen = true
		}
		if err := w.WriteEvent(wire.EventContentBlockDelta, wire.ContentBlockDeltaEvent{
			Type:  wire.EventContentBlockDelta,
			Index: m.textIndex,
			Delta: wire.ContentBlockDeltaBody{Type: wire.DeltaText, Text: delta.Content},
		}); err != nil {
			return err
		}
	}

	if delta.Reasoning != "" && m.registry.Has(m.model, capability.Reasoning) {
		if !m.reasoningOpen {
			if err := m.openBlock(w, blockKindReasoning, wire.AnthropicContentBlock{Type: wire.BlockThinking}); err != nil {
				return err
			}
			m.reasoningIndex = m.lastOpenedIndex
			m.reasoningOpen = true
		}
		if err := w.WriteEvent(wire.EventContentBlockDelta, wire.ContentBlockDeltaEvent{
			Type:  wire.EventContentBlockDelta,
			Index: m.reasoningIndex,
			Delta: wire.ContentBlockDeltaBody{Type: wire.DeltaThinking, Thinking: delta.Reasoning},
		}); err != nil {
			return err
		}
	}

	for _, tc := range delta.ToolCalls {
		if err := m.applyToolCallDelta(w, tc); err != nil {
			return err
		}
	}

	return nil
}

func (m *Machine) applyToolCallDelta(w downstreamWriter, tc wire.OpenAIToolCall) error {
	upstreamIdx := 0
	if tc.Index != nil {
		upstreamIdx = *tc.Index
	}

	tb, known := m.toolBlocksByUpstreamIndex[upstreamIdx]
	if !known {
		if tc.Function.Name == "" {
			// A fragment arrived for an index we haven't opened and that
			// carries no name yet; nothing to open on, skip until a name
			// shows up.
			return nil
		}
		if err := m.openBlock(w, blockKindToolUse, wire.AnthropicContentBlock{
			Type:  wire.BlockToolUse,
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: json.RawMessage("{}"),
		}); err != nil {
			return err
		}
		tb = &toolBlock{index: m.lastOpenedIndex, id: tc.ID, name: tc.Function.Name}
		m.toolBlocksByUpstreamIndex[upstreamIdx] = tb
	}

	if tc.Function.Arguments == "" {
		return nil
	}

	fragment, ok := strings.CutPrefix(tc.Function.Arguments, tb.lastArgs)
	if !ok {
		// Upstream sent a non-extending revision; treat the whole string
		// as the fragment rather than lose bytes from the invariant.
		fragment = tc.Function.Arguments
	}
	tb.lastArgs = tc.Function.Arguments
	if fragment == "" {
		return nil
	}

	return w.WriteEvent(wire.EventContentBlockDelta, wire.ContentBlockDeltaEvent{
		Type:  wire.EventContentBlockDelta,
		Index: tb.index,
		Delta: wire.ContentBlockDeltaBody{Type: wire.DeltaInputJSON, PartialJSON: fragment},
	})
}

func (m *Machine) openBlock(w downstreamWriter, kind blockKind, block wire.AnthropicContentBlock) error {
	idx := m.nextIndex
	m.nextIndex++
	m.lastOpenedIndex = idx
	return w.WriteEvent(wire.EventContentBlockStart, wire.ContentBlockStartEvent{
		Type:         wire.EventContentBlockStart,
		Index:        idx,
		ContentBlock: block,
	})
}

func (m *Machine) closeAllBlocks(w downstreamWriter) error {
	indices := make([]int, 0, m.nextIndex)
	if m.textOpen {
		indices = append(indices, m.textIndex)
	}
	if m.reasoningOpen {
		indices = append(indices, m.reasoningIndex)
	}
	for _, tb := range m.toolBlocksByUpstreamIndex {
		indices = append(indices, tb.index)
		if _, warn := m.registry.RepairToolArguments(m.model, tb.lastArgs); warn {
			m.warnings = append(m.warnings, capability.EnhanceToolWarning)
		}
	}
	sortInts(indices)

	for _, idx := range indices {
		if err := w.WriteEvent(wire.EventContentBlockStop, wire.ContentBlockStopEvent{
			Type:  wire.EventContentBlockStop,
			Index: idx,
		}); err != nil {
			return err
		}
	}
	m.textOpen = false
	m.reasoningOpen = false
	return nil
}

func (m *Machine) finish(w downstreamWriter, stopReason string, warnings []string) error {
	m.phase = phaseFinalizing
	allWarnings := append(append([]string{}, m.warnings...), warnings...)
	if err := w.WriteEvent(wire.EventMessageDelta, wire.MessageDeltaEvent{
		Type: wire.EventMessageDelta,
		Delta: wire.MessageDeltaBody{
			StopReason: stopReason,
			Warnings:   allWarnings,
		},
		Usage: m.usage,
	}); err != nil {
		return err
	}
	if err := w.WriteEvent(wire.EventMessageStop, wire.MessageStopEvent{Type: wire.EventMessageStop}); err != nil {
		return err
	}
	m.phase = phaseDone
	return nil
}

// stopReasonFromOpenAI implements §4.6 FINALIZING's mapping table.
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

// sortInts is a tiny insertion sort; block counts per response are always
// small (single digits), so this avoids pulling in sort for one call site.
func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

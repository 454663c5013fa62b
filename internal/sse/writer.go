// Package sse provides the downstream event writer and the upstream
// chunked-stream reader used by the streaming state machine (C6) and the
// upstream client (C9). The writer is adapted from the teacher's
// proxy.SSEWriter, extended with a named `event:` line because the
// Anthropic wire format brackets every data line with its event type
// (§3 "Streaming event sequence").
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

var dataReplacer = strings.NewReplacer(
	"\n", "\ndata: ",
	"\r", "\\r",
)

var (
	sseEventPrefix = []byte("event: ")
	sseDataPrefix  = []byte("data: ")
	sseTerminator  = []byte("\n\n")
	sseNewline     = []byte("\n")
)

// Writer wraps an http.ResponseWriter with Anthropic-shaped SSE framing.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter validates flushing support and sets the SSE response headers.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("sse: ResponseWriter doesn't implement http.Flusher")
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Connection", "keep-alive")
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-cache")
	}

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent marshals v to JSON and writes it as a named SSE event:
// "event: <name>\ndata: <json>\n\n", flushing immediately.
func (s *Writer) WriteEvent(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal %s: %w", name, err)
	}

	if _, err := s.w.Write(sseEventPrefix); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte(name)); err != nil {
		return err
	}
	if _, err := s.w.Write(sseNewline); err != nil {
		return err
	}
	if _, err := s.w.Write(sseDataPrefix); err != nil {
		return err
	}
	if _, err := dataReplacer.WriteString(s.w, string(data)); err != nil {
		return err
	}
	if _, err := s.w.Write(sseTerminator); err != nil {
		return err
	}

	s.flusher.Flush()
	return nil
}

// WriteRaw writes a bare data-only event (no event: line), used for the
// OpenAI-style passthrough "[DONE]" terminator and similar markers.
func (s *Writer) WriteRaw(data string) error {
	if _, err := s.w.Write(sseDataPrefix); err != nil {
		return err
	}
	if _, err := dataReplacer.WriteString(s.w, data); err != nil {
		return err
	}
	if _, err := s.w.Write(sseTerminator); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

package sse_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/northlake-dev/msgbridge/internal/sse"
)

func TestWriter_WriteEventFramesNameAndData(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := sse.NewWriter(rec)
	if err != nil {
		t.Fatal(err)
	}

	if err := w.WriteEvent("message_start", map[string]string{"type": "message_start"}); err != nil {
		t.Fatal(err)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: message_start\ndata: ") {
		t.Fatalf("got %q", body)
	}
	if !strings.HasSuffix(body, "\n\n") {
		t.Fatalf("got %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream; charset=utf-8" {
		t.Fatalf("got content-type %q", ct)
	}
}

func TestWriter_WriteRawOmitsEventLine(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := sse.NewWriter(rec)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteRaw("[DONE]"); err != nil {
		t.Fatal(err)
	}
	if rec.Body.String() != "data: [DONE]\n\n" {
		t.Fatalf("got %q", rec.Body.String())
	}
}

package sse_test

import (
	"strings"
	"testing"

	"github.com/northlake-dev/msgbridge/internal/sse"
)

func TestReader_SplitsOnBlankLinesAndStripsPrefixes(t *testing.T) {
	body := "event: message_start\ndata: {\"a\":1}\n\ndata: [DONE]\n\n"
	r := sse.NewReader(strings.NewReader(body))

	rec, ok := r.Next()
	if !ok || rec.Event != "message_start" || rec.Data != `{"a":1}` {
		t.Fatalf("got %+v ok=%v", rec, ok)
	}

	rec, ok = r.Next()
	if !ok || rec.Event != "" || rec.Data != "[DONE]" {
		t.Fatalf("got %+v ok=%v", rec, ok)
	}

	_, ok = r.Next()
	if ok {
		t.Fatal("want exhausted stream")
	}
}

func TestReader_JoinsMultilineData(t *testing.T) {
	body := "data: line one\ndata: line two\n\n"
	r := sse.NewReader(strings.NewReader(body))

	rec, ok := r.Next()
	if !ok || rec.Data != "line one\nline two" {
		t.Fatalf("got %+v ok=%v", rec, ok)
	}
}

func TestReader_ReturnsTrailingRecordWithoutBlankLine(t *testing.T) {
	body := "data: trailing"
	r := sse.NewReader(strings.NewReader(body))

	rec, ok := r.Next()
	if !ok || rec.Data != "trailing" {
		t.Fatalf("got %+v ok=%v", rec, ok)
	}
}

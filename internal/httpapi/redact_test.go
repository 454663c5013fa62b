package httpapi_test

import (
	"strings"
	"testing"

	"github.com/northlake-dev/msgbridge/internal/httpapi"
)

func TestRedact_MatchesEachNamedPattern(t *testing.T) {
	cases := []string{
		"key is sk-ant-api03-" + strings.Repeat("A", 100),
		"key is sk-" + strings.Repeat("B", 25),
		"Authorization: Bearer abc.def-123",
		`{"apiKey": "super-secret"}`,
		`{"x-api-key": "super-secret"}`,
		"api_key=super-secret",
		"api-key: super-secret",
	}
	for _, c := range cases {
		got := httpapi.Redact(c)
		if strings.Contains(got, "super-secret") || strings.Contains(got, strings.Repeat("A", 100)) || strings.Contains(got, strings.Repeat("B", 25)) || strings.Contains(got, "abc.def-123") {
			t.Fatalf("input %q: got %q, secret leaked", c, got)
		}
		if !strings.Contains(got, "[REDACTED]") {
			t.Fatalf("input %q: got %q, want a redaction marker", c, got)
		}
	}
}

func TestRedact_LeavesNonSecretTextUntouched(t *testing.T) {
	in := "the quick brown fox jumps over the lazy dog"
	if got := httpapi.Redact(in); got != in {
		t.Fatalf("got %q", got)
	}
}

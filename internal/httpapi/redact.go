package httpapi

import "regexp"

// secretPatterns implements §4.8's log redaction: any string written to
// logs is passed through Redact before being emitted.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-api03-[A-Za-z0-9+/=\-_]{95,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`(?i)Authorization:\s*Bearer\s+\S+`),
	regexp.MustCompile(`(?i)"apiKey"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`(?i)"x-api-key"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`(?i)api[-_]?key\s*[:=]\s*\S+`),
}

const redactedPlaceholder = "[REDACTED]"

// Redact replaces every match of §4.8's secret-shaped patterns in s with
// [REDACTED]. It is applied to any string before it reaches a log sink.
func Redact(s string) string {
	for _, p := range secretPatterns {
		s = p.ReplaceAllString(s, redactedPlaceholder)
	}
	return s
}

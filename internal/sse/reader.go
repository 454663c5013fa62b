package sse

import (
	"bufio"
	"strings"
)

// Record is one parsed SSE record: an optional event name and its data
// payload, possibly spanning multiple `data:` lines joined by newlines per
// the SSE spec.
type Record struct {
	Event string
	Data  string
}

// Reader splits an upstream byte stream into Records by blank-line
// boundaries, stripping the `event: ` and `data: ` prefixes (§5: "chunked
// SSE reader that yields (event?, data) records by splitting on blank
// lines and stripping the event:/data: prefixes").
type Reader struct {
	scanner    *bufio.Scanner
	event      strings.Builder
	data       strings.Builder
	sawAnyLine bool
	timedOutFn func() bool
}

// NewReader wraps r, sizing the scan buffer generously since a single
// tool-call argument fragment or reasoning chunk can exceed bufio's
// default 64KiB token limit.
func NewReader(r interface {
	Read(p []byte) (n int, err error)
}) *Reader {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)
	return &Reader{scanner: scanner}
}

// WithIdleTimeout installs check, consulted by TimedOut after the scan
// loop ends. Callers wrapping the underlying reader in an
// upstream.IdleTimeoutReader pass its TimedOut method here, so Next's
// caller can tell an idle-timeout disconnect from a clean EOF.
func (r *Reader) WithIdleTimeout(check func() bool) *Reader {
	r.timedOutFn = check
	return r
}

// TimedOut reports whether the stream ended because of the idle-timeout
// check installed via WithIdleTimeout, rather than a clean EOF.
func (r *Reader) TimedOut() bool {
	return r.timedOutFn != nil && r.timedOutFn()
}

// Next returns the next Record, or ok=false when the stream is exhausted.
// A trailing record with no terminating blank line is still returned.
func (r *Reader) Next() (Record, bool) {
	r.event.Reset()
	r.data.Reset()
	r.sawAnyLine = false

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if r.sawAnyLine {
				return r.record(), true
			}
			continue
		}
		r.sawAnyLine = true

		switch {
		case strings.HasPrefix(line, "event:"):
			r.event.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "event:")))
		case strings.HasPrefix(line, "data:"):
			if r.data.Len() > 0 {
				r.data.WriteByte('\n')
			}
			r.data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, ":"):
			// comment / heartbeat line, ignored
		}
	}

	if r.sawAnyLine {
		return r.record(), true
	}
	return Record{}, false
}

func (r *Reader) record() Record {
	return Record{Event: r.event.String(), Data: r.data.String()}
}

// Err returns the first non-EOF error encountered while scanning.
func (r *Reader) Err() error {
	return r.scanner.Err()
}

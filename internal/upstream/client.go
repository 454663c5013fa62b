// Package upstream implements spec component C9: a pooled HTTP client per
// base URL with connect/header/body timeouts, retry-once-with-backoff for
// idempotent model-list probes, and structured 401/403 errors. Its
// transport chain follows the teacher's ImpersonationTransport pattern —
// a small http.RoundTripper wrapper that injects headers ahead of the
// pooled base transport — generalized here to carry whichever auth header
// C4 selected instead of a single hardcoded impersonation profile.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/northlake-dev/msgbridge/internal/providerid"
	"github.com/northlake-dev/msgbridge/internal/reqtransform"
)

// Timeouts named in §5. NonStreamBodyDeadline and IdleBetweenEvents are
// exported for internal/httpapi to apply via NewIdleTimeoutReader.
const (
	connectTimeout = 5 * time.Second
	headerTimeout  = 10 * time.Second
	probeTimeout   = 5 * time.Second

	NonStreamBodyDeadline = 60 * time.Second
	IdleBetweenEvents     = 120 * time.Second

	probeRetryBackoff = 1 * time.Second
)

// IdleTimeoutReader wraps a response body, resetting an inactivity timer on
// every Read and closing the underlying body if the timer fires before the
// next Read completes. This is the mechanism backing the non-stream-body
// and idle-between-SSE-events deadlines named in §5: net/http's transport
// enforces no inter-chunk idle timeout on its own, so the deadline has to
// live at the body-reader level instead.
type IdleTimeoutReader struct {
	rc       io.ReadCloser
	idle     time.Duration
	timer    *time.Timer
	timedOut atomic.Bool
}

// NewIdleTimeoutReader wraps rc, arming the first idle-duration timer
// immediately.
func NewIdleTimeoutReader(rc io.ReadCloser, idle time.Duration) *IdleTimeoutReader {
	r := &IdleTimeoutReader{rc: rc, idle: idle}
	r.timer = time.AfterFunc(idle, func() {
		r.timedOut.Store(true)
		rc.Close()
	})
	return r
}

func (r *IdleTimeoutReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	r.timer.Reset(r.idle)
	return n, err
}

// Close stops the idle timer and closes the underlying body.
func (r *IdleTimeoutReader) Close() error {
	r.timer.Stop()
	return r.rc.Close()
}

// TimedOut reports whether the idle timer fired and forced the underlying
// body closed, as opposed to a clean EOF or caller-initiated close.
func (r *IdleTimeoutReader) TimedOut() bool { return r.timedOut.Load() }

// headerTransport injects the auth headers C4 selected and, when a rate
// limiter is configured for the base URL, waits its turn before the
// request is allowed onto the wire (§4.9 domain-stack supplement).
type headerTransport struct {
	base    http.RoundTripper
	headers []reqtransform.AuthHeader
	limiter *rate.Limiter
}

var _ http.RoundTripper = (*headerTransport)(nil)

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	newReq := req.Clone(req.Context())
	for _, h := range t.headers {
		newReq.Header.Set(h.Name, h.Value)
	}

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(newReq)
}

// Client is a pooled HTTP client bound to one upstream base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewTransport clones http.DefaultTransport with the timeouts named in §5.
func NewTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = headerTimeout
	t.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext
	return t
}

// New creates a Client for baseURL. ratePerSecond <= 0 disables rate
// limiting for this base URL.
func New(baseURL string, ratePerSecond float64) *Client {
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return &Client{
		baseURL: baseURL,
		limiter: limiter,
		httpClient: &http.Client{
			Transport: NewTransport(),
		},
	}
}

// Do issues req with headers attached, applying the per-base-URL rate
// limiter. The caller is responsible for setting a deadline on req's
// context appropriate to streaming vs. non-streaming (§5).
func (c *Client) Do(req *http.Request, headers []reqtransform.AuthHeader) (*http.Response, error) {
	rt := &headerTransport{base: c.httpClient.Transport, headers: headers, limiter: c.limiter}
	client := &http.Client{Transport: rt}
	return client.Do(req)
}

// ProbeModels issues GET {baseURL}/v1/models, satisfying
// internal/endpointkind.Prober. It retries once with a fixed backoff on
// 429/5xx per §4.9, but never retries on network failure (the detector's
// heuristic fallback handles that case instead).
func (c *Client) ProbeModels(ctx context.Context, baseURL, apiKey string) (status int, isOpenAIErrorEnvelope bool, err error) {
	url := baseURL + "/v1/models"

	status, body, err := c.probeOnce(ctx, url, apiKey)
	if err != nil {
		return 0, false, err
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		select {
		case <-time.After(probeRetryBackoff):
		case <-ctx.Done():
			return 0, false, ctx.Err()
		}
		status, body, err = c.probeOnce(ctx, url, apiKey)
		if err != nil {
			return 0, false, err
		}
	}

	isOpenAIErrorEnvelope = looksLikeOpenAIErrorEnvelope(body)
	return status, isOpenAIErrorEnvelope, nil
}

func (c *Client) probeOnce(ctx context.Context, url, apiKey string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, body, nil
}

func looksLikeOpenAIErrorEnvelope(body []byte) bool {
	return hasJSONKey(body, `"error"`) && (hasJSONKey(body, `"type"`) || hasJSONKey(body, `"message"`))
}

func hasJSONKey(body []byte, key string) bool {
	for i := 0; i+len(key) <= len(body); i++ {
		if string(body[i:i+len(key)]) == key {
			return true
		}
	}
	return false
}

// AuthError is the structured 401/403 error named in §4.9, carrying the
// attempted models-endpoint URL and a friendly hint for well-known
// providers.
type AuthError struct {
	URL    string
	Status int
	Hint   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("upstream authentication failed (%d) at %s: %s", e.Status, e.URL, e.Hint)
}

// NewAuthError builds an AuthError for provider, attaching a friendly hint
// when provider is well-known.
func NewAuthError(url string, status int, provider providerid.ID) *AuthError {
	hint := "check that the configured API key is valid for this provider"
	if provider == providerid.Together {
		hint = "Together AI requires a key created at api.together.xyz; verify it hasn't been revoked"
	}
	return &AuthError{URL: url, Status: status, Hint: hint}
}

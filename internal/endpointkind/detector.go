package endpointkind

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/northlake-dev/msgbridge/internal/providerid"
)

// probeTimeout bounds a single GET /v1/models probe (§4.2).
const probeTimeout = 5 * time.Second

// Prober issues the GET {baseURL}/v1/models probe used by step 2 of
// detection. It is satisfied by *upstream.Client in production and by a
// stub in tests.
type Prober interface {
	ProbeModels(ctx context.Context, baseURL, apiKey string) (status int, isOpenAIErrorEnvelope bool, err error)
}

// Detector implements the three-step decision order of §4.2: explicit
// override, successful probe, URL/host heuristic. It deduplicates
// concurrent probes for the same base URL via singleflight, matching the
// "concurrent callers await its result" requirement of §4.2/§5.
type Detector struct {
	cache     *Cache
	prober    Prober
	overrides map[string]Kind // normalized base URL -> override kind
	group     singleflight.Group
}

// NewDetector creates a Detector backed by cache, issuing probes through
// prober. overrides is the parsed CUSTOM_ENDPOINT_OVERRIDES map (§6),
// keyed by raw (un-normalized) base URL as the operator wrote it.
func NewDetector(cache *Cache, prober Prober, overrides map[string]Kind) *Detector {
	normalized := make(map[string]Kind, len(overrides))
	for k, v := range overrides {
		normalized[Normalize(k)] = v
	}
	return &Detector{cache: cache, prober: prober, overrides: normalized}
}

// SetOverride installs or changes an explicit override for baseURL,
// invalidating any prior heuristic/probe classification per the §3
// lifecycle rule ("invalidated by configuration event indicating override
// change").
func (d *Detector) SetOverride(baseURL string, kind Kind) {
	norm := Normalize(baseURL)
	d.overrides[norm] = kind
	d.cache.Set(norm, Record{Kind: kind, DetectionSource: SourceOverride})
}

// Detect returns the endpoint kind for baseURL, consulting the cache
// first, then the override map, then a deduplicated probe, then the URL
// heuristic, storing whichever record is produced.
func (d *Detector) Detect(ctx context.Context, baseURL, apiKey string, hint providerid.EndpointHint) (Record, error) {
	norm := Normalize(baseURL)

	if cached, ok := d.cache.Get(norm); ok && cached.DetectionSource == SourceOverride {
		return cached, nil
	}

	if kind, ok := d.overrides[norm]; ok {
		rec := Record{Kind: kind, DetectionSource: SourceOverride}
		d.cache.Set(norm, rec)
		return rec, nil
	}

	if cached, ok := d.cache.Get(norm); ok {
		return cached, nil
	}

	rec, err, _ := d.group.Do(norm, func() (any, error) {
		return d.detectUncached(ctx, norm, apiKey, hint)
	})
	if err != nil {
		return Record{}, err
	}
	return rec.(Record), nil
}

// detectUncached performs the probe-then-heuristic decision for a base URL
// with no cache entry and no override. It is only ever invoked once per
// base URL concurrently, via the singleflight group in Detect.
func (d *Detector) detectUncached(ctx context.Context, normalizedBaseURL, apiKey string, hint providerid.EndpointHint) (Record, error) {
	if d.prober != nil {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		status, isOpenAIErr, err := d.prober.ProbeModels(probeCtx, normalizedBaseURL, apiKey)
		cancel()

		if err == nil {
			switch {
			case status >= 200 && status < 300:
				rec := Record{Kind: OpenAICompatible, DetectionSource: SourceProbe, LastProbedAt: time.Now()}
				d.cache.Set(normalizedBaseURL, rec)
				return rec, nil
			case (status == http.StatusUnauthorized || status == http.StatusForbidden) && isOpenAIErr:
				rec := Record{Kind: OpenAICompatible, DetectionSource: SourceProbe, LastProbedAt: time.Now()}
				d.cache.Set(normalizedBaseURL, rec)
				return rec, nil
			}
			// 404 and any other status fall through to the heuristic.
		}
		// Network failure: no retry (§4.2), fall through to heuristic.
	}

	rec := Record{Kind: heuristicKind(normalizedBaseURL, hint), DetectionSource: SourceHeuristic}
	d.cache.Set(normalizedBaseURL, rec)
	return rec, nil
}

// heuristicKind implements §4.2 step 3: a known path segment or host
// registry implies anthropic-native; everything else defaults to
// openai-compatible, with the provider's own a-priori hint used only when
// the URL itself gives no signal.
func heuristicKind(baseURL string, hint providerid.EndpointHint) Kind {
	u, err := url.Parse(baseURL)
	if err == nil {
		if strings.Contains(u.Path, "/anthropic") {
			return AnthropicNative
		}
		host := strings.ToLower(u.Host)
		for _, known := range providerid.KnownAnthropicNativeHosts {
			if strings.Contains(host+u.Path, known) {
				return AnthropicNative
			}
		}
	}

	if hint == providerid.HintAnthropicNative {
		return AnthropicNative
	}
	return OpenAICompatible
}

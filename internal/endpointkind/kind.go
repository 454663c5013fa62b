// Package endpointkind implements spec component C2: deciding whether an
// upstream base URL speaks the Anthropic Messages dialect natively or the
// OpenAI Chat Completions dialect, and caching that decision for the
// process lifetime.
package endpointkind

import (
	"strings"
	"sync"
	"time"
)

// Kind is the detected dialect of an upstream base URL.
type Kind string

const (
	AnthropicNative  Kind = "anthropic-native"
	OpenAICompatible Kind = "openai-compatible"
)

// Source records how a Record's Kind was determined. Precedence is
// Override > Probe > Heuristic (§3 invariants).
type Source string

const (
	SourceOverride  Source = "override"
	SourceProbe     Source = "probe"
	SourceHeuristic Source = "heuristic"
)

// Record is the cached classification for one normalized base URL.
type Record struct {
	Kind           Kind
	DetectionSource Source
	LastProbedAt   time.Time
}

// Normalize strips a single trailing slash so "https://x/" and "https://x"
// share one cache entry (§3).
func Normalize(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/")
}

// Cache is a process-lifetime, single-writer/many-reader store of
// EndpointKindRecords keyed by normalized base URL (§5).
type Cache struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewCache returns an empty Cache, initialized lazily by the caller on
// first use per §9 ("Global state... initialize lazily").
func NewCache() *Cache {
	return &Cache{records: make(map[string]Record)}
}

// Get returns the cached record for baseURL, if any.
func (c *Cache) Get(baseURL string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[Normalize(baseURL)]
	return r, ok
}

// Set installs or replaces the record for baseURL. Callers are responsible
// for respecting override precedence before calling Set with a
// lower-precedence source (see Detector.Detect).
func (c *Cache) Set(baseURL string, r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[Normalize(baseURL)] = r
}

package endpointkind_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/northlake-dev/msgbridge/internal/endpointkind"
	"github.com/northlake-dev/msgbridge/internal/providerid"
)

type stubProber struct {
	mu       sync.Mutex
	calls    int
	status   int
	isOpenAI bool
	err      error
}

func (s *stubProber) ProbeModels(ctx context.Context, baseURL, apiKey string) (int, bool, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.status, s.isOpenAI, s.err
}

func TestDetect_OverrideWinsRegardlessOfPriorProbe(t *testing.T) {
	cache := endpointkind.NewCache()
	prober := &stubProber{status: 200}
	d := endpointkind.NewDetector(cache, prober, nil)

	rec, err := d.Detect(context.Background(), "http://127.0.0.1:9999/", "key", providerid.HintOpenAICompatible)
	if err != nil {
		t.Fatal(err)
	}
	if rec.DetectionSource != endpointkind.SourceProbe {
		t.Fatalf("want probe source first, got %+v", rec)
	}

	d.SetOverride("http://127.0.0.1:9999", endpointkind.AnthropicNative)

	rec, err = d.Detect(context.Background(), "http://127.0.0.1:9999/", "key", providerid.HintOpenAICompatible)
	if err != nil {
		t.Fatal(err)
	}
	if rec.DetectionSource != endpointkind.SourceOverride || rec.Kind != endpointkind.AnthropicNative {
		t.Fatalf("want override anthropic-native, got %+v", rec)
	}
}

func TestDetect_HeuristicOnNetworkFailure(t *testing.T) {
	cache := endpointkind.NewCache()
	prober := &stubProber{err: errors.New("dial tcp: connection refused")}
	d := endpointkind.NewDetector(cache, prober, nil)

	rec, err := d.Detect(context.Background(), "https://api.z.ai/anthropic", "key", providerid.HintOpenAICompatible)
	if err != nil {
		t.Fatal(err)
	}
	if rec.DetectionSource != endpointkind.SourceHeuristic || rec.Kind != endpointkind.AnthropicNative {
		t.Fatalf("want anthropic-native heuristic, got %+v", rec)
	}
}

func TestDetect_HeuristicDefaultsOpenAICompatible(t *testing.T) {
	cache := endpointkind.NewCache()
	prober := &stubProber{status: 404}
	d := endpointkind.NewDetector(cache, prober, nil)

	rec, err := d.Detect(context.Background(), "https://example.com/v1", "key", providerid.HintOpenAICompatible)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Kind != endpointkind.OpenAICompatible {
		t.Fatalf("want openai-compatible, got %+v", rec)
	}
}

func TestDetect_RepeatedProbesAreIdempotentAndDeduplicated(t *testing.T) {
	cache := endpointkind.NewCache()
	prober := &stubProber{status: 200}
	d := endpointkind.NewDetector(cache, prober, nil)

	var wg sync.WaitGroup
	results := make([]endpointkind.Kind, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := d.Detect(context.Background(), "https://example.com/v1", "key", providerid.HintOpenAICompatible)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = rec.Kind
		}(i)
	}
	wg.Wait()

	for _, k := range results {
		if k != endpointkind.OpenAICompatible {
			t.Fatalf("inconsistent kind across callers: %v", results)
		}
	}
	if prober.calls != 1 {
		t.Fatalf("want exactly 1 probe call, got %d", prober.calls)
	}
}

package httpapi_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/northlake-dev/msgbridge/internal/capability"
	"github.com/northlake-dev/msgbridge/internal/endpointkind"
	"github.com/northlake-dev/msgbridge/internal/httpapi"
	"github.com/northlake-dev/msgbridge/internal/modelselect"
	"github.com/northlake-dev/msgbridge/internal/providerid"
	"github.com/northlake-dev/msgbridge/internal/secret"
	"github.com/northlake-dev/msgbridge/internal/upstream"
)

func newTestServer(t *testing.T, upstreamURL string, env secret.Env, overrides map[string]endpointkind.Kind) *httpapi.Server {
	t.Helper()
	cfg := httpapi.Config{
		Provider:      providerid.Custom,
		BaseURL:       upstreamURL,
		ModelDefaults: modelselect.Defaults{Completion: "gpt-x"},
	}
	cache := endpointkind.NewCache()
	client := upstream.New(upstreamURL, 0)
	detector := endpointkind.NewDetector(cache, client, overrides)
	return httpapi.New(cfg, env, detector, capability.DefaultRegistry(), client, nil)
}

func TestHandleMessages_NonStreamOpenAICompat(t *testing.T) {
	var gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello!"},"finish_reason":"stop"}]}`))
	}))
	defer upstream.Close()

	env := secret.MapEnv{"CUSTOM_API_KEY": "testkey"}
	overrides := map[string]endpointkind.Kind{upstream.URL: endpointkind.OpenAICompatible}
	srv := newTestServer(t, upstream.URL, env, overrides)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(
		`{"messages":[{"role":"user","content":"Say hi"}],"stream":false}`,
	))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d body %s", rec.Code, rec.Body.String())
	}
	if gotAuth != "Bearer testkey" {
		t.Fatalf("got Authorization %q", gotAuth)
	}
	if !strings.Contains(rec.Body.String(), `"text":"Hello!"`) {
		t.Fatalf("got body %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"stop_reason":"end_turn"`) {
		t.Fatalf("got body %s", rec.Body.String())
	}
}

func TestHandleMessages_MissingKeyReturns400(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream should not be called when no key is configured")
	}))
	defer upstream.Close()

	env := secret.MapEnv{}
	overrides := map[string]endpointkind.Kind{upstream.URL: endpointkind.OpenAICompatible}
	srv := newTestServer(t, upstream.URL, env, overrides)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(
		`{"messages":[{"role":"user","content":"hi"}]}`,
	))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No API key found") {
		t.Fatalf("got body %s", rec.Body.String())
	}
}

func TestHandleHealth_ReportsOverrideSource(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	env := secret.MapEnv{"CUSTOM_API_KEY": "k"}
	overrides := map[string]endpointkind.Kind{upstream.URL: endpointkind.AnthropicNative}
	srv := newTestServer(t, upstream.URL, env, overrides)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"endpointKind":"anthropic-native"`) || !strings.Contains(body, `"detectionSource":"override"`) {
		t.Fatalf("got body %s", body)
	}
	if !strings.Contains(body, upstream.URL) {
		t.Fatalf("want baseUrl to match override exactly, got %s", body)
	}
}

func TestHandleMessages_ToolUnsupportedFallbackStripsToolsAndInjectsText(t *testing.T) {
	var gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer upstream.Close()

	env := secret.MapEnv{"CUSTOM_API_KEY": "k"}
	overrides := map[string]endpointkind.Kind{upstream.URL: endpointkind.OpenAICompatible}
	srv := newTestServer(t, upstream.URL, env, overrides)

	body := `{"model":"google/gemini-2.0-pro-exp-02-05:free","messages":[{"role":"user","content":"what's the weather"}],` +
		`"tools":[{"name":"get_weather","description":"Get the current weather for a city","input_schema":{"type":"object"}}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d body %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(gotBody, `"tools"`) {
		t.Fatalf("want tools stripped from upstream body, got %s", gotBody)
	}
	if !strings.Contains(gotBody, "get_weather") || !strings.Contains(gotBody, "weather for a city") {
		t.Fatalf("want fallback text injected, got %s", gotBody)
	}
}

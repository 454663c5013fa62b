package app

import (
	"testing"

	"github.com/northlake-dev/msgbridge/internal/endpointkind"
	"github.com/northlake-dev/msgbridge/internal/providerid"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestApplyDefaults_FillsServerAndShutdown(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != DefaultConfigServerHost || cfg.Server.Port != DefaultConfigServerPort {
		t.Fatalf("got %+v", cfg.Server)
	}
	if cfg.Shutdown.Timeout != DefaultConfigShutdownTimeout {
		t.Fatalf("got %v", cfg.Shutdown.Timeout)
	}
}

func TestValidate_RejectsEnabledAuthWithoutEnvKey(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{Enabled: true, Storage: TokenStorageTypeEnv}}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("want error for env storage without env_key")
	}
}

func TestLoadRuntime_ParsesEndpointOverridesAndModelDefaults(t *testing.T) {
	rt, err := LoadRuntime(mapLookup(map[string]string{
		"FORCE_PROVIDER":            "custom",
		"ANTHROPIC_PROXY_BASE_URL":  "http://127.0.0.1:9999",
		"REASONING_MODEL":           "deepseek-reasoner",
		"COMPLETION_MODEL":          "gpt-4o-mini",
		"FORCE_TOOL_ERROR":          "1",
		"CUSTOM_ENDPOINT_OVERRIDES": `{"http://127.0.0.1:9999":"anthropic"}`,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if rt.Provider != providerid.Custom || rt.BaseURL != "http://127.0.0.1:9999" {
		t.Fatalf("got %+v", rt)
	}
	if rt.ModelDefaults.Reasoning != "deepseek-reasoner" || rt.ModelDefaults.Completion != "gpt-4o-mini" {
		t.Fatalf("got %+v", rt.ModelDefaults)
	}
	if !rt.ForceToolError {
		t.Fatal("want ForceToolError true")
	}
	if rt.EndpointOverrides["http://127.0.0.1:9999"] != endpointkind.AnthropicNative {
		t.Fatalf("got %+v", rt.EndpointOverrides)
	}
}

func TestLoadRuntime_RejectsMalformedOverridesJSON(t *testing.T) {
	_, err := LoadRuntime(mapLookup(map[string]string{
		"CUSTOM_ENDPOINT_OVERRIDES": `not-json`,
	}))
	if err == nil {
		t.Fatal("want error for malformed overrides")
	}
}

func TestPort_PrefersRawPortVarOverFallback(t *testing.T) {
	got, err := Port(mapLookup(map[string]string{"PORT": "8080"}), 4000)
	if err != nil {
		t.Fatal(err)
	}
	if got != 8080 {
		t.Fatalf("got %d, want 8080", got)
	}
}

func TestPort_FallsBackWhenUnset(t *testing.T) {
	got, err := Port(mapLookup(map[string]string{}), 4000)
	if err != nil {
		t.Fatal(err)
	}
	if got != 4000 {
		t.Fatalf("got %d, want 4000", got)
	}
}

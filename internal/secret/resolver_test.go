package secret_test

import (
	"testing"

	"github.com/northlake-dev/msgbridge/internal/providerid"
	"github.com/northlake-dev/msgbridge/internal/secret"
)

func TestResolve_FirstNonEmptyWins(t *testing.T) {
	env := secret.MapEnv{
		"OPENAI_API_KEY": "fallback-key",
		"API_KEY":        "generic-key",
	}

	got := secret.Resolve(providerid.OpenRouter, env)
	if got.Key != "fallback-key" || got.Source != "OPENAI_API_KEY" {
		t.Fatalf("got %+v, want fallback-key from OPENAI_API_KEY", got)
	}
}

func TestResolve_PrefersMostSpecificVar(t *testing.T) {
	env := secret.MapEnv{
		"OPENROUTER_API_KEY": "specific-key",
		"OPENAI_API_KEY":     "fallback-key",
	}

	got := secret.Resolve(providerid.OpenRouter, env)
	if got.Key != "specific-key" || got.Source != "OPENROUTER_API_KEY" {
		t.Fatalf("got %+v, want specific-key from OPENROUTER_API_KEY", got)
	}
}

func TestResolve_NothingSetReturnsEmpty(t *testing.T) {
	got := secret.Resolve(providerid.Custom, secret.MapEnv{})
	if got.Key != "" || got.Source != "" {
		t.Fatalf("got %+v, want zero value", got)
	}
}

func TestResolve_UnknownProviderUsesCustomPair(t *testing.T) {
	env := secret.MapEnv{"API_KEY": "generic-key"}

	got := secret.Resolve(providerid.ID("some-user-defined-id"), env)
	if got.Key != "generic-key" || got.Source != "API_KEY" {
		t.Fatalf("got %+v, want generic-key from API_KEY", got)
	}
}

func TestProviderSpecificHeaders_OpenRouterAttribution(t *testing.T) {
	env := secret.MapEnv{
		"OPENROUTER_SITE_URL":  "https://example.com",
		"OPENROUTER_APP_TITLE": "My App",
	}

	headers := secret.ProviderSpecificHeaders(providerid.OpenRouter, env)
	if len(headers) != 2 {
		t.Fatalf("got %d headers, want 2: %+v", len(headers), headers)
	}
	if headers[0].Name != "HTTP-Referer" || headers[0].Value != "https://example.com" {
		t.Fatalf("unexpected first header: %+v", headers[0])
	}
	if headers[1].Name != "X-Title" || headers[1].Value != "My App" {
		t.Fatalf("unexpected second header: %+v", headers[1])
	}
}

func TestProviderSpecificHeaders_NoHooksForOpenAI(t *testing.T) {
	headers := secret.ProviderSpecificHeaders(providerid.OpenAI, secret.MapEnv{"OPENROUTER_SITE_URL": "x"})
	if len(headers) != 0 {
		t.Fatalf("got %+v, want no headers for openai", headers)
	}
}

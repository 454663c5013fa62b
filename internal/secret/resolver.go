// Package secret resolves upstream API credentials from environment
// variables. It is the implementation of spec component C1: pure,
// side-effect-free, and independent of everything else in the proxy.
package secret

import (
	"os"

	"github.com/northlake-dev/msgbridge/internal/providerid"
)

// Resolved carries a resolved credential and the name of the environment
// variable it came from, for diagnostics (§4.1).
type Resolved struct {
	Key    string
	Source string
}

// Env is the environment snapshot consulted by Resolve. Production code
// uses OSEnv; tests substitute a map for determinism.
type Env interface {
	Lookup(key string) (string, bool)
}

// OSEnv reads the real process environment.
type OSEnv struct{}

func (OSEnv) Lookup(key string) (string, bool) { return os.LookupEnv(key) }

// MapEnv is an in-memory Env for tests.
type MapEnv map[string]string

func (m MapEnv) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// priority is the fixed env-var priority list per provider (§4.1). Entries
// are consulted in order; the first non-empty value wins.
var priority = map[providerid.ID][]string{
	providerid.OpenRouter: {"OPENROUTER_API_KEY", "OPENAI_API_KEY", "API_KEY"},
	providerid.OpenAI:     {"OPENAI_API_KEY", "API_KEY"},
	providerid.Together:   {"TOGETHER_API_KEY", "API_KEY"},
	providerid.DeepSeek:   {"DEEPSEEK_API_KEY", "API_KEY"},
	providerid.GLM:        {"ZAI_API_KEY", "API_KEY"},
	providerid.Grok:       {"GROQ_API_KEY", "API_KEY"},
	providerid.Anthropic:  {"ANTHROPIC_API_KEY", "API_KEY"},
	providerid.Custom:     {"CUSTOM_API_KEY", "API_KEY"},
}

// Resolve maps a provider id to an API key and its source variable,
// consulting env in the provider's fixed priority order. It returns a zero
// Resolved when nothing is set; it never errors and never touches the
// network or disk.
func Resolve(provider providerid.ID, env Env) Resolved {
	vars, ok := priority[provider]
	if !ok {
		// Unrecognized custom ids fall back to the generic pair.
		vars = priority[providerid.Custom]
	}

	for _, name := range vars {
		if v, present := env.Lookup(name); present && v != "" {
			return Resolved{Key: v, Source: name}
		}
	}
	return Resolved{}
}

// Header is a single extra header a provider wants sent on every upstream
// request (§4.1 providerSpecificHeaders), e.g. OpenRouter attribution.
type Header struct {
	Name  string
	Value string
}

// headerHooks maps provider ids to the env vars feeding their optional
// attribution headers. Generalized into a table (rather than a single
// if-statement) per SPEC_FULL.md §D.1, so a new provider only needs an
// entry here.
var headerHooks = map[providerid.ID][]struct{ Header, EnvVar string }{
	providerid.OpenRouter: {
		{Header: "HTTP-Referer", EnvVar: "OPENROUTER_SITE_URL"},
		{Header: "X-Title", EnvVar: "OPENROUTER_APP_TITLE"},
	},
}

// ProviderSpecificHeaders returns the optional headers a provider wants
// attached to every upstream request, sourced from env. Providers with no
// hook table entry contribute nothing.
func ProviderSpecificHeaders(provider providerid.ID, env Env) []Header {
	var out []Header
	for _, hook := range headerHooks[provider] {
		if v, ok := env.Lookup(hook.EnvVar); ok && v != "" {
			out = append(out, Header{Name: hook.Header, Value: v})
		}
	}
	return out
}

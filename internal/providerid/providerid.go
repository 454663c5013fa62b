// Package providerid describes the fixed set of upstream provider identities
// msgbridge knows about out of the box, and the defaults each one carries.
package providerid

// ID identifies an upstream LLM provider. User-defined ids (for the
// "custom" bucket) are plain strings and are not enumerated here.
type ID string

const (
	OpenRouter ID = "openrouter"
	OpenAI     ID = "openai"
	Together   ID = "together"
	DeepSeek   ID = "deepseek"
	GLM        ID = "glm"
	Grok       ID = "grok"
	Anthropic  ID = "anthropic"
	Custom     ID = "custom"
)

// EndpointHint is a provider's a-priori expectation of what dialect its
// default base URL speaks, used by the endpoint-kind heuristic (§4.2 step 3)
// before a probe or override is available.
type EndpointHint string

const (
	HintAnthropicNative  EndpointHint = "anthropic-native"
	HintOpenAICompatible EndpointHint = "openai-compatible"
)

// Defaults describes the out-of-the-box shape of a known provider.
type Defaults struct {
	BaseURL   string
	APIPrefix string
	Hint      EndpointHint
}

// registry holds the built-in provider defaults. Unknown/custom ids fall
// back to the zero value and rely entirely on configuration.
var registry = map[ID]Defaults{
	OpenRouter: {BaseURL: "https://openrouter.ai/api/v1", APIPrefix: "/api/v1", Hint: HintOpenAICompatible},
	OpenAI:     {BaseURL: "https://api.openai.com/v1", APIPrefix: "/v1", Hint: HintOpenAICompatible},
	Together:   {BaseURL: "https://api.together.xyz/v1", APIPrefix: "/v1", Hint: HintOpenAICompatible},
	DeepSeek:   {BaseURL: "https://api.deepseek.com/v1", APIPrefix: "/v1", Hint: HintOpenAICompatible},
	GLM:        {BaseURL: "https://open.bigmodel.cn/api/anthropic", APIPrefix: "/api/anthropic", Hint: HintAnthropicNative},
	Grok:       {BaseURL: "https://api.x.ai/v1", APIPrefix: "/v1", Hint: HintOpenAICompatible},
	Anthropic:  {BaseURL: "https://api.anthropic.com/v1", APIPrefix: "/v1", Hint: HintAnthropicNative},
}

// Lookup returns the built-in defaults for id, and false for unknown or
// custom ids.
func Lookup(id ID) (Defaults, bool) {
	d, ok := registry[id]
	return d, ok
}

// KnownAnthropicNativeHosts lists hostnames whose API is known to speak the
// Anthropic Messages dialect natively even when reached through a generic
// "custom" provider entry (§4.2 step 3 heuristic).
var KnownAnthropicNativeHosts = []string{
	"z.ai",
	"api.z.ai",
	"open.bigmodel.cn",
	"moonshot.ai",
	"api.moonshot.cn",
	"api.minimax.chat",
	"api.deepseek.com/anthropic",
}

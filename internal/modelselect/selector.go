// Package modelselect implements spec component C3: choosing the upstream
// model id from the request payload, the "thinking" hint, and the
// process-level default models.
package modelselect

// Defaults holds the process-level default model ids (§4.3, §6 env vars
// REASONING_MODEL / COMPLETION_MODEL / VALUE_MODEL). Value is carried
// through configuration for parity with the env surface but the selection
// rule in §4.3 never references it directly.
type Defaults struct {
	Reasoning  string
	Completion string
	Value      string
}

// fallbackModel is used when no explicit model, no thinking-derived
// default, and no completion default are available.
const fallbackModel = "claude-3-5-sonnet-20241022"

// Select implements §4.3's rule: explicit request model wins; else thinking
// picks the reasoning model; else the completion model; else the baked-in
// fallback.
func Select(requestModel string, thinking bool, defaults Defaults) string {
	if requestModel != "" {
		return requestModel
	}
	if thinking && defaults.Reasoning != "" {
		return defaults.Reasoning
	}
	if defaults.Completion != "" {
		return defaults.Completion
	}
	return fallbackModel
}

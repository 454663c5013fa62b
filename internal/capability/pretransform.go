package capability

import (
	"fmt"

	"github.com/northlake-dev/msgbridge/internal/wire"
)

// ForceToolError is returned by PreTransformRequest when FORCE_TOOL_ERROR is
// set and the model matches ToolUnsupportedFallback, per §4.5's alternate
// behavior.
type ForceToolError struct {
	Hint string
}

func (e *ForceToolError) Error() string { return e.Hint }

// PreTransformRequest applies every request-side transformer that matches
// model to req in place, implementing the `preTransformRequest(reqView) ->
// reqView` interface named in §9. When it strips tools for a tool-incapable
// model, injectFallbackText reports that the caller must append
// InjectToolFallbackText(anthropicTools) to the last user message — the
// caller owns that mutation since only it holds the original Anthropic
// message list.
func (r *Registry) PreTransformRequest(model string, req *wire.OpenAIRequest, forceToolError bool) (injectFallbackText bool, err error) {
	if r.Has(model, ToolUnsupportedFallback) && len(req.Tools) > 0 {
		if forceToolError {
			return false, &ForceToolError{Hint: fmt.Sprintf("%s does not support tool calling", model)}
		}
		req.Tools = nil
		req.ToolChoice = nil
		return true, nil
	}

	if r.Has(model, ToolUse) {
		req.ToolChoice = "auto"
	}

	if r.Has(model, JSONToolStyle) {
		req.ToolChoice = "auto"
		noParallel := false
		req.ParallelTools = &noParallel
	}

	if r.Has(model, MaxToken) && req.MaxTokens == nil {
		if ceiling := r.MaxTokenCeiling(model); ceiling > 0 {
			req.MaxTokens = &ceiling
		}
	}

	return false, nil
}

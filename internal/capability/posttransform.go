package capability

import "encoding/json"

// RepairToolArguments implements the enhancetool response-side transformer
// (§4.5): if arguments doesn't parse as a JSON object, substitute "{}" and
// report that a warning should be attached to the response.
func (r *Registry) RepairToolArguments(model, arguments string) (repaired string, warn bool) {
	if !r.Has(model, EnhanceTool) {
		return arguments, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(arguments), &obj); err != nil {
		return "{}", true
	}
	return arguments, false
}

// EnhanceToolWarning is the warning text appended when RepairToolArguments
// substitutes an empty object (§4.5).
const EnhanceToolWarning = "tool_call arguments were malformed and replaced with an empty object"

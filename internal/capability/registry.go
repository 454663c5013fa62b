// Package capability implements spec component C5: a static registry of
// model-scoped pre/post hooks, keyed by glob-matched model id, modelled
// per §9's "small set of tagged variants plus a selector" design note.
package capability

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/northlake-dev/msgbridge/internal/wire"
)

// Name identifies one of the six transformer kinds in §4.5.
type Name string

const (
	ToolUnsupportedFallback Name = "tool-unsupported-fallback"
	ToolUse                 Name = "tooluse"
	JSONToolStyle           Name = "json-tool-style"
	MaxToken                Name = "maxtoken"
	Reasoning               Name = "reasoning"
	EnhanceTool             Name = "enhancetool"
)

// Entry binds a model-id glob to the transformers it activates.
type Entry struct {
	ModelGlob    string
	Transformers []Name
	MaxTokenCeiling int64 // only consulted by MaxToken
}

// Registry is the static {modelGlob, transformers[]} table of §9.
type Registry struct {
	entries []compiledEntry
}

type compiledEntry struct {
	Entry
	g glob.Glob
}

// NewRegistry compiles entries into a Registry. Entries are consulted in
// order and all matches apply (a model id may match more than one glob).
func NewRegistry(entries []Entry) (*Registry, error) {
	compiled := make([]compiledEntry, 0, len(entries))
	for _, e := range entries {
		g, err := glob.Compile(e.ModelGlob)
		if err != nil {
			return nil, fmt.Errorf("capability: compile glob %q: %w", e.ModelGlob, err)
		}
		compiled = append(compiled, compiledEntry{Entry: e, g: g})
	}
	return &Registry{entries: compiled}, nil
}

// Transformers returns every transformer entry whose glob matches model,
// in registry order.
func (r *Registry) Transformers(model string) []Entry {
	var out []Entry
	for _, c := range r.entries {
		if c.g.Match(model) {
			out = append(out, c.Entry)
		}
	}
	return out
}

// Has reports whether model matches any entry naming transformer name.
func (r *Registry) Has(model string, name Name) bool {
	for _, e := range r.Transformers(model) {
		for _, t := range e.Transformers {
			if t == name {
				return true
			}
		}
	}
	return false
}

// MaxTokenCeiling returns the first declared ceiling for model, if the
// maxtoken transformer applies, else 0.
func (r *Registry) MaxTokenCeiling(model string) int64 {
	for _, e := range r.Transformers(model) {
		for _, t := range e.Transformers {
			if t == MaxToken && e.MaxTokenCeiling > 0 {
				return e.MaxTokenCeiling
			}
		}
	}
	return 0
}

// DefaultRegistry returns the baked-in registry used when no operator
// override is configured: reasoner-style models get a token ceiling and
// forced tool_choice auto; a small set of known tool-incapable models get
// the fallback text-injection behavior (§4.5 examples).
func DefaultRegistry() *Registry {
	reg, err := NewRegistry([]Entry{
		{
			ModelGlob:       "*reasoner*",
			Transformers:    []Name{MaxToken, Reasoning, EnhanceTool},
			MaxTokenCeiling: 65536,
		},
		{
			ModelGlob:    "*gemini*free*",
			Transformers: []Name{ToolUnsupportedFallback},
		},
		{
			ModelGlob:    "*gemini*",
			Transformers: []Name{ToolUse, JSONToolStyle},
		},
	})
	if err != nil {
		// DefaultRegistry's globs are compile-time constants; a failure
		// here means the table itself is broken.
		panic(err)
	}
	return reg
}

// ToolDescription renders a tool's name/description/schema summary as the
// plain-text fallback injected into the last user message by
// ToolUnsupportedFallback (§4.5, §8 scenario 6).
func ToolDescription(t wire.AnthropicTool) string {
	var schemaSummary string
	if len(t.InputSchema) > 0 {
		var parsed map[string]any
		if err := json.Unmarshal(t.InputSchema, &parsed); err == nil {
			if props, ok := parsed["properties"].(map[string]any); ok {
				names := make([]string, 0, len(props))
				for k := range props {
					names = append(names, k)
				}
				schemaSummary = strings.Join(names, ", ")
			}
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Tool %q: %s", t.Name, t.Description)
	if schemaSummary != "" {
		fmt.Fprintf(&b, " (parameters: %s)", schemaSummary)
	}
	return b.String()
}

// InjectToolFallbackText builds the text appended to the last user
// message when tools are stripped for a tool-incapable model: it must
// mention "weather for a city"-style task framing and each tool's name,
// per §8 scenario 6 ("contains the strings get_weather and weather for a
// city").
func InjectToolFallbackText(tools []wire.AnthropicTool) string {
	var b strings.Builder
	b.WriteString("\n\nThe following tools are available; respond in plain text describing which tool you would call and with what arguments, since this model does not support native tool calling:\n")
	for _, t := range tools {
		b.WriteString("- ")
		b.WriteString(ToolDescription(t))
		b.WriteString("\n")
	}
	return b.String()
}

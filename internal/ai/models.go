package ai

import (
	"sort"
	"strings"
)

// ModelInfo is metadata used for prompt-size warnings.
type ModelInfo struct {
	Name          string
	ContextTokens int // approximate context window
}

var models = map[string]ModelInfo{
	"gemini-2.5-flash":      {Name: "gemini-2.5-flash", ContextTokens: 1048576},
	"gemini-2.5-flash-lite": {Name: "gemini-2.5-flash-lite", ContextTokens: 1048576},
	"gemini-2.5-pro":        {Name: "gemini-2.5-pro", ContextTokens: 1048576},
	"gemini-2.0-flash":      {Name: "gemini-2.0-flash", ContextTokens: 1048576},
	"llama3":                {Name: "llama3", ContextTokens: 8192},
	"llama3.1":              {Name: "llama3.1", ContextTokens: 131072},
	"mistral":               {Name: "mistral", ContextTokens: 32768},
}

// LookupModel returns metadata for a known model. A "models/" prefix and an
// Ollama ":tag" suffix are ignored.
func LookupModel(name string) (ModelInfo, bool) {
	name = strings.TrimPrefix(name, "models/")
	if i := strings.IndexByte(name, ':'); i > 0 {
		name = name[:i]
	}
	m, ok := models[name]
	return m, ok
}

// KnownModels returns the catalog sorted by name.
func KnownModels() []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

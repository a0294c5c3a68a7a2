package insights

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Insights is the fixed-shape result of an analysis. Every field is a
// non-nil array so it always serializes as [] rather than null.
type Insights struct {
	Trends          []string `json:"trends" yaml:"trends"`
	Outliers        []string `json:"outliers" yaml:"outliers"`
	DataQuality     []string `json:"data_quality" yaml:"data_quality"`
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
}

// Empty returns insights with all four lists present and empty.
func Empty() Insights {
	return Insights{
		Trends:          []string{},
		Outliers:        []string{},
		DataQuality:     []string{},
		Recommendations: []string{},
	}
}

// ParseReply turns a model reply into Insights. Replies may be bare JSON or
// JSON inside a ``` / ```json fence. Anything that is not a JSON object is
// kept verbatim as the single trend; this never fails.
func ParseReply(reply string) Insights {
	text := stripFence(strings.TrimSpace(reply))

	var obj map[string]json.RawMessage
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&obj); err != nil || obj == nil || dec.More() {
		out := Empty()
		out.Trends = []string{text}
		return out
	}
	return Insights{
		Trends:          toStrings(obj["trends"]),
		Outliers:        toStrings(obj["outliers"]),
		DataQuality:     toStrings(obj["data_quality"]),
		Recommendations: toStrings(obj["recommendations"]),
	}
}

func stripFence(s string) string {
	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimPrefix(s, "```json")
	case strings.HasPrefix(s, "```"):
		s = strings.TrimPrefix(s, "```")
	default:
		return s
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// toStrings coerces one insight field into a list of strings: a string
// becomes a single entry, array items keep their text, other values are
// rendered as compact JSON.
func toStrings(raw json.RawMessage) []string {
	out := []string{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		items = []json.RawMessage{raw}
	}
	for _, it := range items {
		if s, ok := itemText(it); ok {
			out = append(out, s)
		}
	}
	return out
}

func itemText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "", false
		}
		return s, true
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw), true
	}
	return buf.String(), true
}

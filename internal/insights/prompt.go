package insights

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KaramelBytes/csvinsights/internal/analysis"
)

// DefaultFilename names reports whose request omitted a filename.
const DefaultFilename = "unknown.csv"

// promptPreviewRows caps how many preview rows are embedded in the prompt.
const promptPreviewRows = 5

// Request is the profile payload a client sends back to ask for insights.
// Stats and preview rows stay raw so they are stored exactly as received.
type Request struct {
	Filename    string            `json:"filename"`
	Rows        int               `json:"rows"`
	Columns     int               `json:"columns"`
	ColumnNames []string          `json:"column_names"`
	Stats       json.RawMessage   `json:"stats"`
	Preview     []json.RawMessage `json:"preview"`
}

// Normalize fills defaults for omitted fields.
func (r *Request) Normalize() {
	if strings.TrimSpace(r.Filename) == "" {
		r.Filename = DefaultFilename
	}
	if r.ColumnNames == nil {
		r.ColumnNames = []string{}
	}
	if len(bytes.TrimSpace(r.Stats)) == 0 || string(bytes.TrimSpace(r.Stats)) == "null" {
		r.Stats = json.RawMessage("{}")
	}
}

// RequestFromProfile builds the request a client would send back after an
// upload returned p.
func RequestFromProfile(p *analysis.Profile) (Request, error) {
	stats, err := json.Marshal(p.Stats)
	if err != nil {
		return Request{}, fmt.Errorf("encode stats: %w", err)
	}
	preview := make([]json.RawMessage, 0, len(p.Preview))
	for _, row := range p.Preview {
		b, err := json.Marshal(row)
		if err != nil {
			return Request{}, fmt.Errorf("encode preview: %w", err)
		}
		preview = append(preview, b)
	}
	names := append([]string(nil), p.ColumnNames...)
	return Request{
		Filename:    p.Filename,
		Rows:        p.Rows,
		Columns:     p.Columns,
		ColumnNames: names,
		Stats:       stats,
		Preview:     preview,
	}, nil
}

// BuildPrompt renders the deterministic analysis prompt for req.
func BuildPrompt(req Request) string {
	preview := req.Preview
	if len(preview) > promptPreviewRows {
		preview = preview[:promptPreviewRows]
	}
	rows := make([]json.RawMessage, 0, len(preview))
	for _, r := range preview {
		if len(bytes.TrimSpace(r)) == 0 {
			r = json.RawMessage("null")
		}
		rows = append(rows, r)
	}

	var b strings.Builder
	b.WriteString("Analyze this CSV data and provide insights:\n\n")
	b.WriteString(fmt.Sprintf("Filename: %s\n", req.Filename))
	b.WriteString(fmt.Sprintf("Rows: %d\n", req.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n", req.Columns))
	b.WriteString(fmt.Sprintf("Column Names: %s\n\n", strings.Join(req.ColumnNames, ", ")))
	b.WriteString("Statistics:\n")
	b.WriteString(indentJSON(req.Stats, "{}"))
	b.WriteString("\n\nSample Data (first few rows):\n")
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		rowsJSON = []byte("[]")
	}
	b.WriteString(indentJSON(rowsJSON, "[]"))
	b.WriteString(`

Please provide:
1. Key Trends: What patterns do you see in the data?
2. Outliers: Any unusual values or anomalies?
3. Data Quality: Missing values, inconsistencies, or issues?
4. Recommendations: What should be checked or analyzed next?

Format your response as JSON with keys: trends, outliers, data_quality, recommendations
Each should be an array of strings.`)
	return b.String()
}

// indentJSON pretty-prints raw with two-space indentation, keeping key order.
func indentJSON(raw []byte, empty string) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return empty
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}

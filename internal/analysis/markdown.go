package analysis

import (
	"fmt"
	"strconv"
	"strings"
)

// Markdown renders a compact report suitable for terminals or standalone docs.
func (p *Profile) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if p.Filename != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", p.Filename))
	}
	if p.Encoding != "" {
		b.WriteString(fmt.Sprintf("Encoding: %s\n", p.Encoding))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", p.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", p.Columns))

	b.WriteString("[SCHEMA]\n")
	for _, name := range p.ColumnNames {
		miss, _ := p.Stats.MissingValues.Get(name)
		missPct := 0.0
		if p.Rows > 0 {
			missPct = float64(miss) * 100.0 / float64(p.Rows)
		}
		b.WriteString(fmt.Sprintf("- %s: ", safeName(name)))
		if ns, ok := p.numeric(name); ok {
			b.WriteString(fmt.Sprintf("numeric (missing %.1f%%)", missPct))
			if ns.Min != nil {
				b.WriteString(fmt.Sprintf(" - min %.4g, max %.4g, mean %.4g, median %.4g", *ns.Min, *ns.Max, *ns.Mean, *ns.Median))
			}
		} else if cs, ok := p.categorical(name); ok {
			b.WriteString(fmt.Sprintf("categorical (missing %.1f%%)", missPct))
			if len(cs.TopValues) > 0 {
				b.WriteString(" - top: ")
				for i, kv := range cs.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Key), kv.Count))
				}
			}
			b.WriteString(fmt.Sprintf("; unique=%d", cs.UniqueValues))
		}
		b.WriteString("\n")
	}

	if len(p.Stats.MissingValues) > 0 {
		b.WriteString("\n[MISSING VALUES]\n")
		for _, mv := range p.Stats.MissingValues {
			b.WriteString(fmt.Sprintf("- %s: %d\n", safeName(mv.Key), mv.Count))
		}
	}

	if len(p.Preview) > 0 {
		b.WriteString("\n[PREVIEW]\n")
		b.WriteString("| ")
		for i, name := range p.ColumnNames {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeVal(safeName(name)))
		}
		b.WriteString(" |\n| ")
		for i := range p.ColumnNames {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range p.Preview {
			b.WriteString("| ")
			for i, v := range row.Values {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := cellText(v)
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	return b.String()
}

func (p *Profile) numeric(name string) (NumericSummary, bool) {
	for _, s := range p.Stats.NumericColumns {
		if s.Name == name {
			return s, true
		}
	}
	return NumericSummary{}, false
}

func (p *Profile) categorical(name string) (CategoricalSummary, bool) {
	for _, s := range p.Stats.CategoricalColumns {
		if s.Name == name {
			return s, true
		}
	}
	return CategoricalSummary{}, false
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

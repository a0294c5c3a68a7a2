package analysis

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"

	"gopkg.in/yaml.v3"
)

// Options controls profiling behavior.
type Options struct {
	// PreviewRows is how many leading rows go into the preview.
	PreviewRows int
	// TopValues caps the most-frequent list of categorical columns.
	TopValues int
	// MaxRows rejects files with more data rows; 0 means unlimited.
	MaxRows int
}

// DefaultOptions returns the limits the upload endpoint uses.
func DefaultOptions() Options {
	return Options{
		PreviewRows: 10,
		TopValues:   5,
	}
}

// Profile is the statistics and preview computed from one CSV upload.
// Field order matches the upload response.
type Profile struct {
	Filename    string       `json:"filename" yaml:"filename"`
	Rows        int          `json:"rows" yaml:"rows"`
	Columns     int          `json:"columns" yaml:"columns"`
	ColumnNames []string     `json:"column_names" yaml:"column_names"`
	Preview     []PreviewRow `json:"preview" yaml:"preview"`
	Stats       Stats        `json:"stats" yaml:"stats"`
	// Encoding is the text encoding the upload was decoded with.
	Encoding string `json:"-" yaml:"-"`
}

// Stats groups per-column summaries by inferred kind.
type Stats struct {
	NumericColumns     []NumericSummary     `json:"numeric_columns" yaml:"numeric_columns"`
	CategoricalColumns []CategoricalSummary `json:"categorical_columns" yaml:"categorical_columns"`
	// MissingValues lists only columns with at least one missing cell, in header order.
	MissingValues Counts `json:"missing_values" yaml:"missing_values"`
}

// NumericSummary holds descriptive stats; all nil when the column has no values.
type NumericSummary struct {
	Name   string   `json:"name" yaml:"name"`
	Min    *float64 `json:"min" yaml:"min"`
	Max    *float64 `json:"max" yaml:"max"`
	Mean   *float64 `json:"mean" yaml:"mean"`
	Median *float64 `json:"median" yaml:"median"`
}

type CategoricalSummary struct {
	Name         string `json:"name" yaml:"name"`
	UniqueValues int    `json:"unique_values" yaml:"unique_values"`
	TopValues    Counts `json:"top_values" yaml:"top_values"`
}

// Count pairs a label with an occurrence count.
type Count struct {
	Key   string
	Count int
}

// Counts serializes as a JSON/YAML object whose keys keep slice order.
type Counts []Count

// Get returns the count for key and whether it is present.
func (cs Counts) Get(key string) (int, bool) {
	for _, c := range cs {
		if c.Key == key {
			return c.Count, true
		}
	}
	return 0, false
}

func (cs Counts) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, c := range cs {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(c.Key)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		v, err := json.Marshal(c.Count)
		if err != nil {
			return nil, err
		}
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func (cs Counts) MarshalYAML() (interface{}, error) {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, c := range cs {
		var k, v yaml.Node
		k.SetString(c.Key)
		if err := v.Encode(c.Count); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, &k, &v)
	}
	return n, nil
}

// PreviewRow is one source row keyed by column name, in header order.
// Missing cells are nil.
type PreviewRow struct {
	Columns []string
	Values  []any
}

// Get returns the cell for column name.
func (r PreviewRow) Get(name string) (any, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

func (r PreviewRow) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		v, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, err
		}
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func (r PreviewRow) MarshalYAML() (interface{}, error) {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i, c := range r.Columns {
		var k, v yaml.Node
		k.SetString(c)
		if err := v.Encode(r.Values[i]); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, &k, &v)
	}
	return n, nil
}

// ProfileCSV decodes, parses and profiles raw upload bytes.
func ProfileCSV(filename string, raw []byte, opt Options) (*Table, *Profile, error) {
	text, enc, err := Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	t, err := ParseTable(text, opt)
	if err != nil {
		return nil, nil, err
	}
	p := ProfileTable(t, opt)
	p.Filename = filename
	p.Encoding = enc
	return t, p, nil
}

// ProfileTable computes stats and the preview for a parsed table.
func ProfileTable(t *Table, opt Options) *Profile {
	if opt.PreviewRows <= 0 {
		opt.PreviewRows = 10
	}
	if opt.TopValues <= 0 {
		opt.TopValues = 5
	}
	names := t.ColumnNames()
	p := &Profile{
		Rows:        t.Rows,
		Columns:     len(t.Columns),
		ColumnNames: names,
		Preview:     make([]PreviewRow, 0, min(t.Rows, opt.PreviewRows)),
		Stats: Stats{
			NumericColumns:     make([]NumericSummary, 0),
			CategoricalColumns: make([]CategoricalSummary, 0),
			MissingValues:      make(Counts, 0),
		},
	}

	for _, col := range t.Columns {
		if miss := missingCount(col); miss > 0 {
			p.Stats.MissingValues = append(p.Stats.MissingValues, Count{Key: col.Name(), Count: miss})
		}
		switch c := col.(type) {
		case *NumericColumn:
			p.Stats.NumericColumns = append(p.Stats.NumericColumns, summarizeNumeric(c))
		case *CategoricalColumn:
			p.Stats.CategoricalColumns = append(p.Stats.CategoricalColumns, summarizeCategorical(c, opt.TopValues))
		}
	}

	for i := 0; i < t.Rows && i < opt.PreviewRows; i++ {
		row := PreviewRow{Columns: names, Values: make([]any, len(t.Columns))}
		for j, col := range t.Columns {
			row.Values[j] = col.Value(i)
		}
		p.Preview = append(p.Preview, row)
	}
	return p
}

func missingCount(c Column) int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.Missing(i) {
			n++
		}
	}
	return n
}

func summarizeNumeric(c *NumericColumn) NumericSummary {
	s := NumericSummary{Name: c.Name()}
	vals := c.Present()
	if len(vals) == 0 {
		return s
	}
	lo, hi := vals[0], vals[0]
	// Welford running mean avoids overflow on large sums
	var mean float64
	for i, x := range vals {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
		n := float64(i + 1)
		if d := x - mean; !math.IsInf(d, 0) {
			mean += d / n
		} else {
			// opposite-sign extremes
			mean += x/n - mean/n
		}
	}
	med := median(vals)
	// rounding in the running mean can step just outside the observed range
	mean = min(max(mean, lo), hi)
	s.Min, s.Max, s.Mean, s.Median = &lo, &hi, &mean, &med
	return s
}

func summarizeCategorical(c *CategoricalColumn, topN int) CategoricalSummary {
	counts := make(map[string]int)
	var order []string
	for _, v := range c.Present() {
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	// order is first-seen, so a stable sort breaks ties by first appearance
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	top := make(Counts, 0, min(topN, len(order)))
	for _, v := range order {
		if len(top) == topN {
			break
		}
		top = append(top, Count{Key: v, Count: counts[v]})
	}
	return CategoricalSummary{Name: c.Name(), UniqueValues: len(order), TopValues: top}
}

// median uses the average of the two middle values for even counts.
func median(vals []float64) float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	n := len(cp)
	if n%2 == 1 {
		return cp[n/2]
	}
	return midpoint(cp[n/2-1], cp[n/2])
}

// midpoint averages a <= b without overflowing for values near the float64
// limits.
func midpoint(a, b float64) float64 {
	if (a < 0) != (b < 0) {
		return (a + b) / 2
	}
	return a + (b-a)/2
}

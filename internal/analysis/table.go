package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ParseError reports malformed CSV structure.
type ParseError struct {
	Line int // 1-based source line, 0 when unknown
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Kind is the inferred type of a column.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
)

// Column is either a *NumericColumn or a *CategoricalColumn.
type Column interface {
	Name() string
	Kind() Kind
	Len() int
	// Missing reports whether cell i had no value in the source.
	Missing(i int) bool
	// Value returns the typed cell (float64 or string), or nil when missing.
	Value(i int) any
	sealed()
}

// NumericColumn holds a column whose every present cell parsed as a finite float.
type NumericColumn struct {
	name    string
	values  []float64
	present []bool
}

func (c *NumericColumn) Name() string       { return c.name }
func (c *NumericColumn) Kind() Kind         { return KindNumeric }
func (c *NumericColumn) Len() int           { return len(c.values) }
func (c *NumericColumn) Missing(i int) bool { return !c.present[i] }
func (c *NumericColumn) sealed()            {}

func (c *NumericColumn) Value(i int) any {
	if !c.present[i] {
		return nil
	}
	return c.values[i]
}

// Present returns the non-missing values in source order.
func (c *NumericColumn) Present() []float64 {
	out := make([]float64, 0, len(c.values))
	for i, v := range c.values {
		if c.present[i] {
			out = append(out, v)
		}
	}
	return out
}

// CategoricalColumn holds a column with at least one non-numeric cell.
type CategoricalColumn struct {
	name    string
	values  []string
	present []bool
}

func (c *CategoricalColumn) Name() string       { return c.name }
func (c *CategoricalColumn) Kind() Kind         { return KindCategorical }
func (c *CategoricalColumn) Len() int           { return len(c.values) }
func (c *CategoricalColumn) Missing(i int) bool { return !c.present[i] }
func (c *CategoricalColumn) sealed()            {}

func (c *CategoricalColumn) Value(i int) any {
	if !c.present[i] {
		return nil
	}
	return c.values[i]
}

// Present returns the non-missing values in source order.
func (c *CategoricalColumn) Present() []string {
	out := make([]string, 0, len(c.values))
	for i, v := range c.values {
		if c.present[i] {
			out = append(out, v)
		}
	}
	return out
}

// Table is a parsed CSV: header-ordered columns of equal length.
type Table struct {
	Columns []Column
	Rows    int
}

// ColumnNames returns the header in source order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name()
	}
	return names
}

// nullSentinels are the cell texts treated as missing besides the empty string.
var nullSentinels = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {}, "-NaN": {}, "-nan": {},
	"1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {},
	"n/a": {}, "nan": {}, "null": {},
}

func isMissing(s string) bool {
	if s == "" {
		return true
	}
	_, ok := nullSentinels[s]
	return ok
}

// ParseTable reads decoded CSV text into typed columns.
func ParseTable(text string, opt Options) (*Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Err: errors.New("no columns to parse from file")}
		}
		return nil, wrapCSVError(err)
	}
	names := normalizeHeader(header)
	ncol := len(names)

	type rawColumn struct {
		cells   []string
		present []bool
	}
	raw := make([]rawColumn, ncol)
	rows := 0
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, wrapCSVError(err)
		}
		if len(rec) > ncol {
			line, _ := r.FieldPos(0)
			return nil, &ParseError{Line: line, Err: fmt.Errorf("expected %d fields, saw %d", ncol, len(rec))}
		}
		rows++
		if opt.MaxRows > 0 && rows > opt.MaxRows {
			return nil, &ParseError{Err: fmt.Errorf("file has more than %d data rows", opt.MaxRows)}
		}
		for j := 0; j < ncol; j++ {
			// short rows are padded with missing cells
			var v string
			if j < len(rec) {
				v = rec[j]
			}
			raw[j].cells = append(raw[j].cells, v)
			raw[j].present = append(raw[j].present, !isMissing(v))
		}
	}

	t := &Table{Rows: rows, Columns: make([]Column, ncol)}
	for j, name := range names {
		t.Columns[j] = inferColumn(name, raw[j].cells, raw[j].present)
	}
	return t, nil
}

// inferColumn makes a whole-column decision: numeric only if every present
// cell parses as a finite float.
func inferColumn(name string, cells []string, present []bool) Column {
	nums := make([]float64, len(cells))
	for i, s := range cells {
		if !present[i] {
			continue
		}
		x, ok := parseNumeric(s)
		if !ok {
			return &CategoricalColumn{name: name, values: cells, present: present}
		}
		nums[i] = x
	}
	return &NumericColumn{name: name, values: nums, present: present}
}

func parseNumeric(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// normalizeHeader names blank headers "Unnamed: i" and suffixes duplicates
// with ".1", ".2", ... so every column name is unique.
func normalizeHeader(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	dups := make(map[string]int)
	for i, h := range header {
		name := h
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		base := name
		for used[name] {
			dups[base]++
			name = fmt.Sprintf("%s.%d", base, dups[base])
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func wrapCSVError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Err: pe.Err}
	}
	return &ParseError{Err: err}
}

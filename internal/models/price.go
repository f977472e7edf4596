package models

import (
	"math"
	"time"
)

// ColumnKind classifies an upstream column.
type ColumnKind int

const (
	KindNumber ColumnKind = iota
	KindDate
	KindText
)

type Column struct {
	Name string     `json:"name"`
	Kind ColumnKind `json:"kind"`
}

// PriceRow is one trading date. Numeric cells that came back null are
// stored as NaN.
type PriceRow struct {
	Date   time.Time
	Values map[string]float64
	Text   map[string]string
}

// PriceTable is the per-request time series for one ticker, ascending by
// date with one row per date.
type PriceTable struct {
	Ticker  string
	Columns []Column
	Rows    []PriceRow
}

func (t *PriceTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

func (t *PriceTable) Empty() bool {
	return t.Len() == 0
}

func (t *PriceTable) Dates() []time.Time {
	out := make([]time.Time, t.Len())
	for i, r := range t.Rows {
		out[i] = r.Date
	}
	return out
}

// HasNumeric reports whether name is a numeric column of the table.
func (t *PriceTable) HasNumeric(name string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c.Kind == KindNumber
		}
	}
	return false
}

// Series returns the values of a numeric column in date order.
func (t *PriceTable) Series(name string) ([]float64, bool) {
	if !t.HasNumeric(name) {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		v, ok := r.Values[name]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out, true
}

// NumericColumns lists numeric column names in upstream order.
func (t *PriceTable) NumericColumns() []string {
	var out []string
	for _, c := range t.Columns {
		if c.Kind == KindNumber {
			out = append(out, c.Name)
		}
	}
	return out
}

package chart

import (
	"errors"
	"fmt"
	"time"

	"github.com/kjannette/pricegraph/internal/models"
)

// Palette assigns colors by selection position.
var Palette = []string{"red", "blue", "green", "yellow"}

// MaxFields is the largest selection that still gets distinct colors.
var MaxFields = len(Palette)

var (
	ErrTooManyFields = fmt.Errorf("at most %d price fields can be plotted", MaxFields)
	ErrUnknownColumn = errors.New("price field not in table")
)

type Series struct {
	Name   string
	Color  string
	Values []float64
}

// Chart is the in-memory plot for one request.
type Chart struct {
	Title  string
	XLabel string
	YLabel string
	Dates  []time.Time
	Series []Series
}

// Build overlays one line per field. An empty field list yields a chart
// with no series.
func Build(table *models.PriceTable, fields []string, ticker string) (*Chart, error) {
	if len(fields) > MaxFields {
		return nil, ErrTooManyFields
	}

	c := &Chart{
		Title:  ticker,
		XLabel: "Date",
		YLabel: "Price",
		Dates:  table.Dates(),
	}

	for i, f := range fields {
		values, ok := table.Series(f)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, f)
		}
		c.Series = append(c.Series, Series{
			Name:   f,
			Color:  Palette[i],
			Values: values,
		})
	}
	return c, nil
}

package external

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kjannette/pricegraph/internal/models"
)

// datatableResponse is the Quandl datatables envelope:
// { "datatable": { "columns": [{name,type}], "data": [[...]] } }
type datatableResponse struct {
	Datatable *struct {
		Columns []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"columns"`
		Data [][]any `json:"data"`
	} `json:"datatable"`
}

// decodeDatatable validates the payload shape and reshapes it into a
// PriceTable sorted by date. An empty data array is not an error.
func decodeDatatable(ticker string, body []byte) (*models.PriceTable, error) {
	var payload datatableResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	dt := payload.Datatable
	if dt == nil {
		return nil, fmt.Errorf("%w: missing datatable", ErrMalformedPayload)
	}

	table := &models.PriceTable{Ticker: ticker}
	dateIdx := -1
	for i, c := range dt.Columns {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ErrMalformedPayload, i)
		}
		kind := columnKind(c.Name, c.Type)
		if kind == models.KindDate && c.Name == "date" {
			dateIdx = i
		}
		table.Columns = append(table.Columns, models.Column{Name: c.Name, Kind: kind})
	}

	if len(dt.Data) == 0 {
		return table, nil
	}
	if dateIdx < 0 {
		return nil, fmt.Errorf("%w: no date column", ErrMalformedPayload)
	}

	seen := make(map[time.Time]bool, len(dt.Data))
	for n, raw := range dt.Data {
		if len(raw) != len(table.Columns) {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrMalformedPayload, n, len(raw), len(table.Columns))
		}

		row := models.PriceRow{
			Values: make(map[string]float64, len(raw)),
			Text:   make(map[string]string),
		}
		for i, cell := range raw {
			col := table.Columns[i]
			switch col.Kind {
			case models.KindDate:
				s, ok := cell.(string)
				if !ok {
					return nil, fmt.Errorf("%w: row %d column %s is not a date", ErrMalformedPayload, n, col.Name)
				}
				d, err := time.Parse(dateLayout, s)
				if err != nil {
					return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedPayload, n, err)
				}
				if i == dateIdx {
					row.Date = d
				} else {
					row.Text[col.Name] = s
				}
			case models.KindText:
				if cell != nil {
					row.Text[col.Name] = fmt.Sprint(cell)
				}
			default:
				v, err := toFloat(cell)
				if err != nil {
					return nil, fmt.Errorf("%w: row %d column %s: %v", ErrMalformedPayload, n, col.Name, err)
				}
				row.Values[col.Name] = v
			}
		}

		// Duplicate dates keep the first row.
		if seen[row.Date] {
			continue
		}
		seen[row.Date] = true
		table.Rows = append(table.Rows, row)
	}

	sort.SliceStable(table.Rows, func(i, j int) bool {
		return table.Rows[i].Date.Before(table.Rows[j].Date)
	})
	return table, nil
}

func columnKind(name, typ string) models.ColumnKind {
	t := strings.ToLower(typ)
	switch {
	case name == "date" || t == "date":
		return models.KindDate
	case name == "ticker" || t == "string" || t == "text":
		return models.KindText
	default:
		return models.KindNumber
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return n, nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

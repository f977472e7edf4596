package chart

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/kjannette/pricegraph/internal/models"
)

func sampleTable(n int) *models.PriceTable {
	t := &models.PriceTable{
		Ticker: "AAPL",
		Columns: []models.Column{
			{Name: "ticker", Kind: models.KindText},
			{Name: "date", Kind: models.KindDate},
			{Name: "open", Kind: models.KindNumber},
			{Name: "high", Kind: models.KindNumber},
			{Name: "low", Kind: models.KindNumber},
			{Name: "close", Kind: models.KindNumber},
			{Name: "adj_close", Kind: models.KindNumber},
		},
	}
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		base := 100 + float64(i)
		t.Rows = append(t.Rows, models.PriceRow{
			Date: start.AddDate(0, 0, i),
			Values: map[string]float64{
				"open": base, "high": base + 2, "low": base - 2, "close": base + 1, "adj_close": base + 0.5,
			},
			Text: map[string]string{"ticker": "AAPL"},
		})
	}
	return t
}

func TestBuild_OneSeriesPerField(t *testing.T) {
	table := sampleTable(5)
	for k := 0; k <= MaxFields; k++ {
		fields := []string{"open", "high", "low", "close"}[:k]
		c, err := Build(table, fields, "AAPL")
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		if len(c.Series) != k {
			t.Fatalf("k=%d: got %d series", k, len(c.Series))
		}
		colors := map[string]bool{}
		for i, s := range c.Series {
			if s.Name != fields[i] {
				t.Fatalf("series %d name: got %q", i, s.Name)
			}
			if colors[s.Color] {
				t.Fatalf("duplicate color %q", s.Color)
			}
			colors[s.Color] = true
		}
	}
}

func TestBuild_ColorsFollowSelectionOrder(t *testing.T) {
	c, err := Build(sampleTable(3), []string{"close", "open"}, "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if c.Series[0].Color != "red" || c.Series[1].Color != "blue" {
		t.Fatalf("colors: %s, %s", c.Series[0].Color, c.Series[1].Color)
	}
}

func TestBuild_CloseRoundTrip(t *testing.T) {
	table := sampleTable(10)
	c, err := Build(table, []string{"close"}, "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != "AAPL" || c.XLabel != "Date" || c.YLabel != "Price" {
		t.Fatalf("labels: %+v", c)
	}
	if len(c.Dates) != table.Len() {
		t.Fatalf("dates: got %d", len(c.Dates))
	}
	for i, row := range table.Rows {
		if !c.Dates[i].Equal(row.Date) {
			t.Fatalf("date %d out of order", i)
		}
		if c.Series[0].Values[i] != row.Values["close"] {
			t.Fatalf("value %d: got %v want %v", i, c.Series[0].Values[i], row.Values["close"])
		}
	}
}

func TestBuild_Errors(t *testing.T) {
	table := sampleTable(2)

	_, err := Build(table, []string{"open", "high", "low", "close", "adj_close"}, "AAPL")
	if !errors.Is(err, ErrTooManyFields) {
		t.Fatalf("expected ErrTooManyFields, got %v", err)
	}

	_, err = Build(table, []string{"close", "dividend"}, "AAPL")
	if !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}

	// Text columns are not plottable.
	_, err = Build(table, []string{"ticker"}, "AAPL")
	if !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn for text column, got %v", err)
	}
}

func TestBuild_EmptySelection(t *testing.T) {
	c, err := Build(sampleTable(3), nil, "AAPL")
	if err != nil {
		t.Fatalf("empty selection should not error: %v", err)
	}
	if len(c.Series) != 0 {
		t.Fatalf("expected no series, got %d", len(c.Series))
	}
}

func TestRender_Fragments(t *testing.T) {
	table := sampleTable(5)
	table.Rows[2].Values["open"] = math.NaN()

	c, err := Build(table, []string{"open", "close"}, "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	frag, err := Render(c)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	div := string(frag.Div)
	script := string(frag.Script)
	if !strings.HasPrefix(div, "<div") || !strings.Contains(div, `id="chart_`) {
		t.Fatalf("div fragment: %s", div)
	}
	if !strings.HasPrefix(script, "<script") || !strings.Contains(script, "echarts.init") {
		t.Fatalf("script fragment: %s", script)
	}
	for _, want := range []string{"AAPL", "2025-01-02", `"open"`, `"close"`, "red", "blue", "Price", "Date"} {
		if !strings.Contains(script, want) {
			t.Fatalf("script missing %q", want)
		}
	}
	if strings.Contains(script, "NaN") {
		t.Fatal("NaN leaked into chart option")
	}

	other, err := Render(c)
	if err != nil {
		t.Fatal(err)
	}
	if other.Div == frag.Div {
		t.Fatal("each render should get its own element id")
	}
}

func TestRender_EscapesTitle(t *testing.T) {
	c, err := Build(sampleTable(3), []string{"close"}, "</SCRIPT><B>X&Y")
	if err != nil {
		t.Fatal(err)
	}
	frag, err := Render(c)
	if err != nil {
		t.Fatal(err)
	}

	script := strings.ToLower(string(frag.Script))
	if n := strings.Count(script, "</script>"); n != 1 {
		t.Fatalf("script should close exactly once, found %d", n)
	}
	if strings.Contains(script, "<b>") || strings.Contains(script, "x&y") {
		t.Fatalf("title not escaped: %s", frag.Script)
	}
	if !strings.Contains(string(frag.Script), `\u003c/SCRIPT\u003e`) {
		t.Fatal("expected unicode-escaped title in option")
	}
}

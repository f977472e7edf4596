package external

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

type fakeBars struct {
	symbol string
	req    marketdata.GetBarsRequest
	bars   []marketdata.Bar
	err    error
}

func (f *fakeBars) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.symbol = symbol
	f.req = req
	return f.bars, f.err
}

func TestAlpacaFetch_Success(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 10, d, 4, 0, 0, 0, time.UTC) }
	src := &fakeBars{bars: []marketdata.Bar{
		{Timestamp: day(2), Open: 10, High: 12, Low: 9, Close: 11, Volume: 100, VWAP: 10.5},
		{Timestamp: day(1), Open: 9, High: 10, Low: 8, Close: 10, Volume: 90, VWAP: 9.5},
	}}
	c := &AlpacaClient{bars: src, now: func() time.Time { return fixedNow }}

	res := c.Fetch(context.Background(), "spy")
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %v", res.Outcome)
	}
	if src.symbol != "SPY" {
		t.Fatalf("symbol should be uppercased, got %q", src.symbol)
	}
	if src.req.TimeFrame != marketdata.OneDay {
		t.Fatalf("timeframe: got %v", src.req.TimeFrame)
	}
	if !src.req.End.Equal(fixedNow) || !src.req.Start.Equal(fixedNow.AddDate(0, 0, -LookbackDays)) {
		t.Fatalf("window: %v - %v", src.req.Start, src.req.End)
	}

	closes, ok := res.Table.Series("close")
	if !ok || len(closes) != 2 || closes[0] != 10 || closes[1] != 11 {
		t.Fatalf("close series: %v", closes)
	}
	if !res.Table.HasNumeric("vwap") {
		t.Fatal("expected vwap column")
	}
}

func TestAlpacaFetch_EmptyAndError(t *testing.T) {
	c := &AlpacaClient{bars: &fakeBars{}, now: time.Now}
	if res := c.Fetch(context.Background(), "ZZZZ"); res.Outcome != OutcomeEmpty {
		t.Fatalf("expected empty, got %v", res.Outcome)
	}

	boom := errors.New("forbidden")
	c = &AlpacaClient{bars: &fakeBars{err: boom}, now: time.Now}
	res := c.Fetch(context.Background(), "SPY")
	if res.Outcome != OutcomeUpstreamError || !errors.Is(res.Err, boom) {
		t.Fatalf("expected wrapped upstream error, got %+v", res)
	}
}

func TestAlpacaFetch_APIErrorKeepsStatus(t *testing.T) {
	for _, code := range []int{401, 403, 422, 500} {
		src := &fakeBars{err: &alpaca.APIError{StatusCode: code, Message: "denied"}}
		c := &AlpacaClient{bars: src, now: time.Now}

		res := c.Fetch(context.Background(), "SPY")
		if res.Outcome != OutcomeUpstreamError {
			t.Fatalf("%d: expected upstream error, got %v", code, res.Outcome)
		}
		if res.Err.Status != code || res.Status() != code {
			t.Fatalf("%d: status not carried, got %d", code, res.Err.Status)
		}
		var apiErr *alpaca.APIError
		if !errors.As(res.Err, &apiErr) {
			t.Fatal("API error should stay unwrappable")
		}
	}

	// Transport failures have no status.
	c := &AlpacaClient{bars: &fakeBars{err: errors.New("dial tcp: refused")}, now: time.Now}
	if res := c.Fetch(context.Background(), "SPY"); res.Err.Status != 0 {
		t.Fatalf("expected status 0, got %d", res.Err.Status)
	}
}

func TestAlpacaFetch_CancelledContext(t *testing.T) {
	src := &fakeBars{}
	c := &AlpacaClient{bars: src, now: time.Now}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := c.Fetch(ctx, "SPY")
	if res.Outcome != OutcomeUpstreamError {
		t.Fatalf("expected upstream error, got %v", res.Outcome)
	}
	if src.symbol != "" {
		t.Fatal("no request should be issued after cancellation")
	}
}

package external

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog/log"

	"github.com/kjannette/pricegraph/internal/models"
)

const alpacaName = "alpaca"

// alpacaColumns is the table shape produced from daily bars.
var alpacaColumns = []models.Column{
	{Name: "ticker", Kind: models.KindText},
	{Name: "date", Kind: models.KindDate},
	{Name: "open", Kind: models.KindNumber},
	{Name: "high", Kind: models.KindNumber},
	{Name: "low", Kind: models.KindNumber},
	{Name: "close", Kind: models.KindNumber},
	{Name: "volume", Kind: models.KindNumber},
	{Name: "vwap", Kind: models.KindNumber},
}

type barSource interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaClient serves the same PriceTable shape from Alpaca daily bars.
type AlpacaClient struct {
	bars barSource
	now  func() time.Time
}

func NewAlpacaClient(apiKey, apiSecret string) *AlpacaClient {
	return &AlpacaClient{
		bars: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			Feed:      marketdata.IEX,
		}),
		now: time.Now,
	}
}

func (c *AlpacaClient) Name() string { return alpacaName }

// Fetch ignores ctx cancellation once the request is in flight; the
// marketdata client has no context-aware bars call.
func (c *AlpacaClient) Fetch(ctx context.Context, ticker string) FetchResult {
	ticker = NormalizeTicker(ticker)
	if err := ctx.Err(); err != nil {
		return Failed(ticker, &UpstreamError{Provider: alpacaName, Err: err})
	}

	start, end := Window(c.now())
	bars, err := c.bars.GetBars(ticker, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      start,
		End:        end,
		Feed:       marketdata.IEX,
	})
	if err != nil {
		uerr := &UpstreamError{Provider: alpacaName, Err: err}
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) {
			uerr.Status = apiErr.StatusCode
		}
		log.Error().Err(err).Str("ticker", ticker).Int("status", uerr.Status).Msg("alpaca bars request failed")
		return Failed(ticker, uerr)
	}

	return Success(barsToTable(ticker, bars))
}

func barsToTable(ticker string, bars []marketdata.Bar) *models.PriceTable {
	table := &models.PriceTable{Ticker: ticker, Columns: alpacaColumns}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })

	var last time.Time
	for _, b := range bars {
		day := time.Date(b.Timestamp.Year(), b.Timestamp.Month(), b.Timestamp.Day(), 0, 0, 0, 0, time.UTC)
		if !last.IsZero() && !day.After(last) {
			continue
		}
		last = day
		table.Rows = append(table.Rows, models.PriceRow{
			Date: day,
			Values: map[string]float64{
				"open":   b.Open,
				"high":   b.High,
				"low":    b.Low,
				"close":  b.Close,
				"volume": float64(b.Volume),
				"vwap":   nanIfZero(b.VWAP),
			},
			Text: map[string]string{"ticker": ticker},
		})
	}
	return table
}

func nanIfZero(v float64) float64 {
	if v == 0 {
		return math.NaN()
	}
	return v
}

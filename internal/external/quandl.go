package external

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const quandlName = "quandl"

type QuandlOptions struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	// Now is overridable in tests.
	Now func() time.Time
}

// QuandlClient queries the WIKI/PRICES datatable.
type QuandlClient struct {
	apiKey  string
	baseURL string
	client  *resty.Client
	now     func() time.Time
}

func NewQuandlClient(apiKey string, opts QuandlOptions) *QuandlClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &QuandlClient{
		apiKey:  apiKey,
		baseURL: opts.BaseURL,
		client:  client,
		now:     opts.Now,
	}
}

func (c *QuandlClient) Name() string { return quandlName }

func (c *QuandlClient) Fetch(ctx context.Context, ticker string) FetchResult {
	ticker = NormalizeTicker(ticker)
	start, end := Window(c.now())

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"date.gte": start.Format(dateLayout),
			"date.lt":  end.Format(dateLayout),
			"ticker":   ticker,
			"api_key":  c.apiKey,
		}).
		Get(c.baseURL)
	if err != nil {
		log.Error().Err(err).Str("ticker", ticker).Msg("quandl request failed")
		return Failed(ticker, &UpstreamError{Provider: quandlName, Err: err})
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		log.Warn().
			Int("status", resp.StatusCode()).
			Str("ticker", ticker).
			Msg("stock ticker invalid or not in the database")
		return Failed(ticker, &UpstreamError{Provider: quandlName, Status: resp.StatusCode()})
	}

	table, err := decodeDatatable(ticker, resp.Body())
	if err != nil {
		log.Error().Err(err).Str("ticker", ticker).Msg("quandl payload rejected")
		return Failed(ticker, &UpstreamError{
			Provider: quandlName,
			Status:   resp.StatusCode(),
			Err:      fmt.Errorf("decode: %w", err),
		})
	}

	log.Debug().Str("ticker", ticker).Int("rows", table.Len()).Dur("latency", resp.Time()).Msg("quandl fetch ok")
	return Success(table)
}

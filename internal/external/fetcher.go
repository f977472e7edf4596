package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kjannette/pricegraph/internal/models"
)

// LookbackDays is the fixed trailing window used for every query.
const LookbackDays = 730

const dateLayout = "2006-01-02"

// ErrMalformedPayload means the upstream answered but the body did not
// match the expected datatable shape.
var ErrMalformedPayload = errors.New("malformed upstream payload")

// UpstreamError is any failure to obtain a usable table from the provider.
// Status is the HTTP status, or 0 when no response was received.
type UpstreamError struct {
	Provider string
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s returned status %d: %v", e.Provider, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s returned status %d", e.Provider, e.Status)
	default:
		return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Outcome tags a FetchResult.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeEmpty
	OutcomeUpstreamError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return models.OutcomeSuccess
	case OutcomeEmpty:
		return models.OutcomeEmpty
	default:
		return models.OutcomeUpstreamError
	}
}

// FetchResult is exactly one of: Success (Table has rows), Empty (the
// provider answered with zero rows) or UpstreamError (Err is set).
type FetchResult struct {
	Outcome Outcome
	Ticker  string
	Table   *models.PriceTable
	Err     *UpstreamError
}

// Success wraps a decoded table; a table with no rows becomes Empty.
func Success(table *models.PriceTable) FetchResult {
	if table.Empty() {
		return Empty(table.Ticker)
	}
	return FetchResult{Outcome: OutcomeSuccess, Ticker: table.Ticker, Table: table}
}

// Empty means the provider answered with zero rows.
func Empty(ticker string) FetchResult {
	return FetchResult{Outcome: OutcomeEmpty, Ticker: ticker}
}

// Failed means no usable table came back.
func Failed(ticker string, err *UpstreamError) FetchResult {
	return FetchResult{Outcome: OutcomeUpstreamError, Ticker: ticker, Err: err}
}

// Status is the upstream HTTP status for failures, otherwise 200.
func (r FetchResult) Status() int {
	if r.Err != nil {
		return r.Err.Status
	}
	return http.StatusOK
}

// Fetcher loads the trailing price table for a ticker.
type Fetcher interface {
	Fetch(ctx context.Context, ticker string) FetchResult
	Name() string
}

// NormalizeTicker is the single place ticker case is decided.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Window returns the [start, end) range ending at now.
func Window(now time.Time) (start, end time.Time) {
	end = now
	start = now.AddDate(0, 0, -LookbackDays)
	return start, end
}

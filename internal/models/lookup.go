package models

import "time"

// Lookup outcomes as stored in history.
const (
	OutcomeSuccess       = "success"
	OutcomeEmpty         = "empty"
	OutcomeUpstreamError = "upstream_error"
	OutcomeBadRequest    = "bad_request"
)

// Lookup is one /pricegraph submission. Price data itself is never stored.
type Lookup struct {
	ID        string    `json:"id"`
	Ticker    string    `json:"ticker"`
	Fields    []string  `json:"fields"`
	Outcome   string    `json:"outcome"`
	Rows      int       `json:"rows"`
	Status    int       `json:"status,omitempty"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"createdAt"`
}

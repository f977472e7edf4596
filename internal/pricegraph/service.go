package pricegraph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kjannette/pricegraph/internal/chart"
	"github.com/kjannette/pricegraph/internal/external"
	"github.com/kjannette/pricegraph/internal/models"
	"github.com/kjannette/pricegraph/internal/recorder"
)

// Notifier receives upstream failure alerts.
type Notifier interface {
	Send(ctx context.Context, msg string)
}

// Result is the outcome of one lookup. Chart and Fragments are set only
// for OutcomeSuccess; Err only for OutcomeUpstreamError.
type Result struct {
	Query     Query
	Outcome   external.Outcome
	Rows      int
	Chart     *chart.Chart
	Fragments chart.Fragments
	Err       *external.UpstreamError
}

type Service struct {
	fetcher  external.Fetcher
	recorder recorder.Recorder
	notifier Notifier
	now      func() time.Time
}

func NewService(fetcher external.Fetcher, rec recorder.Recorder, notifier Notifier) *Service {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Service{
		fetcher:  fetcher,
		recorder: rec,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *Service) Provider() string { return s.fetcher.Name() }

func (s *Service) HistoryBackend() string { return s.recorder.Backend() }

// Lookup runs fetch → branch → build → render. Upstream failures and empty
// results come back as a Result, not an error; the error return is for
// selections the table cannot satisfy (*BadRequestError) and render faults.
func (s *Service) Lookup(ctx context.Context, q Query) (*Result, error) {
	fr := s.fetcher.Fetch(ctx, q.Ticker)
	res := &Result{Query: q, Outcome: fr.Outcome, Rows: fr.Table.Len(), Err: fr.Err}

	switch fr.Outcome {
	case external.OutcomeEmpty:
		s.record(ctx, q, models.OutcomeEmpty, 0, 0)
		return res, nil

	case external.OutcomeUpstreamError:
		s.record(ctx, q, models.OutcomeUpstreamError, 0, fr.Err.Status)
		s.alert(ctx, q, fr.Err)
		return res, nil
	}

	c, err := chart.Build(fr.Table, q.Fields, q.Ticker)
	if err != nil {
		s.record(ctx, q, models.OutcomeBadRequest, res.Rows, 0)
		switch {
		case errors.Is(err, chart.ErrUnknownColumn):
			return nil, badRequest("price_type", "That price type is not available for this ticker.")
		case errors.Is(err, chart.ErrTooManyFields):
			return nil, badRequest("price_type", msgTooManyFields)
		}
		return nil, fmt.Errorf("build chart: %w", err)
	}

	frag, err := chart.Render(c)
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}

	res.Chart = c
	res.Fragments = frag
	s.record(ctx, q, models.OutcomeSuccess, res.Rows, 0)
	return res, nil
}

// Recent lists the latest lookups, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.Lookup, error) {
	return s.recorder.Recent(ctx, limit)
}

func (s *Service) record(ctx context.Context, q Query, outcome string, rows, status int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	l := &models.Lookup{
		ID:        uuid.NewString(),
		Ticker:    q.Ticker,
		Fields:    q.Fields,
		Outcome:   outcome,
		Rows:      rows,
		Status:    status,
		Provider:  s.fetcher.Name(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.recorder.RecordLookup(ctx, l); err != nil {
		log.Warn().Err(err).Str("ticker", q.Ticker).Str("backend", s.recorder.Backend()).Msg("record lookup failed")
	}
}

func (s *Service) alert(ctx context.Context, q Query, uerr *external.UpstreamError) {
	if s.notifier == nil {
		return
	}
	msg := fmt.Sprintf("price lookup for %s failed: %v", q.Ticker, uerr)
	go s.notifier.Send(context.WithoutCancel(ctx), msg)
}

package recorder

import (
	"context"
	"time"

	"github.com/kjannette/pricegraph/internal/models"
)

// NoopRecorder is used when no history store is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordLookup(_ context.Context, _ *models.Lookup) error { return nil }

func (n *NoopRecorder) Recent(_ context.Context, _ int) ([]models.Lookup, error) { return nil, nil }

func (n *NoopRecorder) PruneBefore(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

func (n *NoopRecorder) Backend() string { return "none" }

package recorder

import (
	"context"
	"time"

	"github.com/kjannette/pricegraph/internal/models"
)

// Recorder keeps the lookup history. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordLookup(ctx context.Context, l *models.Lookup) error
	Recent(ctx context.Context, limit int) ([]models.Lookup, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Backend() string
}

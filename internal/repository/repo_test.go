package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kjannette/pricegraph/internal/models"
	"github.com/kjannette/pricegraph/internal/repository"
	"github.com/kjannette/pricegraph/internal/testutil"
)

// ---------- LookupRepo ----------

func TestLookupRepo(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := repository.NewLookupRepo(pool)
	ctx := context.Background()

	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	l := &models.Lookup{
		ID:        uuid.NewString(),
		Ticker:    "AAPL",
		Fields:    []string{"open", "close"},
		Outcome:   models.OutcomeSuccess,
		Rows:      503,
		Provider:  "quandl",
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.RecordLookup(ctx, l); err != nil {
		t.Fatalf("RecordLookup: %v", err)
	}

	// Recent
	recent, err := repo.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) == 0 {
		t.Fatal("expected at least one lookup")
	}
	found := false
	for _, r := range recent {
		if r.ID == l.ID {
			found = true
			if len(r.Fields) != 2 || r.Rows != 503 {
				t.Fatalf("round trip mismatch: %+v", r)
			}
		}
	}
	if !found {
		t.Fatalf("recorded lookup %s not in recent list", l.ID)
	}
	t.Logf("Recent: %d lookups", len(recent))

	// PruneBefore
	stale := &models.Lookup{
		ID:        uuid.NewString(),
		Ticker:    "IBM",
		Fields:    []string{"close"},
		Outcome:   models.OutcomeEmpty,
		Provider:  "quandl",
		CreatedAt: time.Now().AddDate(-5, 0, 0),
	}
	if err := repo.RecordLookup(ctx, stale); err != nil {
		t.Fatalf("RecordLookup(stale): %v", err)
	}
	n, err := repo.PruneBefore(ctx, time.Now().AddDate(-1, 0, 0))
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if n < 1 {
		t.Fatalf("expected stale lookup pruned, got %d", n)
	}
	t.Logf("Pruned %d lookups", n)
}

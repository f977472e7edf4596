package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/kjannette/pricegraph/internal/recorder"
)

type PruneConfig struct {
	Spec          string // six-field cron spec, e.g. "0 0 3 * * *"
	RetentionDays int
	Now           func() time.Time
}

// PruneScheduler deletes lookup history older than the retention window.
type PruneScheduler struct {
	cron *cron.Cron
	rec  recorder.Recorder
	cfg  PruneConfig

	mu      sync.Mutex
	running bool
}

func NewPruneScheduler(rec recorder.Recorder, cfg PruneConfig) (*PruneScheduler, error) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &PruneScheduler{
		cron: cron.New(cron.WithSeconds()),
		rec:  rec,
		cfg:  cfg,
	}
	if _, err := s.cron.AddFunc(cfg.Spec, s.tick); err != nil {
		return nil, fmt.Errorf("register prune task %q: %w", cfg.Spec, err)
	}
	return s, nil
}

func (s *PruneScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		log.Warn().Msg("prune scheduler already running")
		return
	}
	s.running = true
	s.cron.Start()
	log.Info().Str("spec", s.cfg.Spec).Int("retention_days", s.cfg.RetentionDays).Msg("prune scheduler started")
}

func (s *PruneScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	log.Info().Msg("prune scheduler stopped")
}

func (s *PruneScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// PruneNow runs one pass outside the schedule and returns the rows removed.
func (s *PruneScheduler) PruneNow(ctx context.Context) (int64, error) {
	cutoff := s.cfg.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	n, err := s.rec.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune %s history: %w", s.rec.Backend(), err)
	}
	log.Info().Int64("deleted", n).Time("cutoff", cutoff).Str("backend", s.rec.Backend()).Msg("lookup history pruned")
	return n, nil
}

func (s *PruneScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if _, err := s.PruneNow(ctx); err != nil {
		log.Error().Err(err).Msg("scheduled prune failed")
	}
}

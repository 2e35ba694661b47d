// Package maintenance runs periodic housekeeping on the local store.
package maintenance

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// PruneInterval is how often old cache entries are removed.
	PruneInterval = 24 * time.Hour

	// VisionCacheMaxAge is how long analysis results stay cached.
	VisionCacheMaxAge = 30 * 24 * time.Hour // 30 days
)

// Pruner deletes cached analysis results older than maxAge.
type Pruner interface {
	PruneVisionCache(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Service prunes the vision cache in the background.
type Service struct {
	pruner   Pruner
	interval time.Duration
	maxAge   time.Duration
}

// NewService creates a maintenance service with the default schedule.
func NewService(pruner Pruner) *Service {
	return &Service{
		pruner:   pruner,
		interval: PruneInterval,
		maxAge:   VisionCacheMaxAge,
	}
}

// Run prunes once at start and then on every tick. It blocks until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Msg("starting maintenance service")

	s.prune(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("maintenance service stopped")
			return
		case <-ticker.C:
			s.prune(ctx)
		}
	}
}

func (s *Service) prune(ctx context.Context) {
	removed, err := s.pruner.PruneVisionCache(ctx, s.maxAge)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("failed to prune vision cache")
		}
		return
	}
	if removed > 0 {
		log.Info().Int64("removed", removed).Msg("pruned vision cache")
	}
}

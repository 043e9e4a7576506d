package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/simonbarrel6/aakora/internal/domain/ports/repository"
	"github.com/simonbarrel6/aakora/internal/infra/metrics"
)

// SessionSweeper periodically drops sessions that have been idle too long.
type SessionSweeper struct {
	interval time.Duration
	idle     time.Duration
	store    repository.SessionSweeper
	log      *zerolog.Logger
}

func NewSessionSweeper(interval, idle time.Duration, store repository.SessionSweeper, logger *zerolog.Logger) *SessionSweeper {
	l := logger.With().Str("component", "SessionSweeper").Logger()
	return &SessionSweeper{
		interval: interval,
		idle:     idle,
		store:    store,
		log:      &l,
	}
}

func (w *SessionSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("idle", w.idle).Msg("Starting session sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping session sweeper")
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SessionSweeper) sweep(ctx context.Context) {
	n, err := w.store.Sweep(ctx, w.idle)
	if err != nil {
		w.log.Error().Err(err).Msg("session sweep failed")
		return
	}
	if n > 0 {
		metrics.AddSessionsExpired(n)
		w.log.Info().Int("count", n).Msg("idle sessions expired")
	}
}

// Package retention bounds the message log of every session.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/knowbot/internal/core"
	"github.com/sandevgo/knowbot/pkg/log"
)

const (
	DefaultKeep     = 100
	DefaultInterval = time.Hour
)

type MessageLog interface {
	ListSessions(ctx context.Context) ([]core.SessionSummary, error)
	TrimMessages(ctx context.Context, sessionID string, watermark int64, keep int) (int64, error)
}

type Sessions interface {
	MarkSwept(ctx context.Context, sessionID string) (core.SessionState, error)
}

type Report struct {
	Sessions int
	Deleted  int64
	Failed   int
}

type Sweeper struct {
	log      MessageLog
	sessions Sessions
	keep     int
	interval time.Duration
}

// NewSweeper keeps the newest keep messages per session. An interval of zero
// disables the background loop; Sweep can still be called directly.
func NewSweeper(messages MessageLog, sessions Sessions, keep int, interval time.Duration) *Sweeper {
	if keep < 0 {
		keep = DefaultKeep
	}
	return &Sweeper{
		log:      messages,
		sessions: sessions,
		keep:     keep,
		interval: interval,
	}
}

// Sweep trims every session once. The watermark for each session is the
// highest message id seen when the sweep starts, so messages written while it
// runs are never deleted.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	logger := log.FromCtx(ctx)

	sessions, err := s.log.ListSessions(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list sessions: %w", err)
	}

	report := Report{Sessions: len(sessions)}
	for _, sess := range sessions {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		deleted, err := s.log.TrimMessages(ctx, sess.SessionID, sess.MaxID, s.keep)
		if err != nil {
			report.Failed++
			logger.Error().Err(err).Str("session_id", sess.SessionID).Msg("failed to trim session")
			continue
		}
		report.Deleted += deleted

		if _, err := s.sessions.MarkSwept(ctx, sess.SessionID); err != nil {
			report.Failed++
			logger.Error().Err(err).Str("session_id", sess.SessionID).Msg("failed to stamp session")
			continue
		}

		if deleted > 0 {
			logger.Debug().Str("session_id", sess.SessionID).Int64("deleted", deleted).Msg("session trimmed")
		}
	}

	logger.Info().
		Int("sessions", report.Sessions).
		Int64("deleted", report.Deleted).
		Int("failed", report.Failed).
		Msg("retention sweep finished")

	if report.Failed > 0 {
		return report, fmt.Errorf("retention sweep: %d of %d sessions failed", report.Failed, report.Sessions)
	}
	return report, nil
}

func (s *Sweeper) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	if s.interval <= 0 {
		logger.Info().Msg("retention sweeper disabled")
		return nil
	}

	logger.Info().Dur("interval", s.interval).Int("keep", s.keep).Msg("starting retention sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				logger.Error().Err(err).Msg("retention sweep failed")
			}
		}
	}
}

func (s *Sweeper) Shutdown(ctx context.Context) error {
	return nil
}

// Package scheduler runs the background sweep over outstanding quotes.
// Expiry is enforced lazily on read; the sweep exists so quotes nobody
// reads still expire and release their held findings.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pyrosafe/fieldops/internal/clock"
	quotedomain "github.com/pyrosafe/fieldops/internal/quote/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler requires db, log, clock and quote engine")

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Quotes quotedomain.Engine
	Config Config `optional:"true"`
}

type Scheduler struct {
	db     *gorm.DB
	log    *zap.Logger
	cfg    Config
	clock  clock.Clock
	quotes quotedomain.Engine
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Quotes == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:     p.DB,
		log:    p.Log.Named("scheduler"),
		cfg:    p.Config.withDefaults(),
		clock:  p.Clock,
		quotes: p.Quotes,
	}, nil
}

// RunOnce sweeps one batch of quotes whose validity window has closed.
// Reading the quote through the engine applies the expiry transition and
// releases any held deficiencies in the same transaction.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var ids []snowflake.ID
	err := s.db.WithContext(ctx).
		Model(&quotedomain.Quote{}).
		Where("status IN ? AND expires_at IS NOT NULL AND expires_at <= ?",
			[]quotedomain.QuoteStatus{quotedomain.StatusSent, quotedomain.StatusViewed},
			s.clock.Now(),
		).
		Limit(s.cfg.BatchSize).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := s.quotes.GetByID(ctx, id.String()); err != nil {
			s.log.Warn("quote expiry sweep failed",
				zap.String("quote_id", id.String()),
				zap.Error(err),
			)
			continue
		}
		s.log.Info("quote expired by sweep", zap.String("quote_id", id.String()))
	}

	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.log.Error("sweep run failed", zap.Error(err))
			}
		}
	}
}

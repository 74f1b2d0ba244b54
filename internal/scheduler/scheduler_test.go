package scheduler_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/pyrosafe/fieldops/internal/clock"
	"github.com/pyrosafe/fieldops/internal/config"
	deficiencydomain "github.com/pyrosafe/fieldops/internal/deficiency/domain"
	deficiencyservice "github.com/pyrosafe/fieldops/internal/deficiency/service"
	"github.com/pyrosafe/fieldops/internal/events"
	quotedomain "github.com/pyrosafe/fieldops/internal/quote/domain"
	quoteservice "github.com/pyrosafe/fieldops/internal/quote/service"
	"github.com/pyrosafe/fieldops/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sweepFixture struct {
	sched  *scheduler.Scheduler
	engine quotedomain.Engine
	db     *gorm.DB
	clock  *clock.FakeClock
	node   *snowflake.Node
}

func setupSweep(t *testing.T) *sweepFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:scheduler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&quotedomain.Quote{},
		&quotedomain.QuoteItem{},
		&deficiencydomain.Deficiency{},
	))

	node, err := snowflake.NewNode(25)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2026, time.April, 6, 8, 0, 0, 0, time.UTC))
	bus := events.NewBus(zap.NewNop())

	ledger := deficiencyservice.NewLedger(deficiencyservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node,
	})
	engine := quoteservice.NewEngine(quoteservice.Params{
		DB: db, Log: zap.NewNop(), Clock: fakeClock, GenID: node,
		Cfg: config.Config{
			DefaultCurrency: "USD",
			QuoteValidDays:  30,
		},
		Pricing: config.NewStaticPricingPolicyHolder(config.DefaultPricingPolicy()),
		Ledger:  ledger,
		Bus:     bus,
	})

	sched, err := scheduler.New(scheduler.Params{
		DB: db, Log: zap.NewNop(), Clock: fakeClock, Quotes: engine,
	})
	require.NoError(t, err)

	return &sweepFixture{
		sched:  sched,
		engine: engine,
		db:     db,
		clock:  fakeClock,
		node:   node,
	}
}

func (f *sweepFixture) sentQuoteWithFinding(t *testing.T) (quotedomain.Quote, deficiencydomain.Deficiency) {
	t.Helper()
	ctx := context.Background()

	low := int64(20000)
	finding := deficiencydomain.Deficiency{
		ID:               f.node.Generate(),
		InspectionID:     f.node.Generate(),
		CustomerID:       f.node.Generate(),
		Category:         "sprinkler_head",
		Severity:         deficiencydomain.SeverityMinor,
		Status:           deficiencydomain.StatusOpen,
		EstimatedCostLow: &low,
	}
	require.NoError(t, f.db.Create(&finding).Error)

	created, err := f.engine.FromDeficiencies(ctx, quotedomain.FromDeficienciesRequest{
		DeficiencyIDs: []string{finding.ID.String()},
	})
	require.NoError(t, err)

	sent, err := f.engine.Transition(ctx, created.Quote.ID.String(), quotedomain.EventSend)
	require.NoError(t, err)
	require.NotNil(t, sent.ExpiresAt)

	return sent, finding
}

func TestSweepExpiresOverdueQuotes(t *testing.T) {
	f := setupSweep(t)
	ctx := context.Background()

	quote, finding := f.sentQuoteWithFinding(t)

	// Still inside the validity window, nothing to do.
	require.NoError(t, f.sched.RunOnce(ctx))
	var untouched quotedomain.Quote
	require.NoError(t, f.db.First(&untouched, "id = ?", quote.ID).Error)
	assert.Equal(t, quotedomain.StatusSent, untouched.Status)

	f.clock.Advance(31 * 24 * time.Hour)

	require.NoError(t, f.sched.RunOnce(ctx))

	var expired quotedomain.Quote
	require.NoError(t, f.db.First(&expired, "id = ?", quote.ID).Error)
	assert.Equal(t, quotedomain.StatusExpired, expired.Status)

	var released deficiencydomain.Deficiency
	require.NoError(t, f.db.First(&released, "id = ?", finding.ID).Error)
	assert.Equal(t, deficiencydomain.StatusOpen, released.Status)
}

func TestSweepSkipsDraftAndTerminalQuotes(t *testing.T) {
	f := setupSweep(t)
	ctx := context.Background()

	draft, err := f.engine.Create(ctx, quotedomain.CreateQuoteRequest{
		CustomerID: f.node.Generate().String(),
		LineItems: []quotedomain.LineItemRequest{
			{Description: "Panel battery swap", ItemType: quotedomain.ItemTypeEquipment, Quantity: 2, UnitPrice: 4500},
		},
	})
	require.NoError(t, err)

	accepted, _ := f.sentQuoteWithFinding(t)
	_, err = f.engine.Transition(ctx, accepted.ID.String(), quotedomain.EventAccept)
	require.NoError(t, err)

	f.clock.Advance(60 * 24 * time.Hour)
	require.NoError(t, f.sched.RunOnce(ctx))

	var reloadedDraft quotedomain.Quote
	require.NoError(t, f.db.First(&reloadedDraft, "id = ?", draft.Quote.ID).Error)
	assert.Equal(t, quotedomain.StatusDraft, reloadedDraft.Status)

	var reloadedAccepted quotedomain.Quote
	require.NoError(t, f.db.First(&reloadedAccepted, "id = ?", accepted.ID).Error)
	assert.Equal(t, quotedomain.StatusAccepted, reloadedAccepted.Status)
}

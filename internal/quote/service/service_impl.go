package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/pyrosafe/fieldops/internal/clock"
	"github.com/pyrosafe/fieldops/internal/config"
	deficiencydomain "github.com/pyrosafe/fieldops/internal/deficiency/domain"
	"github.com/pyrosafe/fieldops/internal/events"
	"github.com/pyrosafe/fieldops/internal/money"
	quotedomain "github.com/pyrosafe/fieldops/internal/quote/domain"
	"github.com/pyrosafe/fieldops/internal/statemachine"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	GenID   *snowflake.Node
	Cfg     config.Config
	Pricing *config.PricingPolicyHolder
	Ledger  deficiencydomain.Ledger
	Bus     *events.Bus
}

type Engine struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	genID   *snowflake.Node
	cfg     config.Config
	pricing *config.PricingPolicyHolder
	ledger  deficiencydomain.Ledger
	bus     *events.Bus
}

func NewEngine(p Params) quotedomain.Engine {
	return &Engine{
		db:      p.DB,
		log:     p.Log.Named("quote.engine"),
		clock:   p.Clock,
		genID:   p.GenID,
		cfg:     p.Cfg,
		pricing: p.Pricing,
		ledger:  p.Ledger,
		bus:     p.Bus,
	}
}

func (e *Engine) Create(ctx context.Context, req quotedomain.CreateQuoteRequest) (quotedomain.QuoteWithItems, error) {
	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil {
		return quotedomain.QuoteWithItems{}, quotedomain.ErrInvalidCustomer
	}

	items := make([]quotedomain.QuoteItem, 0, len(req.LineItems))
	for i, line := range req.LineItems {
		item, err := e.buildItem(line, i)
		if err != nil {
			return quotedomain.QuoteWithItems{}, err
		}
		items = append(items, item)
	}

	quote := quotedomain.Quote{
		ID:              e.genID.Generate(),
		CustomerID:      customerID,
		Status:          quotedomain.StatusDraft,
		Currency:        e.cfg.DefaultCurrency,
		TaxRateBps:      int64(req.TaxRate),
		DiscountRateBps: int64(req.DiscountRate),
	}
	if siteID := strings.TrimSpace(req.SiteID); siteID != "" {
		parsed, err := snowflake.ParseString(siteID)
		if err != nil {
			return quotedomain.QuoteWithItems{}, quotedomain.ErrInvalidCustomer
		}
		quote.SiteID = &parsed
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := e.nextQuoteNumber(ctx, tx)
		if err != nil {
			return err
		}
		quote.QuoteNumber = number

		if err := tx.Create(&quote).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].QuoteID = quote.ID
			if err := tx.Create(&items[i]).Error; err != nil {
				return err
			}
		}
		return e.recompute(ctx, tx, &quote)
	})
	if err != nil {
		return quotedomain.QuoteWithItems{}, err
	}

	return quotedomain.QuoteWithItems{Quote: quote, Items: items}, nil
}

// FromDeficiencies builds one service line per selected deficiency and
// atomically marks the batch quoted. Either every deficiency transitions
// with the new quote or the whole operation fails.
func (e *Engine) FromDeficiencies(ctx context.Context, req quotedomain.FromDeficienciesRequest) (quotedomain.QuoteWithItems, error) {
	if len(req.DeficiencyIDs) == 0 {
		return quotedomain.QuoteWithItems{}, deficiencydomain.ErrNotFound
	}

	ids := make([]snowflake.ID, 0, len(req.DeficiencyIDs))
	for _, raw := range req.DeficiencyIDs {
		parsed, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil {
			return quotedomain.QuoteWithItems{}, deficiencydomain.ErrNotFound
		}
		ids = append(ids, parsed)
	}

	selected, err := e.ledger.Select(ctx, ids)
	if err != nil {
		return quotedomain.QuoteWithItems{}, err
	}

	policy := e.pricing.Get()
	quote := quotedomain.Quote{
		ID:         e.genID.Generate(),
		CustomerID: selected[0].CustomerID,
		Status:     quotedomain.StatusDraft,
		Currency:   e.cfg.DefaultCurrency,
		TaxRateBps: int64(req.TaxRate),
	}
	if req.DiscountRate > 0 {
		quote.DiscountRateBps = int64(req.DiscountRate)
	}

	items := make([]quotedomain.QuoteItem, 0, len(selected))
	for i, deficiency := range selected {
		if deficiency.CustomerID != quote.CustomerID {
			return quotedomain.QuoteWithItems{}, quotedomain.ErrInvalidCustomer
		}
		unitPrice := priceDeficiency(deficiency, policy)
		deficiencyID := deficiency.ID
		items = append(items, quotedomain.QuoteItem{
			ID:           e.genID.Generate(),
			QuoteID:      quote.ID,
			DeficiencyID: &deficiencyID,
			Description:  deficiencyDescription(deficiency),
			ItemType:     quotedomain.ItemTypeService,
			Quantity:     1,
			UnitPrice:    int64(unitPrice),
			Amount:       int64(unitPrice),
			Position:     i,
		})
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := e.nextQuoteNumber(ctx, tx)
		if err != nil {
			return err
		}
		quote.QuoteNumber = number

		if err := tx.Create(&quote).Error; err != nil {
			return err
		}
		for i := range items {
			if err := tx.Create(&items[i]).Error; err != nil {
				return err
			}
		}
		if err := e.ledger.MarkQuoted(ctx, tx, ids, quote.ID); err != nil {
			return err
		}
		return e.recompute(ctx, tx, &quote)
	})
	if err != nil {
		return quotedomain.QuoteWithItems{}, err
	}

	return quotedomain.QuoteWithItems{Quote: quote, Items: items}, nil
}

func (e *Engine) GetByID(ctx context.Context, id string) (quotedomain.QuoteWithItems, error) {
	quote, err := e.loadQuote(ctx, id)
	if err != nil {
		return quotedomain.QuoteWithItems{}, err
	}

	quote, err = e.maybeExpire(ctx, quote)
	if err != nil {
		return quotedomain.QuoteWithItems{}, err
	}

	items, err := e.loadItems(ctx, quote.ID)
	if err != nil {
		return quotedomain.QuoteWithItems{}, err
	}
	return quotedomain.QuoteWithItems{Quote: quote, Items: items}, nil
}

func (e *Engine) List(ctx context.Context, customerID string) ([]quotedomain.Quote, error) {
	filter := &quotedomain.Quote{}
	if trimmed := strings.TrimSpace(customerID); trimmed != "" {
		parsed, err := snowflake.ParseString(trimmed)
		if err != nil {
			return nil, quotedomain.ErrInvalidCustomer
		}
		filter.CustomerID = parsed
	}

	var quotes []quotedomain.Quote
	if err := e.db.WithContext(ctx).
		Where(filter).
		Order("created_at DESC").
		Find(&quotes).Error; err != nil {
		return nil, err
	}
	return quotes, nil
}

func (e *Engine) AddLineItem(ctx context.Context, id string, line quotedomain.LineItemRequest) (quotedomain.QuoteWithItems, error) {
	return e.mutateItems(ctx, id, func(tx *gorm.DB, quote *quotedomain.Quote, items []quotedomain.QuoteItem) error {
		item, err := e.buildItem(line, len(items))
		if err != nil {
			return err
		}
		item.QuoteID = quote.ID
		return tx.Create(&item).Error
	})
}

func (e *Engine) UpdateLineItem(ctx context.Context, id, itemID string, line quotedomain.LineItemRequest) (quotedomain.QuoteWithItems, error) {
	parsedItemID, err := snowflake.ParseString(strings.TrimSpace(itemID))
	if err != nil {
		return quotedomain.QuoteWithItems{}, quotedomain.ErrNotFound
	}

	return e.mutateItems(ctx, id, func(tx *gorm.DB, quote *quotedomain.Quote, items []quotedomain.QuoteItem) error {
		updated, err := e.buildItem(line, 0)
		if err != nil {
			return err
		}
		res := tx.Model(&quotedomain.QuoteItem{}).
			Where("id = ? AND quote_id = ?", parsedItemID, quote.ID).
			Updates(map[string]any{
				"description": updated.Description,
				"item_type":   updated.ItemType,
				"quantity":    updated.Quantity,
				"unit_price":  updated.UnitPrice,
				"amount":      updated.Amount,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return quotedomain.ErrNotFound
		}
		return nil
	})
}

func (e *Engine) RemoveLineItem(ctx context.Context, id, itemID string) (quotedomain.QuoteWithItems, error) {
	parsedItemID, err := snowflake.ParseString(strings.TrimSpace(itemID))
	if err != nil {
		return quotedomain.QuoteWithItems{}, quotedomain.ErrNotFound
	}

	return e.mutateItems(ctx, id, func(tx *gorm.DB, quote *quotedomain.Quote, items []quotedomain.QuoteItem) error {
		res := tx.Where("id = ? AND quote_id = ?", parsedItemID, quote.ID).
			Delete(&quotedomain.QuoteItem{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return quotedomain.ErrNotFound
		}
		return nil
	})
}

// Transition applies a lifecycle event. Declining or expiring a quote
// releases every deficiency it held; acceptance publishes a fact for the
// conversion coordinator after the state change commits.
func (e *Engine) Transition(ctx context.Context, id string, event statemachine.Event) (quotedomain.Quote, error) {
	quote, err := e.loadQuote(ctx, id)
	if err != nil {
		return quotedomain.Quote{}, err
	}

	quote, err = e.maybeExpire(ctx, quote)
	if err != nil {
		return quotedomain.Quote{}, err
	}

	next, err := quotedomain.Lifecycle().Apply(statemachine.State(quote.Status), event)
	if err != nil {
		return quotedomain.Quote{}, err
	}

	now := e.clock.Now()
	updates := map[string]any{
		"status":     string(next),
		"updated_at": now,
	}
	if event == quotedomain.EventSend {
		updates["sent_at"] = now
		if quote.ExpiresAt == nil {
			updates["expires_at"] = now.AddDate(0, 0, e.cfg.QuoteValidDays)
		}
	}
	if event == quotedomain.EventAccept {
		updates["accepted_at"] = now
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&quotedomain.Quote{}).
			Where("id = ? AND status = ?", quote.ID, quote.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return quotedomain.ErrConcurrentModification
		}
		if event == quotedomain.EventDecline || event == quotedomain.EventExpire {
			return e.ledger.Release(ctx, tx, quote.ID)
		}
		return nil
	})
	if err != nil {
		return quotedomain.Quote{}, err
	}

	switch event {
	case quotedomain.EventSend:
		e.bus.Publish(ctx, events.TopicQuoteSent, events.QuoteSent{QuoteID: quote.ID, CustomerID: quote.CustomerID})
	case quotedomain.EventAccept:
		e.bus.Publish(ctx, events.TopicQuoteAccepted, events.QuoteAccepted{QuoteID: quote.ID, CustomerID: quote.CustomerID})
	}

	return e.loadQuote(ctx, id)
}

func (e *Engine) mutateItems(ctx context.Context, id string, mutate func(tx *gorm.DB, quote *quotedomain.Quote, items []quotedomain.QuoteItem) error) (quotedomain.QuoteWithItems, error) {
	quote, err := e.loadQuote(ctx, id)
	if err != nil {
		return quotedomain.QuoteWithItems{}, err
	}
	if quote.Status != quotedomain.StatusDraft {
		return quotedomain.QuoteWithItems{}, quotedomain.ErrQuoteLocked
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := e.loadItemsTx(ctx, tx, quote.ID)
		if err != nil {
			return err
		}
		if err := mutate(tx, &quote, items); err != nil {
			return err
		}
		return e.recompute(ctx, tx, &quote)
	})
	if err != nil {
		return quotedomain.QuoteWithItems{}, err
	}

	return e.GetByID(ctx, id)
}

// recompute derives subtotal, discount, tax and total from the quote's
// line items, each rate applied in a single rounding step:
// discount over subtotal, tax over the discounted base.
func (e *Engine) recompute(ctx context.Context, tx *gorm.DB, quote *quotedomain.Quote) error {
	items, err := e.loadItemsTx(ctx, tx, quote.ID)
	if err != nil {
		return err
	}

	amounts := make([]money.Money, 0, len(items))
	for _, item := range items {
		amounts = append(amounts, money.Money(item.Amount))
	}

	subtotal := money.Sum(amounts)
	discount := money.PercentageOf(subtotal, money.Bps(quote.DiscountRateBps))
	taxable := money.Sub(subtotal, discount)
	tax := money.PercentageOf(taxable, money.Bps(quote.TaxRateBps))
	total := money.Add(taxable, tax)

	quote.SubtotalAmount = int64(subtotal)
	quote.DiscountAmount = int64(discount)
	quote.TaxAmount = int64(tax)
	quote.TotalAmount = int64(total)

	return tx.Model(&quotedomain.Quote{}).
		Where("id = ?", quote.ID).
		Updates(map[string]any{
			"subtotal_amount": quote.SubtotalAmount,
			"discount_amount": quote.DiscountAmount,
			"tax_amount":      quote.TaxAmount,
			"total_amount":    quote.TotalAmount,
			"updated_at":      e.clock.Now(),
		}).Error
}

// maybeExpire lazily applies the expire transition when expires_at has
// passed. There is no background scheduler; expiry takes effect on the
// next read or transition attempt.
func (e *Engine) maybeExpire(ctx context.Context, quote quotedomain.Quote) (quotedomain.Quote, error) {
	if quote.ExpiresAt == nil || !quote.ExpiresAt.Before(e.clock.Now()) {
		return quote, nil
	}
	if quote.Status != quotedomain.StatusSent && quote.Status != quotedomain.StatusViewed {
		return quote, nil
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&quotedomain.Quote{}).
			Where("id = ? AND status = ?", quote.ID, quote.Status).
			Updates(map[string]any{
				"status":     string(quotedomain.StatusExpired),
				"updated_at": e.clock.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another writer got there first; the reload below reflects it.
			return nil
		}
		return e.ledger.Release(ctx, tx, quote.ID)
	})
	if err != nil {
		return quotedomain.Quote{}, err
	}

	e.log.Info("quote expired", zap.String("quote_id", quote.ID.String()))
	return e.loadQuoteByID(ctx, quote.ID)
}

func (e *Engine) buildItem(line quotedomain.LineItemRequest, position int) (quotedomain.QuoteItem, error) {
	if !quotedomain.ValidItemType(line.ItemType) {
		return quotedomain.QuoteItem{}, quotedomain.ErrInvalidItemType
	}
	amount, err := money.LineTotal(line.Quantity, money.Money(line.UnitPrice))
	if err != nil {
		return quotedomain.QuoteItem{}, err
	}

	return quotedomain.QuoteItem{
		ID:          e.genID.Generate(),
		Description: strings.TrimSpace(line.Description),
		ItemType:    line.ItemType,
		Quantity:    line.Quantity,
		UnitPrice:   line.UnitPrice,
		Amount:      int64(amount),
		Position:    position,
	}, nil
}

func (e *Engine) loadQuote(ctx context.Context, id string) (quotedomain.Quote, error) {
	quoteID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return quotedomain.Quote{}, quotedomain.ErrNotFound
	}
	return e.loadQuoteByID(ctx, quoteID)
}

func (e *Engine) loadQuoteByID(ctx context.Context, id snowflake.ID) (quotedomain.Quote, error) {
	var quote quotedomain.Quote
	err := e.db.WithContext(ctx).First(&quote, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return quotedomain.Quote{}, quotedomain.ErrNotFound
		}
		return quotedomain.Quote{}, err
	}
	return quote, nil
}

func (e *Engine) loadItems(ctx context.Context, quoteID snowflake.ID) ([]quotedomain.QuoteItem, error) {
	return e.loadItemsTx(ctx, e.db, quoteID)
}

func (e *Engine) loadItemsTx(ctx context.Context, tx *gorm.DB, quoteID snowflake.ID) ([]quotedomain.QuoteItem, error) {
	var items []quotedomain.QuoteItem
	err := tx.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Order("position ASC, created_at ASC").
		Find(&items).Error
	return items, err
}

func (e *Engine) nextQuoteNumber(ctx context.Context, tx *gorm.DB) (int64, error) {
	var next int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(quote_number), 0) + 1 FROM quotes`,
	).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

// priceDeficiency resolves the unit price for a generated line: midpoint
// of the estimated range by default, low bound under the low strategy,
// per-severity default when no estimate was recorded.
func priceDeficiency(deficiency deficiencydomain.Deficiency, policy config.PricingPolicy) money.Money {
	low := deficiency.EstimatedCostLow
	high := deficiency.EstimatedCostHigh

	switch {
	case policy.Strategy == config.PricingStrategyLow && low != nil:
		return money.Money(*low)
	case low != nil && high != nil:
		return money.Money((*low + *high) / 2)
	case low != nil:
		return money.Money(*low)
	case high != nil:
		return money.Money(*high)
	default:
		return money.Money(policy.SeverityDefaults[string(deficiency.Severity)])
	}
}

func deficiencyDescription(deficiency deficiencydomain.Deficiency) string {
	if deficiency.Description == "" {
		return fmt.Sprintf("Corrective work: %s", deficiency.Category)
	}
	return fmt.Sprintf("Corrective work: %s (%s)", deficiency.Category, deficiency.Description)
}

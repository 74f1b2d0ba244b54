// Package events is a minimal in-process publish/subscribe bus. State
// transitions commit to the database first and publish afterwards; handler
// failures are logged and never roll back the transition.
package events

import (
	"context"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Topic string

const (
	TopicQuoteSent     Topic = "quote.sent"
	TopicQuoteAccepted Topic = "quote.accepted"
	TopicJobCompleted  Topic = "job.completed"
	TopicInvoiceSent   Topic = "invoice.sent"
	TopicInvoicePaid   Topic = "invoice.paid"
)

// Handler consumes one published event. Delivery is at-least-once with no
// ordering guarantee relative to other topics.
type Handler func(ctx context.Context, payload any)

type Bus struct {
	log *zap.Logger

	mu       sync.RWMutex
	handlers map[Topic][]Handler
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{
		log:      log.Named("events.bus"),
		handlers: make(map[Topic][]Handler),
	}
}

func (b *Bus) Subscribe(topic Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish invokes every subscriber synchronously, recovering panics so a
// misbehaving side effect cannot take down the request that triggered it.
func (b *Bus) Publish(ctx context.Context, topic Topic, payload any) {
	b.mu.RLock()
	handlers := b.handlers[topic]
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Warn("event handler panicked",
						zap.String("topic", string(topic)),
						zap.Any("panic", r),
					)
				}
			}()
			h(ctx, payload)
		}()
	}
}

var Module = fx.Module("events",
	fx.Provide(NewBus),
)

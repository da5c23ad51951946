// Package memory provides an event publisher that keeps events in process.
package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"artion-backend/application/ports"
	"artion-backend/domain/events"
)

// Publisher records published events and logs them
type Publisher struct {
	mu     sync.RWMutex
	events []events.DomainEvent
	limit  int
	logger *zap.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher that keeps at most limit events.
// A limit of zero keeps everything.
func NewPublisher(limit int, logger *zap.Logger) *Publisher {
	return &Publisher{limit: limit, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

func (p *Publisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, event := range batch {
		p.logger.Debug("Event published",
			zap.String("event_type", event.GetEventType()),
			zap.String("aggregate_id", event.GetAggregateID()))
		p.events = append(p.events, event)
	}
	if p.limit > 0 && len(p.events) > p.limit {
		p.events = append([]events.DomainEvent(nil), p.events[len(p.events)-p.limit:]...)
	}
	return nil
}

// Events returns a copy of the retained events, oldest first
func (p *Publisher) Events() []events.DomainEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]events.DomainEvent(nil), p.events...)
}

// OfType returns retained events with the given type
func (p *Publisher) OfType(eventType string) []events.DomainEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var matched []events.DomainEvent
	for _, e := range p.events {
		if e.GetEventType() == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

// Package events publishes ledger events for downstream consumers such as the emailer.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/rent-ledger/internal/ledger"
	"github.com/dvloznov/rent-ledger/internal/term"
)

// TypeRentSettled is the event type of RentSettled.
const TypeRentSettled = "rent.settled"

// RentSettled is emitted after a settlement was persisted.
type RentSettled struct {
	EventID     string          `json:"event_id"`
	Type        string          `json:"type"`
	TenantID    string          `json:"tenant_id"`
	Term        term.Term       `json:"term"`
	Payment     decimal.Decimal `json:"payment"`
	NewBalance  decimal.Decimal `json:"new_balance"`
	Status      ledger.Status   `json:"status"`
	Source      string          `json:"source"`
	OccurredAt  time.Time       `json:"occurred_at"`
	PaymentRefs []string        `json:"payment_refs,omitempty"`
}

// Publisher delivers ledger events.
type Publisher interface {
	PublishRentSettled(ctx context.Context, event RentSettled) error
	Close() error
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	log zerolog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) PublishRentSettled(ctx context.Context, event RentSettled) error {
	p.log.Info().
		Str("event_id", event.EventID).
		Str("tenant_id", event.TenantID).
		Stringer("term", event.Term).
		Str("status", string(event.Status)).
		Str("new_balance", event.NewBalance.String()).
		Msg(TypeRentSettled)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []RentSettled
}

func (r *Recorder) PublishRentSettled(ctx context.Context, event RentSettled) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []RentSettled {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RentSettled(nil), r.events...)
}

var (
	_ Publisher = (*LogPublisher)(nil)
	_ Publisher = (*Recorder)(nil)
	_ Publisher = (*RabbitPublisher)(nil)
)

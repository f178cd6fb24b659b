package events

import (
	"context"
	"sync"
	"time"

	"refwallet/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange   EventType = "balance_change"
	EventTypeCodeAssigned    EventType = "code_assigned"
	EventTypeReferralApplied EventType = "referral_applied"
	EventTypeCreditRedeemed  EventType = "credit_redeemed"
)

// AllEventTypes lists every event type emitted by the ledger
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeBalanceChange,
		EventTypeCodeAssigned,
		EventTypeReferralApplied,
		EventTypeCreditRedeemed,
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a wallet balance change that occurred
type BalanceChangeEvent struct {
	Email           string                 `json:"email"`
	OldBalance      decimal.Decimal        `json:"old_balance"`
	NewBalance      decimal.Decimal        `json:"new_balance"`
	TransactionType models.TransactionType `json:"transaction_type"`
	ChangeAmount    decimal.Decimal        `json:"change_amount"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// CodeAssignedEvent represents a referral code being issued to a user
type CodeAssignedEvent struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (e CodeAssignedEvent) Type() EventType {
	return EventTypeCodeAssigned
}

// ReferralAppliedEvent represents a referral code used to pay competition fees
type ReferralAppliedEvent struct {
	ReferrerEmail string          `json:"referrer_email"`
	ReferredEmail string          `json:"referred_email"`
	Code          string          `json:"code"`
	Sport         string          `json:"sport"`
	FeeAmount     decimal.Decimal `json:"fee_amount"`
	CreditAmount  decimal.Decimal `json:"credit_amount"`
	UnlockAt      time.Time       `json:"unlock_at"`
}

func (e ReferralAppliedEvent) Type() EventType {
	return EventTypeReferralApplied
}

// CreditRedeemedEvent represents matured credit spent from a wallet
type CreditRedeemedEvent struct {
	Email      string          `json:"email"`
	Amount     decimal.Decimal `json:"amount"`
	Sport      string          `json:"sport"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

func (e CreditRedeemedEvent) Type() EventType {
	return EventTypeCreditRedeemed
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")
}

// SubscribeAll adds a handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes() {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers on main event bus")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds pending events coupled to a unit of work.
// Flushes to the underlying event bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// Flush is called after a successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus to main event bus")

	// Handlers outlive the request, so they must not inherit its deadline
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard is called after a DB rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}

// Pending returns the number of events waiting for Flush
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// Package events publishes domain events after their transaction commits.
package events

import (
	"context"
	"sync"
	"time"
)

// Event types.
const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	StockAdjusted      = "inventory.adjusted"
)

// Event is one committed change. Amounts are decimal strings.
type Event struct {
	Type      string    `json:"type"`
	At        time.Time `json:"at"`
	OrderID   int64     `json:"order_id,omitempty"`
	OrderCode string    `json:"order_code,omitempty"`
	Status    string    `json:"status,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	ProductID int64     `json:"product_id,omitempty"`
	Quantity  int64     `json:"quantity,omitempty"`
	Direction string    `json:"direction,omitempty"`
}

// Publisher delivers events. Publish failures never undo the committed change.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

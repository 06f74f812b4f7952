package orders

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-ecommerce-saga/internal/stock"
)

// MemoryStore is an in-process Repository for local runs and tests.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	orders []Order
	outbox []OutboxEntry
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Create(_ context.Context, o *Order, events []stock.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	o.ID = s.nextID
	s.orders = append(s.orders, o.clone())
	for i := range events {
		events[i].OrderID = o.ID
		s.outbox = append(s.outbox, OutboxEntry{Event: events[i], Status: OutboxPending, CreatedAt: o.PlacedAt})
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			return o.clone(), nil
		}
	}
	return Order{}, ErrOrderNotFound
}

func (s *MemoryStore) List(_ context.Context) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o.clone())
	}
	return out, nil
}

func (s *MemoryStore) Pending(_ context.Context, createdBefore time.Time, limit int) ([]OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []OutboxEntry
	for _, e := range s.outbox {
		if len(out) == limit {
			break
		}
		if e.Status == OutboxPending && !e.CreatedAt.After(createdBefore) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkPublished(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].Event.MessageID == messageID && CanTransition(s.outbox[i].Status, OutboxPublished) {
			s.outbox[i].Status = OutboxPublished
		}
	}
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, messageID string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].Event.MessageID == messageID && s.outbox[i].Status == OutboxPending {
			s.outbox[i].Attempts++
			s.outbox[i].LastError = cause.Error()
		}
	}
	return nil
}

// Outbox returns a copy of every outbox entry in write order.
func (s *MemoryStore) Outbox() []OutboxEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OutboxEntry(nil), s.outbox...)
}

package inventory

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store for local runs and tests.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]Product
}

func NewMemoryStore(seed ...Product) *MemoryStore {
	s := &MemoryStore{items: map[int64]Product{}}
	for _, p := range seed {
		if p.ID == 0 {
			s.nextID++
			p.ID = s.nextID
		} else if p.ID > s.nextID {
			s.nextID = p.ID
		}
		s.items[p.ID] = p
	}
	return s
}

func (s *MemoryStore) List(_ context.Context) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Product, 0, len(s.items))
	for _, p := range s.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (s *MemoryStore) Create(_ context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	s.items[p.ID] = p
	return p, nil
}

func (s *MemoryStore) Update(_ context.Context, p Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[p.ID]; !ok {
		return ErrProductNotFound
	}
	s.items[p.ID] = p
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrProductNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) ApplyDelta(_ context.Context, id int64, delta int) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	p.Quantity += delta
	s.items[id] = p
	return p, nil
}

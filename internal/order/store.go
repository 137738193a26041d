package order

import (
	"context"
	"sync"

	"github.com/cinetick/cinetick/internal/domain"
)

// Store persists the locally tracked orders. Implementations must be safe for
// concurrent use.
type Store interface {
	Save(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	// FindLive returns the non-terminal order for the account/cinema pair,
	// or nil when none exists.
	FindLive(ctx context.Context, accountRef, cinemaID string) (*domain.Order, error)
}

// MemoryStore is the default in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: map[string]domain.Order{}}
}

func (s *MemoryStore) Save(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	s.orders[o.OrderID] = *o
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := o
	return &cp, nil
}

func (s *MemoryStore) FindLive(_ context.Context, accountRef, cinemaID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.AccountRef == accountRef && o.CinemaID == cinemaID && o.IsLive() {
			cp := o
			return &cp, nil
		}
	}
	return nil, nil
}

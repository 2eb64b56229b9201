package market

import (
	"context"
	"sync"
)

// Store is an in-memory cache of the latest quote per symbol.
type Store struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewStore() *Store {
	return &Store{quotes: make(map[string]Quote)}
}

func (s *Store) Set(q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.Symbol] = q
}

func (s *Store) Get(symbol string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	if !ok {
		return Quote{}, ErrNoQuote
	}
	return q, nil
}

// Quote implements Source.
func (s *Store) Quote(_ context.Context, symbol string) (Quote, error) {
	return s.Get(symbol)
}

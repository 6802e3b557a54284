// internal/adapters/memory/ledger.go
package memory

import (
	"context"
	"sync"

	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/core/ports"
)

// LedgerStore keeps ledgers in process memory. Used by the CLI, tests and
// single-instance deployments.
type LedgerStore struct {
	mu      sync.RWMutex
	ledgers map[string]*domain.Ledger
}

var _ ports.LedgerStore = (*LedgerStore)(nil)

// NewLedgerStore creates an empty store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{ledgers: make(map[string]*domain.Ledger)}
}

func (s *LedgerStore) Load(_ context.Context, customerID string) (*domain.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.ledgers[customerID]; ok {
		return l.Clone(), nil
	}
	return domain.NewLedger(), nil
}

func (s *LedgerStore) Save(_ context.Context, customerID string, ledger *domain.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ledger.Empty() {
		delete(s.ledgers, customerID)
		return nil
	}
	s.ledgers[customerID] = ledger.Clone()
	return nil
}

func (s *LedgerStore) Delete(_ context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ledgers, customerID)
	return nil
}

// Len returns the number of customers with a stored ledger.
func (s *LedgerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ledgers)
}

// Ping always succeeds.
func (s *LedgerStore) Ping(context.Context) error {
	return nil
}

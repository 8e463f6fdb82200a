package risk

import (
	"context"
	"sync"

	"github.com/solsentry/solsentry/internal/analysis"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu          sync.RWMutex
	assessments map[string][]*Assessment // wallet → assessments
}

// NewMemoryStore creates an in-memory assessment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assessments: make(map[string][]*Assessment),
	}
}

func (s *MemoryStore) Record(ctx context.Context, a *Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	cp.Threats = append([]analysis.Threat(nil), a.Threats...)
	s.assessments[a.Wallet] = append(s.assessments[a.Wallet], &cp)
	return nil
}

func (s *MemoryStore) ListByWallet(ctx context.Context, wallet string, limit int) ([]*Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.assessments[wallet]
	if len(all) == 0 {
		return nil, nil
	}

	start := len(all) - limit
	if limit <= 0 || start < 0 {
		start = 0
	}

	// Most recent first.
	result := make([]*Assessment, 0, len(all)-start)
	for i := len(all) - 1; i >= start; i-- {
		cp := *all[i]
		result = append(result, &cp)
	}
	return result, nil
}

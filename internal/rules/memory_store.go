package rules

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for demo/test use.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	specs map[string]*Spec
}

// NewMemoryStore creates an in-memory rule spec store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{specs: make(map[string]*Spec)}
}

func (s *MemoryStore) Upsert(ctx context.Context, spec *Spec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.specs[spec.Name]; !exists {
		s.order = append(s.order, spec.Name)
	}
	cp := *spec
	s.specs[spec.Name] = &cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.specs[name]; !exists {
		return ErrRuleNotFound
	}
	delete(s.specs, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Spec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Spec, 0, len(s.order))
	for _, name := range s.order {
		cp := *s.specs[name]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) Replace(ctx context.Context, specs []*Spec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.specs = make(map[string]*Spec, len(specs))
	for _, spec := range specs {
		if _, exists := s.specs[spec.Name]; !exists {
			s.order = append(s.order, spec.Name)
		}
		cp := *spec
		s.specs[spec.Name] = &cp
	}
	return nil
}

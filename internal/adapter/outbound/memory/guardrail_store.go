package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/scopegate/scopegate/internal/domain/guardrail"
)

// MemoryGuardrailStore implements guardrail.Provider with an in-memory set.
// Thread-safe for concurrent access.
type MemoryGuardrailStore struct {
	mu       sync.RWMutex
	set      *guardrail.Set
	revision uint64
}

// NewGuardrailStore creates an empty guardrail store.
func NewGuardrailStore() *MemoryGuardrailStore {
	return &MemoryGuardrailStore{
		set: &guardrail.Set{Version: "0"},
	}
}

// Guardrails returns the current guardrail set.
func (s *MemoryGuardrailStore) Guardrails(ctx context.Context) (*guardrail.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set, nil
}

// SetGuardrails replaces the guardrail set and bumps the version.
func (s *MemoryGuardrailStore) SetGuardrails(rules []guardrail.Guardrail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revision++
	s.set = &guardrail.Set{
		Version:    strconv.FormatUint(s.revision, 10),
		Guardrails: rules,
	}
}

// Compile-time interface verification.
var _ guardrail.Provider = (*MemoryGuardrailStore)(nil)

// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/scopegate/scopegate/internal/domain/scope"
)

// MemoryScopeStore implements scope.Provider over an in-memory snapshot.
// Thread-safe for concurrent access. Writes replace the snapshot wholesale
// and bump its version, mirroring how the external system's writes surface
// to the engine.
type MemoryScopeStore struct {
	mu         sync.RWMutex
	snapshot   *scope.Snapshot
	principals map[string]*scope.Principal
	revision   uint64
}

// NewScopeStore creates an empty scope store.
func NewScopeStore() *MemoryScopeStore {
	return &MemoryScopeStore{
		snapshot:   emptySnapshot("0"),
		principals: make(map[string]*scope.Principal),
	}
}

func emptySnapshot(version string) *scope.Snapshot {
	return &scope.Snapshot{
		Version:       version,
		Organizations: make(map[string]*scope.Organization),
		Groups:        make(map[string]*scope.Group),
		Spaces:        make(map[string]*scope.Space),
		Areas:         make(map[string]*scope.Area),
		Resources:     make(map[string]*scope.Resource),
		SpaceGrants:   make(map[string][]scope.MembershipGrant),
		AreaGrants:    make(map[string][]scope.MembershipGrant),
	}
}

// Snapshot returns the current scope graph.
func (s *MemoryScopeStore) Snapshot(ctx context.Context) (*scope.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, nil
}

// Principal returns the principal with the given ID, or nil when unknown.
func (s *MemoryScopeStore) Principal(ctx context.Context, id string) (*scope.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principals[id], nil
}

// SetSnapshot replaces the scope graph and bumps the version.
func (s *MemoryScopeStore) SetSnapshot(snap *scope.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revision++
	snap.Version = strconv.FormatUint(s.revision, 10)
	s.snapshot = snap
}

// SetPrincipal adds or replaces a principal.
func (s *MemoryScopeStore) SetPrincipal(p *scope.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principals[p.ID] = p
}

// Compile-time interface verification.
var _ scope.Provider = (*MemoryScopeStore)(nil)

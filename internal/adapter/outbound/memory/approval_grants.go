package memory

import (
	"context"
	"sync"

	"github.com/scopegate/scopegate/internal/service"
)

// MemoryApprovalGrants implements service.ApprovalGrants with an in-memory
// grant set. The grant lifecycle belongs to the external system; this store
// just answers lookups.
type MemoryApprovalGrants struct {
	mu     sync.RWMutex
	grants map[grantKey]struct{}
}

type grantKey struct {
	principalID string
	modelID     string
}

// NewApprovalGrants creates an empty grant store.
func NewApprovalGrants() *MemoryApprovalGrants {
	return &MemoryApprovalGrants{
		grants: make(map[grantKey]struct{}),
	}
}

// HasGrant reports whether the principal holds an approval grant for the model.
func (g *MemoryApprovalGrants) HasGrant(ctx context.Context, principalID, modelID string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.grants[grantKey{principalID, modelID}]
	return ok, nil
}

// Grant records an approval grant.
func (g *MemoryApprovalGrants) Grant(principalID, modelID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.grants[grantKey{principalID, modelID}] = struct{}{}
}

// Revoke removes an approval grant.
func (g *MemoryApprovalGrants) Revoke(principalID, modelID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.grants, grantKey{principalID, modelID})
}

// Compile-time interface verification.
var _ service.ApprovalGrants = (*MemoryApprovalGrants)(nil)

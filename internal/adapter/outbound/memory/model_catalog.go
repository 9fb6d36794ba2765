package memory

import (
	"context"
	"sync"

	"github.com/scopegate/scopegate/internal/domain/model"
)

// MemoryModelCatalog implements model.Catalog with in-memory maps.
// Thread-safe for concurrent access.
type MemoryModelCatalog struct {
	mu     sync.RWMutex
	models map[string]*model.Model
	tiers  []model.Tier
}

// NewModelCatalog creates an empty model catalog.
func NewModelCatalog() *MemoryModelCatalog {
	return &MemoryModelCatalog{
		models: make(map[string]*model.Model),
	}
}

// Model returns the model with the given ID, or nil when unknown.
func (c *MemoryModelCatalog) Model(ctx context.Context, id string) (*model.Model, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.models[id]
	if !ok {
		return nil, nil
	}
	// Return a copy to prevent mutation.
	cp := *m
	return &cp, nil
}

// Tiers returns all known tiers.
func (c *MemoryModelCatalog) Tiers(ctx context.Context) ([]model.Tier, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Tier{}, c.tiers...), nil
}

// SetModel adds or replaces a model.
func (c *MemoryModelCatalog) SetModel(m model.Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[m.ID] = &m
}

// SetTiers replaces the tier list.
func (c *MemoryModelCatalog) SetTiers(tiers []model.Tier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiers = append([]model.Tier{}, tiers...)
}

// Compile-time interface verification.
var _ model.Catalog = (*MemoryModelCatalog)(nil)

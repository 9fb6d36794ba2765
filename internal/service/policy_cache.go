package service

import (
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/scopegate/scopegate/internal/domain/guardrail"
)

// lruEntry is a doubly-linked list node for the LRU cache.
type lruEntry struct {
	key   uint64
	value PolicyResolution
	prev  *lruEntry
	next  *lruEntry
}

// policyCache provides bounded LRU caching for resolved policies.
// Thread-safe with Mutex (both Get and Put mutate LRU order).
type policyCache struct {
	mu      sync.Mutex
	entries map[uint64]*lruEntry
	head    *lruEntry // most recently used
	tail    *lruEntry // least recently used
	maxSize int
}

func newPolicyCache(maxSize int) *policyCache {
	return &policyCache{
		entries: make(map[uint64]*lruEntry, maxSize),
		maxSize: maxSize,
	}
}

// Get retrieves a cached resolution. On hit, the entry is promoted to the
// head (most recently used).
func (c *policyCache) Get(key uint64) (PolicyResolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.moveToHeadLocked(e)
		return e.value, true
	}
	return PolicyResolution{}, false
}

// Put stores a resolution. If at capacity, the least recently used entry is
// evicted.
func (c *policyCache) Put(key uint64, value PolicyResolution) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToHeadLocked(e)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictTailLocked()
	}

	e := &lruEntry{key: key, value: value}
	c.entries[key] = e
	c.pushHeadLocked(e)
}

// Clear empties the cache. Called when the guardrail snapshot version moves.
func (c *policyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*lruEntry, c.maxSize)
	c.head = nil
	c.tail = nil
}

// Size returns current cache size.
func (c *policyCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *policyCache) moveToHeadLocked(e *lruEntry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushHeadLocked(e)
}

func (c *policyCache) pushHeadLocked(e *lruEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *policyCache) unlinkLocked(e *lruEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (c *policyCache) evictTailLocked() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlinkLocked(c.tail)
}

// policyCacheKey hashes the inputs a cached resolution depends on: the
// principal's identity and memberships plus the guardrail snapshot version.
// Group IDs are sorted so key computation is deterministic.
func policyCacheKey(principalID string, groupIDs []string, orgIDs []string, setVersion string) uint64 {
	h := xxhash.New()

	_, _ = h.WriteString(principalID)
	_, _ = h.Write([]byte{0})

	sortedGroups := make([]string, len(groupIDs))
	copy(sortedGroups, groupIDs)
	sort.Strings(sortedGroups)
	_, _ = h.WriteString(strings.Join(sortedGroups, ","))
	_, _ = h.Write([]byte{0})

	sortedOrgs := make([]string, len(orgIDs))
	copy(sortedOrgs, orgIDs)
	sort.Strings(sortedOrgs)
	_, _ = h.WriteString(strings.Join(sortedOrgs, ","))
	_, _ = h.Write([]byte{0})

	_, _ = h.WriteString(setVersion)

	return h.Sum64()
}

// PolicyResolution pairs a resolved policy with the structural warnings
// surfaced while producing it.
type PolicyResolution struct {
	Policy   guardrail.ResolvedPolicy
	Warnings []guardrail.Warning
}

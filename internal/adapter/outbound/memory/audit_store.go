package memory

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/scopegate/scopegate/internal/domain/audit"
)

const defaultRecentCap = 1000

// MemoryAuditStore implements audit.Store writing JSON lines to stdout or a
// writer. Also keeps a bounded in-memory ring buffer for recent record
// queries.
type MemoryAuditStore struct {
	encoder *json.Encoder
	writer  io.Writer
	mu      sync.Mutex
	// recent is a bounded ring buffer of the most recent records.
	recent []audit.Record
	cap    int
}

// resolveCapacity returns the first positive capacity value, or defaultRecentCap.
func resolveCapacity(capacity ...int) int {
	if len(capacity) > 0 && capacity[0] > 0 {
		return capacity[0]
	}
	return defaultRecentCap
}

// NewAuditStore creates a new audit store writing to stdout.
// An optional capacity parameter sets the ring buffer size (default 1000).
func NewAuditStore(capacity ...int) *MemoryAuditStore {
	return NewAuditStoreWithWriter(os.Stdout, capacity...)
}

// NewAuditStoreWithWriter creates an audit store writing to the given writer.
// An optional capacity parameter sets the ring buffer size (default 1000).
func NewAuditStoreWithWriter(w io.Writer, capacity ...int) *MemoryAuditStore {
	c := resolveCapacity(capacity...)
	return &MemoryAuditStore{
		encoder: json.NewEncoder(w),
		writer:  w,
		recent:  make([]audit.Record, 0, c),
		cap:     c,
	}
}

// Append stores audit records by writing them as JSON to the output and
// keeping them in the in-memory ring buffer.
func (s *MemoryAuditStore) Append(ctx context.Context, records ...audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if err := s.encoder.Encode(r); err != nil {
			return err
		}
		if len(s.recent) >= s.cap {
			// Shift left, drop oldest.
			copy(s.recent, s.recent[1:])
			s.recent[len(s.recent)-1] = r
		} else {
			s.recent = append(s.recent, r)
		}
	}
	return nil
}

// Recent returns a copy of the most recent records, newest last.
func (s *MemoryAuditStore) Recent() []audit.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Record{}, s.recent...)
}

// Flush forces pending records to storage.
// No-op for this implementation (no buffering).
func (s *MemoryAuditStore) Flush(ctx context.Context) error {
	return nil
}

// Close releases resources. The writer is left open; it is owned by the
// caller.
func (s *MemoryAuditStore) Close() error {
	return nil
}

// Compile-time interface verification.
var _ audit.Store = (*MemoryAuditStore)(nil)

package fileaudit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/scopegate/scopegate/internal/domain/audit"
)

func newTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	s, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func readRecords(t *testing.T, path string) []audit.Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var records []audit.Record
	dec := json.NewDecoder(f)
	for dec.More() {
		var r audit.Record
		if err := dec.Decode(&r); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		records = append(records, r)
	}
	return records
}

func TestStore_AppendAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	ctx := context.Background()

	s := newTestStore(t, Config{Path: path})
	err := s.Append(ctx,
		audit.Record{RequestID: "req-1", Decision: audit.DecisionAllow},
		audit.Record{RequestID: "req-2", Decision: audit.DecisionDeny},
	)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening appends rather than truncating.
	s2 := newTestStore(t, Config{Path: path})
	if err := s2.Append(ctx, audit.Record{RequestID: "req-3"}); err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if err := s2.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	records := readRecords(t, path)
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if records[0].RequestID != "req-1" || records[2].RequestID != "req-3" {
		t.Errorf("records = %+v", records)
	}
}

func TestStore_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	s := newTestStore(t, Config{Path: path, MaxRotated: 2})
	ctx := context.Background()

	// Force rotation by shrinking the cap below one record.
	s.maxSize = 1

	for i := 0; i < 4; i++ {
		if err := s.Append(ctx, audit.Record{RequestID: "req"}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	for _, name := range []string{path, path + ".1", path + ".2"} {
		if _, err := os.Stat(name); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Errorf("generation beyond MaxRotated should be dropped, stat err = %v", err)
	}
}

func TestStore_AppendAfterCloseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	s := newTestStore(t, Config{Path: path})

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Append(context.Background(), audit.Record{}); err == nil {
		t.Error("Append after Close must fail")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

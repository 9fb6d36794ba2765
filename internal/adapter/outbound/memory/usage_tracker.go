package memory

import (
	"context"
	"sync"
	"time"

	"github.com/scopegate/scopegate/internal/domain/guardrail"
	"github.com/scopegate/scopegate/internal/service"
)

// MemoryUsageTracker accumulates per-principal request and spend counters in
// fixed windows per period bucket. It is an optional convenience for
// embedders without a usage pipeline of their own: the request validator
// still receives counters as plain inputs, so this tracker never becomes a
// second source of truth inside the engine.
//
// Includes background cleanup to prevent unbounded memory growth.
type MemoryUsageTracker struct {
	mu              sync.Mutex
	windows         map[usageKey]*usageWindow
	stopChan        chan struct{}
	wg              sync.WaitGroup
	once            sync.Once
	cleanupInterval time.Duration
}

type usageKey struct {
	principalID string
	period      guardrail.Period
}

type usageWindow struct {
	start    time.Time
	requests int64
	spend    float64
}

// NewUsageTracker creates a tracker with the default cleanup interval of
// five minutes.
func NewUsageTracker() *MemoryUsageTracker {
	return NewUsageTrackerWithConfig(5 * time.Minute)
}

// NewUsageTrackerWithConfig creates a tracker with a custom cleanup interval.
func NewUsageTrackerWithConfig(cleanupInterval time.Duration) *MemoryUsageTracker {
	return &MemoryUsageTracker{
		windows:         make(map[usageKey]*usageWindow),
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}
}

func periodDuration(p guardrail.Period) time.Duration {
	switch p {
	case guardrail.PeriodMinute:
		return time.Minute
	case guardrail.PeriodHour:
		return time.Hour
	case guardrail.PeriodDay:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// Record adds one request with the given spend to every period bucket.
func (t *MemoryUsageTracker) Record(principalID string, spend float64) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, period := range guardrail.Periods {
		key := usageKey{principalID, period}
		w := t.windows[key]
		if w == nil || now.Sub(w.start) >= periodDuration(period) {
			w = &usageWindow{start: now}
			t.windows[key] = w
		}
		w.requests++
		w.spend += spend
	}
}

// Usage returns the current counters for a principal, shaped as validator
// input. Expired windows read as zero.
func (t *MemoryUsageTracker) Usage(principalID string) service.Usage {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	usage := service.Usage{
		Requests: make(map[guardrail.Period]int64),
		Spend:    make(map[guardrail.Period]float64),
	}
	for _, period := range guardrail.Periods {
		w := t.windows[usageKey{principalID, period}]
		if w == nil || now.Sub(w.start) >= periodDuration(period) {
			continue
		}
		usage.Requests[period] = w.requests
		usage.Spend[period] = w.spend
	}
	return usage
}

// StartCleanup starts the background cleanup goroutine. It stops when ctx
// is cancelled or Stop is called.
func (t *MemoryUsageTracker) StartCleanup(ctx context.Context) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stopChan:
				return
			case <-ticker.C:
				t.cleanup()
			}
		}
	}()
}

// Stop halts the background cleanup goroutine and waits for it to exit.
func (t *MemoryUsageTracker) Stop() {
	t.once.Do(func() {
		close(t.stopChan)
	})
	t.wg.Wait()
}

// cleanup removes windows that expired before the current period started.
func (t *MemoryUsageTracker) cleanup() {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, w := range t.windows {
		if now.Sub(w.start) >= periodDuration(key.period) {
			delete(t.windows, key)
		}
	}
}

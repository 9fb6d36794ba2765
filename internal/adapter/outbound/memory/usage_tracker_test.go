package memory

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/scopegate/scopegate/internal/domain/guardrail"
)

func TestUsageTracker_RecordAndUsage(t *testing.T) {
	tracker := NewUsageTracker()

	tracker.Record("user-1", 0.25)
	tracker.Record("user-1", 0.75)
	tracker.Record("user-2", 1.0)

	usage := tracker.Usage("user-1")
	for _, period := range guardrail.Periods {
		if got := usage.Requests[period]; got != 2 {
			t.Errorf("Requests[%s] = %d, want 2", period, got)
		}
		if got := usage.Spend[period]; got != 1.0 {
			t.Errorf("Spend[%s] = %v, want 1.0", period, got)
		}
	}

	other := tracker.Usage("user-2")
	if other.Requests[guardrail.PeriodMinute] != 1 {
		t.Errorf("user-2 requests = %d, want 1", other.Requests[guardrail.PeriodMinute])
	}
}

func TestUsageTracker_UnknownPrincipalReadsZero(t *testing.T) {
	tracker := NewUsageTracker()

	usage := tracker.Usage("user-ghost")
	if len(usage.Requests) != 0 || len(usage.Spend) != 0 {
		t.Errorf("usage = %+v, want empty", usage)
	}
}

func TestUsageTracker_ExpiredWindowReadsZero(t *testing.T) {
	tracker := NewUsageTracker()

	tracker.Record("user-1", 0.5)

	// Age the minute window past its duration.
	tracker.mu.Lock()
	key := usageKey{"user-1", guardrail.PeriodMinute}
	tracker.windows[key].start = time.Now().Add(-2 * time.Minute)
	tracker.mu.Unlock()

	usage := tracker.Usage("user-1")
	if _, ok := usage.Requests[guardrail.PeriodMinute]; ok {
		t.Error("expired minute window should read as absent")
	}
	if usage.Requests[guardrail.PeriodHour] != 1 {
		t.Errorf("hour window = %d, want 1", usage.Requests[guardrail.PeriodHour])
	}
}

func TestUsageTracker_RecordAfterExpiryStartsFreshWindow(t *testing.T) {
	tracker := NewUsageTracker()

	tracker.Record("user-1", 1.0)
	tracker.mu.Lock()
	key := usageKey{"user-1", guardrail.PeriodMinute}
	tracker.windows[key].start = time.Now().Add(-2 * time.Minute)
	tracker.mu.Unlock()

	tracker.Record("user-1", 1.0)

	usage := tracker.Usage("user-1")
	if usage.Requests[guardrail.PeriodMinute] != 1 {
		t.Errorf("minute requests = %d, want 1 after window reset", usage.Requests[guardrail.PeriodMinute])
	}
	if usage.Requests[guardrail.PeriodHour] != 2 {
		t.Errorf("hour requests = %d, want 2", usage.Requests[guardrail.PeriodHour])
	}
}

func TestUsageTracker_CleanupDropsExpiredWindows(t *testing.T) {
	tracker := NewUsageTracker()

	tracker.Record("user-1", 0.5)
	tracker.mu.Lock()
	for _, w := range tracker.windows {
		w.start = time.Now().Add(-25 * time.Hour)
	}
	tracker.mu.Unlock()

	tracker.cleanup()

	tracker.mu.Lock()
	remaining := len(tracker.windows)
	tracker.mu.Unlock()
	if remaining != 0 {
		t.Errorf("windows after cleanup = %d, want 0", remaining)
	}
}

func TestUsageTracker_StartCleanupStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	tracker := NewUsageTrackerWithConfig(10 * time.Millisecond)
	tracker.StartCleanup(context.Background())

	tracker.Record("user-1", 0.5)
	time.Sleep(30 * time.Millisecond)

	tracker.Stop()
}

func TestUsageTracker_StopIsIdempotent(t *testing.T) {
	tracker := NewUsageTracker()
	tracker.StartCleanup(context.Background())

	tracker.Stop()
	tracker.Stop()
}

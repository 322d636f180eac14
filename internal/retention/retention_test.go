package retention

import (
	"math"
	"testing"

	"github.com/raoulx24/snapkeeper/internal/snapshot"
)

func series(sizes ...uint64) []snapshot.Snapshot {
	out := make([]snapshot.Snapshot, len(sizes))
	for i, s := range sizes {
		out[i] = snapshot.Snapshot{Timestamp: uint64(1000 + i), SizeBytes: s}
	}
	return out
}

func timestamps(snaps []snapshot.Snapshot) []uint64 {
	out := make([]uint64, len(snaps))
	for i, s := range snaps {
		out[i] = s.Timestamp
	}
	return out
}

func equal(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		sizes    []uint64
		budget   uint64
		evict    []uint64
		retained uint64
	}{
		{
			name:     "under budget",
			sizes:    []uint64{10, 10, 10, 10, 10, 10, 10, 10},
			budget:   100,
			retained: 80,
		},
		{
			name:     "below minimum count",
			sizes:    []uint64{100, 100, 100, 100, 100, 100, 100},
			budget:   10,
			retained: 700,
		},
		{
			name:     "evicts oldest first",
			sizes:    []uint64{10, 20, 10, 10, 10, 10, 10, 10, 10},
			budget:   65,
			evict:    []uint64{1000, 1001, 1002},
			retained: 60,
		},
		{
			name:     "exactly at budget",
			sizes:    []uint64{10, 10, 10, 10, 10, 10, 10, 10},
			budget:   80,
			retained: 80,
		},
		{
			name:     "newest alone exceeds budget",
			sizes:    []uint64{1, 1, 1, 1, 1, 1, 1, 50},
			budget:   10,
			evict:    []uint64{1000, 1001, 1002, 1003, 1004, 1005, 1006, 1007},
			retained: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snaps := series(tt.sizes...)
			plan := Evaluate(snaps, tt.budget)

			if got := timestamps(plan.Evict); !equal(got, tt.evict) && !(len(got) == 0 && len(tt.evict) == 0) {
				t.Errorf("evict = %v, want %v", got, tt.evict)
			}
			if plan.RetainedBytes != tt.retained {
				t.Errorf("retained = %d, want %d", plan.RetainedBytes, tt.retained)
			}
			if plan.RetainedBytes > tt.budget && len(snaps) >= MinSnapshots {
				t.Errorf("retained %d exceeds budget %d", plan.RetainedBytes, tt.budget)
			}
			if len(plan.Keep)+len(plan.Evict) != len(snaps) {
				t.Errorf("keep+evict = %d, want %d", len(plan.Keep)+len(plan.Evict), len(snaps))
			}
			for i := 1; i < len(plan.Keep); i++ {
				if plan.Keep[i-1].Timestamp >= plan.Keep[i].Timestamp {
					t.Fatalf("survivors out of order: %v", timestamps(plan.Keep))
				}
			}
			if len(plan.Evict) > 0 && len(plan.Keep) > 0 &&
				plan.Evict[len(plan.Evict)-1].Timestamp >= plan.Keep[0].Timestamp {
				t.Errorf("evicted a snapshot newer than a survivor")
			}
		})
	}
}

func TestBudgetFromGB(t *testing.T) {
	tests := []struct {
		gb   float64
		want uint64
	}{
		{1, 1_000_000_000},
		{0.5, 500_000_000},
		{0, 0},
		{-3, 0},
		{math.NaN(), 0},
		{math.Inf(1), math.MaxUint64},
	}
	for _, tt := range tests {
		if got := BudgetFromGB(tt.gb); got != tt.want {
			t.Errorf("BudgetFromGB(%v) = %d, want %d", tt.gb, got, tt.want)
		}
	}
}

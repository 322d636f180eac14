// Package retention decides which snapshots to evict under a byte budget.
package retention

import (
	"math"

	"github.com/raoulx24/snapkeeper/internal/snapshot"
)

// MinSnapshots is the count below which no snapshot is ever evicted, so a
// freshly bootstrapped store is left alone.
const MinSnapshots = 8

// bytesPerGB converts the configured GB float to bytes.
const bytesPerGB = 1e9

// Plan is the outcome of one retention evaluation.
type Plan struct {
	Keep          []snapshot.Snapshot
	Evict         []snapshot.Snapshot
	RetainedBytes uint64
}

// Evaluate applies the budget to snaps, which must be sorted oldest first.
// Snapshots are evicted from the front until the retained total fits.
// Keep and Evict share snaps' backing array.
func Evaluate(snaps []snapshot.Snapshot, budget uint64) Plan {
	total := TotalBytes(snaps)
	if len(snaps) < MinSnapshots || total <= budget {
		return Plan{Keep: snaps, RetainedBytes: total}
	}

	i := 0
	for i < len(snaps) && total > budget {
		total -= snaps[i].SizeBytes
		i++
	}

	return Plan{
		Keep:          snaps[i:],
		Evict:         snaps[:i],
		RetainedBytes: total,
	}
}

// TotalBytes sums SizeBytes over snaps.
func TotalBytes(snaps []snapshot.Snapshot) uint64 {
	var total uint64
	for _, s := range snaps {
		total += s.SizeBytes
	}
	return total
}

// BudgetFromGB converts a GB figure to bytes. Negative and NaN give 0,
// values past the uint64 range saturate.
func BudgetFromGB(gb float64) uint64 {
	if math.IsNaN(gb) || gb <= 0 {
		return 0
	}
	b := gb * bytesPerGB
	if b >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(b)
}

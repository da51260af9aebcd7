// Package burn computes windowed cycle-burn estimates from a canister's
// snapshot history. Everything here is pure: same inputs, same outputs.
package burn

import (
	"math"
	"time"

	"github.com/AlexandriaDAO/cyclescan/pkg/db"
)

// Rollup windows. The thirty-day figure is not cached; detail views compute
// it on demand.
const (
	Window1h  = time.Hour
	Window24h = 24 * time.Hour
	Window7d  = 7 * 24 * time.Hour
	Window30d = 30 * 24 * time.Hour
)

// Calculate estimates cycles burned over the trailing window ending at now.
// snaps must be the canister's full retained history in ascending timestamp
// order. The second return is false when fewer than two snapshots exist and
// no estimate is possible.
//
// With two or more snapshots inside the window the estimate is the sum of
// balance decreases between consecutive in-window snapshots; increases are
// top-ups and contribute nothing. A span exactly equal to the window still
// counts as in-window data. Otherwise the last two snapshots overall define
// a decay rate that is extrapolated across the window and truncated to an
// integer; a non-advancing clock or a non-decreasing balance extrapolates
// to zero.
func Calculate(snaps []db.Snapshot, window time.Duration, now time.Time) (uint64, bool) {
	if len(snaps) < 2 {
		return 0, false
	}

	cutoff := now.Add(-window).UnixNano()
	first := len(snaps)
	for i, s := range snaps {
		if s.Timestamp >= cutoff {
			first = i
			break
		}
	}

	if len(snaps)-first >= 2 {
		var total uint64
		for i := first + 1; i < len(snaps); i++ {
			prev, curr := snaps[i-1].Cycles, snaps[i].Cycles
			if curr < prev {
				total += prev - curr
			}
		}
		return total, true
	}

	older, newer := snaps[len(snaps)-2], snaps[len(snaps)-1]
	if newer.Timestamp <= older.Timestamp || newer.Cycles >= older.Cycles {
		return 0, true
	}
	elapsed := newer.Timestamp - older.Timestamp
	rate := float64(older.Cycles-newer.Cycles) / float64(elapsed)
	burned := rate * float64(window.Nanoseconds())
	// Float-to-uint64 overflow is implementation-defined; saturate instead.
	if burned >= math.MaxUint64 {
		return math.MaxUint64, true
	}
	return uint64(burned), true
}

// SpansWindow reports whether the retained history actually covers the full
// window, i.e. whether a Calculate figure for that window reflects real data
// rather than extrapolation.
func SpansWindow(snaps []db.Snapshot, window time.Duration, now time.Time) bool {
	if len(snaps) == 0 {
		return false
	}
	return snaps[0].Timestamp <= now.Add(-window).UnixNano()
}

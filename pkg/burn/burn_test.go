package burn

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AlexandriaDAO/cyclescan/pkg/db"
)

func snap(ts time.Time, cycles uint64) db.Snapshot {
	return db.Snapshot{Timestamp: ts.UnixNano(), Cycles: cycles}
}

func TestCalculateUnknownBelowTwoSnapshots(t *testing.T) {
	now := time.Now()

	_, ok := Calculate(nil, Window24h, now)
	assert.False(t, ok)

	_, ok = Calculate([]db.Snapshot{snap(now, 100)}, Window1h, now)
	assert.False(t, ok)
}

func TestCalculateActualRegime(t *testing.T) {
	now := time.Now()
	snaps := []db.Snapshot{
		snap(now.Add(-2*time.Hour), 100),
		snap(now.Add(-1*time.Hour), 40),
	}

	got, ok := Calculate(snaps, Window24h, now)
	assert.True(t, ok)
	assert.Equal(t, uint64(60), got)
}

func TestCalculateTopUpContributesZero(t *testing.T) {
	now := time.Now()
	snaps := []db.Snapshot{
		snap(now.Add(-3*time.Hour), 100),
		snap(now.Add(-2*time.Hour), 40),
		snap(now.Add(-1*time.Hour), 500), // top-up
		snap(now, 450),
	}

	got, ok := Calculate(snaps, Window24h, now)
	assert.True(t, ok)
	// 100->40 burns 60, 500->450 burns 50, the top-up adds nothing.
	assert.Equal(t, uint64(110), got)
}

func TestCalculateTopUpOutsideWindowIgnored(t *testing.T) {
	now := time.Now()
	snaps := []db.Snapshot{
		snap(now.Add(-48*time.Hour), 10),
		snap(now.Add(-30*time.Hour), 1000), // refill before the window opens
		snap(now.Add(-2*time.Hour), 100),
		snap(now.Add(-1*time.Hour), 40),
	}

	got, ok := Calculate(snaps, Window24h, now)
	assert.True(t, ok)
	assert.Equal(t, uint64(60), got)
}

func TestCalculateExtrapolation(t *testing.T) {
	now := time.Now()
	snaps := []db.Snapshot{
		snap(now.Add(-2*time.Hour), 1000),
		snap(now.Add(-1*time.Hour), 900),
	}

	// One hour of data, 100 burned: a 24h window extrapolates to 2400.
	got, ok := Calculate(snaps, Window24h, now.Add(23*time.Hour))
	assert.True(t, ok)
	assert.Equal(t, uint64(2400), got)
}

func TestCalculateExtrapolationNonDecreasing(t *testing.T) {
	now := time.Now()

	// Balance grew: nothing to extrapolate.
	snaps := []db.Snapshot{
		snap(now.Add(-26*time.Hour), 900),
		snap(now.Add(-25*time.Hour), 1000),
	}
	got, ok := Calculate(snaps, Window24h, now)
	assert.True(t, ok)
	assert.Equal(t, uint64(0), got)

	// Identical timestamps: no elapsed time, no rate.
	ts := now.Add(-25 * time.Hour)
	snaps = []db.Snapshot{snap(ts, 1000), snap(ts, 900)}
	got, ok = Calculate(snaps, Window24h, now)
	assert.True(t, ok)
	assert.Equal(t, uint64(0), got)
}

func TestCalculateExtrapolationSaturates(t *testing.T) {
	now := time.Now()

	// A full balance drained in one nanosecond, observed before the window
	// opens: the projected window total dwarfs uint64 and must clamp
	// rather than wrap.
	older := now.Add(-2 * time.Hour)
	snaps := []db.Snapshot{
		snap(older, math.MaxUint64),
		{Timestamp: older.UnixNano() + 1, Cycles: 0},
	}
	got, ok := Calculate(snaps, Window1h, now)
	assert.True(t, ok)
	assert.Equal(t, uint64(math.MaxUint64), got)
}

func TestCalculateSpanEqualToWindowIsActual(t *testing.T) {
	now := time.Now()
	snaps := []db.Snapshot{
		snap(now.Add(-Window24h), 1000),
		snap(now, 400),
	}

	got, ok := Calculate(snaps, Window24h, now)
	assert.True(t, ok)
	assert.Equal(t, uint64(600), got)
}

func TestCalculateDeterministic(t *testing.T) {
	now := time.Now()
	snaps := []db.Snapshot{
		snap(now.Add(-10*time.Hour), 5000),
		snap(now.Add(-5*time.Hour), 4200),
		snap(now.Add(-1*time.Hour), 3900),
	}

	first, ok := Calculate(snaps, Window7d, now)
	assert.True(t, ok)
	for i := 0; i < 10; i++ {
		again, _ := Calculate(snaps, Window7d, now)
		assert.Equal(t, first, again)
	}
}

func TestSpansWindow(t *testing.T) {
	now := time.Now()
	snaps := []db.Snapshot{
		snap(now.Add(-2*time.Hour), 100),
		snap(now, 90),
	}

	assert.True(t, SpansWindow(snaps, Window1h, now))
	assert.False(t, SpansWindow(snaps, Window24h, now))
	assert.False(t, SpansWindow(nil, Window1h, now))
}

package observ

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeClock(step time.Duration) func() time.Time {
	now := time.Unix(0, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	tm.now = fakeClock(2 * time.Millisecond)

	tm.Measure("load lib", func() string { return "3 modules" })
	idx := tm.Begin("typecheck lib")
	tm.End(idx, "")
	tm.End(42, "ignored")

	r := tm.Report()
	require.Len(t, r.Phases, 2)
	assert.Equal(t, "load lib", r.Phases[0].Name)
	assert.InDelta(t, 2.0, r.Phases[0].DurationMS, 1e-9)
	assert.Equal(t, "3 modules", r.Phases[0].Note)
	assert.InDelta(t, 4.0, r.TotalMS, 1e-9)

	s := tm.Summary()
	assert.Contains(t, s, "timings:\n")
	assert.Contains(t, s, "  load lib          2.00 ms  // 3 modules\n")
	assert.Contains(t, s, "  total             4.00 ms\n")
}

func TestEmptyTimer(t *testing.T) {
	assert.Equal(t, Report{}, NewTimer().Report())
	assert.Equal(t, "timings:\n  total     0.00 ms\n", NewTimer().Summary())
}

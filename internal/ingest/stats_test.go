package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCycleStatsAccumulateAndReset(t *testing.T) {
	stats := NewCycleStats()

	stats.RecordSuccess(5, 3, 2, 1, 0)
	stats.RecordSuccess(2, 0, 0, 0, 4)
	stats.RecordFailure()

	summary := stats.Snapshot()
	assert.Equal(t, 7, summary.PostingsAdded)
	assert.Equal(t, 3, summary.PostingsUpdated)
	assert.Equal(t, 2, summary.PostingsExpired)
	assert.Equal(t, 1, summary.DuplicatesSkipped)
	assert.Equal(t, 4, summary.RecordErrors)
	assert.Equal(t, 3, summary.SourcesRun)
	assert.Equal(t, 1, summary.SourcesFailed)
	assert.InDelta(t, 66.6, summary.SuccessRate(), 0.1)

	stats.Reset()
	assert.Equal(t, CycleSummary{}, stats.Snapshot())
}

func TestSuccessRateWithNoSources(t *testing.T) {
	assert.Zero(t, CycleSummary{}.SuccessRate())
}

package scheduler

import (
	"context"
	"io"
	"testing"

	"github.com/marcusw/jobtrack/internal/config"
	"github.com/marcusw/jobtrack/internal/ingest"
	"github.com/marcusw/jobtrack/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipeline(log *logger.Logger) *ingest.Pipeline {
	return ingest.NewPipeline(nil, nil, ingest.NewCycleStats(), nil, 7, log)
}

func TestStartRejectsInvalidTimezone(t *testing.T) {
	log := logger.New(&logger.Config{Level: "error", Output: io.Discard})
	s := New(config.SchedulerConfig{Timezone: "Not/AZone"}, testPipeline(log), log)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timezone")
}

func TestStartAndStop(t *testing.T) {
	log := logger.New(&logger.Config{Level: "error", Output: io.Discard})
	s := New(config.SchedulerConfig{
		Timezone:      "America/New_York",
		PassStartHour: 7,
		PassEndHour:   17,
		AuditHour:     18,
	}, testPipeline(log), log)

	require.NoError(t, s.Start(context.Background()))

	entries := s.cron.Entries()
	assert.Len(t, entries, 2, "one pass entry and one audit entry")

	s.Stop()
}

func TestStopBeforeStart(t *testing.T) {
	log := logger.New(&logger.Config{Level: "error", Output: io.Discard})
	s := New(config.SchedulerConfig{}, testPipeline(log), log)

	// Must not panic
	s.Stop()
}

package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/marcusw/jobtrack/internal/domain"
	"github.com/marcusw/jobtrack/internal/source"
	"github.com/marcusw/jobtrack/internal/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter serves canned records, or fails wholesale.
type fakeAdapter struct {
	name    string
	company string
	records map[string][]source.RawRecord
	err     error
}

func (f *fakeAdapter) Name() string    { return f.name }
func (f *fakeAdapter) Company() string { return f.company }

func (f *fakeAdapter) Fetch(ctx context.Context, roleQueries []string, lookbackDays int) (map[string][]source.RawRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func newTestCoordinator(t *testing.T, env *testEnv) (*Coordinator, *CycleStats) {
	t.Helper()
	stats := NewCycleStats()
	classifier := taxonomy.NewClassifier(env.roles, env.log)
	coordinator := NewCoordinator(env.runs, classifier, env.engine, env.lifecycle, stats, env.log)
	return coordinator, stats
}

func TestRunSourceAcrossCycles(t *testing.T) {
	env := newTestEnv(t)
	coordinator, stats := newTestCoordinator(t, env)
	ctx := context.Background()
	queries := []string{"Data Scientist"}

	adapter := &fakeAdapter{
		name:    "acme",
		company: "Acme",
		records: map[string][]source.RawRecord{
			"Data Scientist": {
				rawRecord("J1", "Data Scientist"),
				rawRecord("J2", "Data Engineer"),
			},
		},
	}

	// First cycle: both postings are new.
	record, err := coordinator.RunSource(ctx, adapter, queries, 7)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, domain.RunStatusSuccess, record.Status)
	assert.Equal(t, 2, record.PostingsAdded)
	assert.Zero(t, record.PostingsUpdated)

	active, err := env.postings.CountByActive(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), active)

	// Second cycle: J1 re-seen, J2 gone, J3 new. J2 must expire.
	adapter.records = map[string][]source.RawRecord{
		"Data Scientist": {
			rawRecord("J1", "Senior Data Scientist"),
			rawRecord("J3", "ML Engineer"),
		},
	}

	record, err = coordinator.RunSource(ctx, adapter, queries, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSuccess, record.Status)
	assert.Equal(t, 1, record.PostingsAdded)
	assert.Equal(t, 1, record.PostingsUpdated)

	j2, err := env.postings.GetByIdentity(ctx, "J2", "Acme")
	require.NoError(t, err)
	assert.False(t, j2.IsActive)

	j1, err := env.postings.GetByIdentity(ctx, "J1", "Acme")
	require.NoError(t, err)
	assert.True(t, j1.IsActive)
	assert.Equal(t, "Senior Data Scientist", j1.Title)

	summary := stats.Snapshot()
	assert.Equal(t, 3, summary.PostingsAdded)
	assert.Equal(t, 1, summary.PostingsUpdated)
	assert.Equal(t, 1, summary.PostingsExpired)
	assert.Equal(t, 2, summary.SourcesRun)
	assert.Zero(t, summary.SourcesFailed)
}

func TestRunSourceAdapterFailureSkipsExpiration(t *testing.T) {
	env := newTestEnv(t)
	coordinator, stats := newTestCoordinator(t, env)
	ctx := context.Background()
	queries := []string{"Data Scientist"}

	adapter := &fakeAdapter{
		name:    "acme",
		company: "Acme",
		records: map[string][]source.RawRecord{
			"Data Scientist": {rawRecord("J1", "Data Scientist")},
		},
	}

	_, err := coordinator.RunSource(ctx, adapter, queries, 7)
	require.NoError(t, err)

	// The board goes down. The existing posting must stay active: a failed
	// scrape is never evidence that the job disappeared.
	adapter.err = errors.New("search returned status 503")

	record, err := coordinator.RunSource(ctx, adapter, queries, 7)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, domain.RunStatusFailure, record.Status)
	assert.Contains(t, record.ErrorMessage, "503")

	j1, err := env.postings.GetByIdentity(ctx, "J1", "Acme")
	require.NoError(t, err)
	assert.True(t, j1.IsActive)

	summary := stats.Snapshot()
	assert.Equal(t, 2, summary.SourcesRun)
	assert.Equal(t, 1, summary.SourcesFailed)
}

func TestRunSourceCountsDuplicatesAndErrors(t *testing.T) {
	env := newTestEnv(t)
	coordinator, stats := newTestCoordinator(t, env)
	ctx := context.Background()

	adapter := &fakeAdapter{
		name:    "acme",
		company: "Acme",
		records: map[string][]source.RawRecord{
			"Data Scientist": {
				rawRecord("J1", "Data Scientist"),
				rawRecord("J2", "Data Scientist"), // re-keyed duplicate of J1
				rawRecord("", "Mystery Job"),      // no identity
			},
		},
	}

	record, err := coordinator.RunSource(ctx, adapter, []string{"Data Scientist"}, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSuccess, record.Status)
	assert.Equal(t, 1, record.PostingsAdded)

	summary := stats.Snapshot()
	assert.Equal(t, 1, summary.DuplicatesSkipped)
	assert.Equal(t, 1, summary.RecordErrors)

	// J1 stays active: the duplicate's identifier also counts as seen.
	j1, err := env.postings.GetByIdentity(ctx, "J1", "Acme")
	require.NoError(t, err)
	assert.True(t, j1.IsActive)
}

func TestRunSourceSeenSetCoversSkippedQueries(t *testing.T) {
	env := newTestEnv(t)
	coordinator, _ := newTestCoordinator(t, env)
	ctx := context.Background()

	adapter := &fakeAdapter{
		name:    "acme",
		company: "Acme",
		records: map[string][]source.RawRecord{
			"Data Scientist": {rawRecord("J1", "Data Scientist")},
		},
	}

	_, err := coordinator.RunSource(ctx, adapter, []string{"Data Scientist"}, 7)
	require.NoError(t, err)

	// Next cycle the board still lists J1, but the source reports it under a
	// blank query key. Skipping the query must not expire the posting.
	adapter.records = map[string][]source.RawRecord{
		"":             {rawRecord("J1", "Data Scientist")},
		"Data Analyst": {rawRecord("J9", "Data Analyst")},
	}

	record, err := coordinator.RunSource(ctx, adapter, []string{"", "Data Analyst"}, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSuccess, record.Status)
	assert.Equal(t, 1, record.PostingsAdded)

	j1, err := env.postings.GetByIdentity(ctx, "J1", "Acme")
	require.NoError(t, err)
	assert.True(t, j1.IsActive, "a posting the source still reports must stay active")

	j9, err := env.postings.GetByIdentity(ctx, "J9", "Acme")
	require.NoError(t, err)
	assert.True(t, j9.IsActive)
}

func TestRunSourceDedupsWithinCycle(t *testing.T) {
	env := newTestEnv(t)
	coordinator, _ := newTestCoordinator(t, env)
	ctx := context.Background()

	// The same requisition answers two different role queries.
	adapter := &fakeAdapter{
		name:    "acme",
		company: "Acme",
		records: map[string][]source.RawRecord{
			"Data Scientist": {rawRecord("J1", "Data Scientist")},
			"Data Analyst":   {rawRecord("J1", "Data Scientist")},
		},
	}

	record, err := coordinator.RunSource(ctx, adapter, []string{"Data Scientist", "Data Analyst"}, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, record.PostingsAdded)
	assert.Zero(t, record.PostingsUpdated)

	var count int64
	require.NoError(t, env.db.Model(&domain.Posting{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

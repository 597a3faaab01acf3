package ingest

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcusw/jobtrack/internal/domain"
	"github.com/marcusw/jobtrack/internal/logger"
	"github.com/marcusw/jobtrack/internal/repository"
	"github.com/marcusw/jobtrack/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testEnv struct {
	db          *gorm.DB
	postings    *repository.PostingRepository
	roles       *repository.RoleRepository
	runs        *repository.RunRepository
	log         *logger.Logger
	engine      *UpsertEngine
	lifecycle   *LifecycleManager
	defaultRole *domain.Role
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Posting{}, &domain.Role{}, &domain.RunRecord{}))

	log := logger.New(&logger.Config{Level: "error", Output: io.Discard})
	postings := repository.NewPostingRepository(db)
	roles := repository.NewRoleRepository(db)

	role, err := roles.GetOrCreate(context.Background(), "Data Scientist")
	require.NoError(t, err)

	return &testEnv{
		db:          db,
		postings:    postings,
		roles:       roles,
		runs:        repository.NewRunRepository(db),
		log:         log,
		engine:      NewUpsertEngine(postings, log, 2),
		lifecycle:   NewLifecycleManager(postings, log),
		defaultRole: role,
	}
}

func rawRecord(externalID, title string) source.RawRecord {
	return source.RawRecord{
		ExternalID:     externalID,
		Title:          title,
		Location:       "Remote",
		URL:            "https://example.com/jobs/" + externalID,
		DatePosted:     "2026-08-20",
		EmploymentType: "Full time",
		Description:    "Build things.",
		Payload:        map[string]interface{}{"origin": "test"},
	}
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	outcome, posting, err := env.engine.Upsert(ctx, rawRecord("JR1", "Data Scientist"), "Acme", env.defaultRole)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	require.NotNil(t, posting)
	assert.True(t, posting.IsActive)
	assert.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), posting.DatePosted.UTC())

	firstSeen := posting.FirstSeen

	outcome, posting, err = env.engine.Upsert(ctx, rawRecord("JR1", "Senior Data Scientist"), "Acme", env.defaultRole)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Equal(t, "Senior Data Scientist", posting.Title)
	assert.True(t, posting.FirstSeen.Equal(firstSeen))
	assert.True(t, posting.LastUpdated.After(posting.FirstSeen))

	var count int64
	require.NoError(t, env.db.Model(&domain.Posting{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpsertReactivatesExpiredPosting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, posting, err := env.engine.Upsert(ctx, rawRecord("JR1", "Data Scientist"), "Acme", env.defaultRole)
	require.NoError(t, err)

	require.NoError(t, env.db.Model(posting).Update("is_active", false).Error)

	outcome, posting, err := env.engine.Upsert(ctx, rawRecord("JR1", "Data Scientist"), "Acme", env.defaultRole)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.True(t, posting.IsActive, "a re-seen identifier must reactivate the posting")
}

func TestUpsertSkipsRekeyedDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, original, err := env.engine.Upsert(ctx, rawRecord("JR1", "Data Scientist"), "Acme", env.defaultRole)
	require.NoError(t, err)

	// Same company, title, and location under a brand-new identifier
	outcome, posting, err := env.engine.Upsert(ctx, rawRecord("JR2", "Data Scientist"), "Acme", env.defaultRole)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicateSkipped, outcome)
	assert.Equal(t, original.ID, posting.ID)

	var count int64
	require.NoError(t, env.db.Model(&domain.Posting{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "re-keyed duplicate must not create a second row")
}

func TestUpsertRejectsMissingIdentity(t *testing.T) {
	env := newTestEnv(t)

	rec := rawRecord("", "Data Scientist")
	outcome, posting, err := env.engine.Upsert(context.Background(), rec, "Acme", env.defaultRole)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Nil(t, posting)
	assert.ErrorIs(t, err, ErrMissingIdentity)

	rec.ExternalID = "   "
	outcome, _, err = env.engine.Upsert(context.Background(), rec, "Acme", env.defaultRole)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, ErrMissingIdentity)
}

func TestUpsertSubstitutesBadPostedDate(t *testing.T) {
	env := newTestEnv(t)

	rec := rawRecord("JR1", "Data Scientist")
	rec.DatePosted = "posted 3 days ago"

	before := time.Now().UTC()
	outcome, posting, err := env.engine.Upsert(context.Background(), rec, "Acme", env.defaultRole)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.False(t, posting.DatePosted.Before(before.Truncate(time.Second)),
		"unparseable date must fall back to ingestion time")
}

func TestUpsertAccumulatesRoles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	analyst, err := env.roles.GetOrCreate(ctx, "Data Analyst")
	require.NoError(t, err)

	_, _, err = env.engine.Upsert(ctx, rawRecord("JR1", "Data Scientist"), "Acme", env.defaultRole)
	require.NoError(t, err)
	_, posting, err := env.engine.Upsert(ctx, rawRecord("JR1", "Data Scientist"), "Acme", analyst)
	require.NoError(t, err)

	got, err := env.postings.GetByID(ctx, posting.ID)
	require.NoError(t, err)
	assert.Len(t, got.Roles, 2, "roles accumulate across sightings and are never removed")
}

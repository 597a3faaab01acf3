package taxonomy

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/marcusw/jobtrack/internal/domain"
	"github.com/marcusw/jobtrack/internal/logger"
	"github.com/marcusw/jobtrack/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestClassifier(t *testing.T) (*Classifier, *repository.RoleRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Posting{}, &domain.Role{}))

	roles := repository.NewRoleRepository(db)
	log := logger.New(&logger.Config{Level: "error", Output: io.Discard})
	return NewClassifier(roles, log), roles
}

func TestCanonicalizeExactMatchIsCaseInsensitive(t *testing.T) {
	c, _ := newTestClassifier(t)

	role, err := c.Canonicalize(context.Background(), "data scientist")
	require.NoError(t, err)
	assert.Equal(t, "Data Scientist", role.Name)
}

func TestCanonicalizeSubstringMatch(t *testing.T) {
	c, _ := newTestClassifier(t)

	for _, raw := range []string{
		"Senior Data Scientist, Platform",
		"Sr. Data  Scientist!!",
		"Staff data scientist (Remote)",
	} {
		role, err := c.Canonicalize(context.Background(), raw)
		require.NoError(t, err)
		assert.Equal(t, "Data Scientist", role.Name, "raw=%q", raw)
	}
}

func TestCanonicalizeGrowsVocabulary(t *testing.T) {
	c, roles := newTestClassifier(t)
	ctx := context.Background()

	before := c.VocabularySize()

	role, err := c.Canonicalize(ctx, "Quantum   Researcher")
	require.NoError(t, err)
	assert.Equal(t, "Quantum Researcher", role.Name, "whitespace must be collapsed on admission")
	assert.Equal(t, before+1, c.VocabularySize())

	// The admitted entry now resolves exact and substring matches
	again, err := c.Canonicalize(ctx, "quantum researcher")
	require.NoError(t, err)
	assert.Equal(t, role.ID, again.ID)

	senior, err := c.Canonicalize(ctx, "Senior Quantum Researcher")
	require.NoError(t, err)
	assert.Equal(t, role.ID, senior.ID)
	assert.Equal(t, before+1, c.VocabularySize(), "repeat inputs must not re-admit")

	// And it is persisted for other processes
	persisted, err := roles.GetByName(ctx, "Quantum Researcher")
	require.NoError(t, err)
	assert.Equal(t, role.ID, persisted.ID)
}

func TestCanonicalizeFallsBackToDefault(t *testing.T) {
	c, _ := newTestClassifier(t)
	ctx := context.Background()

	cases := map[string]string{
		"":         "empty input",
		"   ":      "whitespace only",
		"job":      "stop term",
		"General":  "stop term is case-insensitive",
		"position": "stop term",
		"QA":       "too short to admit",
	}
	for raw, why := range cases {
		role, err := c.Canonicalize(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, DefaultRoleName, role.Name, "raw=%q (%s)", raw, why)
	}
}

func TestWarmRestoresPersistedVocabulary(t *testing.T) {
	c, roles := newTestClassifier(t)
	ctx := context.Background()

	_, err := c.Canonicalize(ctx, "Bioinformatics Engineer")
	require.NoError(t, err)

	// A fresh classifier over the same store starts from the seed only,
	// until it is warmed.
	log := logger.New(&logger.Config{Level: "error", Output: io.Discard})
	fresh := NewClassifier(roles, log)
	seedSize := fresh.VocabularySize()

	require.NoError(t, fresh.Warm(ctx))
	assert.Equal(t, seedSize+1, fresh.VocabularySize())

	role, err := fresh.Canonicalize(ctx, "Senior Bioinformatics Engineer")
	require.NoError(t, err)
	assert.Equal(t, "Bioinformatics Engineer", role.Name)
}

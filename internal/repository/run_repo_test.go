package repository

import (
	"context"
	"testing"

	"github.com/marcusw/jobtrack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLedgerLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(newTestDB(t))

	record, err := repo.Open(ctx, "acme")
	require.NoError(t, err)
	require.NotZero(t, record.ID)
	assert.Equal(t, domain.RunStatusRunning, record.Status)
	assert.Nil(t, record.EndTime)

	require.NoError(t, repo.FinalizeSuccess(ctx, record, 5, 3))
	assert.Equal(t, domain.RunStatusSuccess, record.Status)
	assert.Equal(t, 5, record.PostingsAdded)
	assert.Equal(t, 3, record.PostingsUpdated)
	require.NotNil(t, record.EndTime)

	failed, err := repo.Open(ctx, "acme")
	require.NoError(t, err)
	require.NoError(t, repo.FinalizeFailure(ctx, failed, "search returned status 503"))
	assert.Equal(t, domain.RunStatusFailure, failed.Status)
	assert.Equal(t, "search returned status 503", failed.ErrorMessage)

	last, err := repo.LastBySource(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, failed.ID, last.ID)

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestLastBySourceNeverRun(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(newTestDB(t))

	last, err := repo.LastBySource(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, last)
}

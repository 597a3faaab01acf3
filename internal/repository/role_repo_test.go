package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewRoleRepository(newTestDB(t))

	first, err := repo.GetOrCreate(ctx, "Data Scientist")
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	second, err := repo.GetOrCreate(ctx, "Data Scientist")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	names, err := repo.ListNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Data Scientist"}, names)
}

func TestCountPostingsIncludesEmptyRoles(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	roles := NewRoleRepository(db)
	postings := NewPostingRepository(db)

	ds, err := roles.GetOrCreate(ctx, "Data Scientist")
	require.NoError(t, err)
	_, err = roles.GetOrCreate(ctx, "Data Analyst")
	require.NoError(t, err)

	p1 := testPosting("A1", "Acme", "Data Scientist")
	require.NoError(t, postings.CreateOrUpdate(ctx, p1))
	require.NoError(t, postings.AttachRole(ctx, p1, ds))

	p2 := testPosting("A2", "Acme", "Staff Data Scientist")
	require.NoError(t, postings.CreateOrUpdate(ctx, p2))
	require.NoError(t, postings.AttachRole(ctx, p2, ds))

	// Attaching the same role twice must not inflate the count
	require.NoError(t, postings.AttachRole(ctx, p2, ds))

	counts, err := roles.CountPostings(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "Data Scientist", counts[0].Role)
	assert.Equal(t, int64(2), counts[0].Count)
	assert.Equal(t, "Data Analyst", counts[1].Role)
	assert.Zero(t, counts[1].Count)
}

package static

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, manifest Manifest) string {
	t.Helper()
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestFetchGroupsByRoleQuery(t *testing.T) {
	path := writeManifest(t, Manifest{
		Company: "Example Corp",
		Records: []ManifestRecord{
			{ExternalID: "S1", Title: "Data Scientist", Roles: []string{"Data Scientist"}},
			{ExternalID: "S2", Title: "Data Analyst", Roles: []string{"data analyst"}},
			{ExternalID: "S3", Title: "Office Manager"},
		},
	})

	adapter := New("fixtures", "Example Corp", path)
	assert.Equal(t, "fixtures", adapter.Name())
	assert.Equal(t, "Example Corp", adapter.Company())

	results, err := adapter.Fetch(context.Background(), []string{"Data Scientist", "Data Analyst"}, 7)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// S3 lists no roles and therefore answers every query; matching is
	// case-insensitive.
	ids := func(query string) []string {
		var out []string
		for _, rec := range results[query] {
			out = append(out, rec.ExternalID)
		}
		return out
	}
	assert.ElementsMatch(t, []string{"S1", "S3"}, ids("Data Scientist"))
	assert.ElementsMatch(t, []string{"S2", "S3"}, ids("Data Analyst"))
}

func TestFetchMissingManifest(t *testing.T) {
	adapter := New("fixtures", "Example Corp", filepath.Join(t.TempDir(), "absent.json"))

	_, err := adapter.Fetch(context.Background(), []string{"Data Scientist"}, 7)
	assert.Error(t, err)
}

func TestFetchCanceledContext(t *testing.T) {
	path := writeManifest(t, Manifest{Company: "Example Corp"})
	adapter := New("fixtures", "Example Corp", path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := adapter.Fetch(ctx, []string{"Data Scientist"}, 7)
	assert.ErrorIs(t, err, context.Canceled)
}

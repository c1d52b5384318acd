package seed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pevans/newsharvest/logging"
	"github.com/pevans/newsharvest/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: create a test store
func createTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "should create store")
	t.Cleanup(func() { s.Close() })
	return s
}

// TestSources_Catalogue verifies the embedded catalogue holds the six
// default sources with usable selectors
func TestSources_Catalogue(t *testing.T) {
	sources, err := Sources()
	require.NoError(t, err)
	require.Len(t, sources, 6)

	names := make([]string, 0, len(sources))
	for _, source := range sources {
		names = append(names, source.Name)
		assert.True(t, source.IsActive)
		require.NotNil(t, source.Selectors)
		assert.NotEmpty(t, source.Selectors.ListPage.URL)
		assert.NotEmpty(t, source.Selectors.ArticlePage.Content)
	}
	assert.Equal(t, []string{
		"Business Standard",
		"Economic Times",
		"Zerodha Pulse",
		"Moneycontrol",
		"Financial Express",
		"Investing.com India",
	}, names)

	assert.Equal(t, 2500, sources[3].RateLimit)
	assert.Equal(t, "https://pulse.zerodha.com", sources[2].Selectors.BaseURL())
	assert.Equal(t, []string{".ad", ".tg-ads", "script", "style"}, sources[1].Selectors.ContentCleanup())
}

// TestParse_RejectsIncompleteEntries verifies entries need a name, url and
// the list selectors
func TestParse_RejectsIncompleteEntries(t *testing.T) {
	_, err := Parse([]byte("- name: Missing URL\n"))
	assert.Error(t, err)

	_, err = Parse([]byte(`- name: No container
  url: https://example.com
  selectors:
    listPage:
      title: h2
      link: a
`))
	assert.ErrorContains(t, err, "articleContainer")
}

// TestApply_Idempotent verifies a second run creates nothing
func TestApply_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sources, err := Sources()
	require.NoError(t, err)

	result, err := Apply(ctx, s, sources, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 6}, result)

	result, err = Apply(ctx, s, sources, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 6}, result)

	stored, err := s.ListSources(ctx, false)
	require.NoError(t, err)
	assert.Len(t, stored, 6)
}

// TestApply_KeepsExistingSources verifies a source already stored under a
// catalogue URL is not modified
func TestApply_KeepsExistingSources(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.CreateSource(ctx, store.NewSource{
		Name:      "My Zerodha",
		URL:       "https://pulse.zerodha.com/",
		IsActive:  false,
		RateLimit: 9000,
	})
	require.NoError(t, err)

	sources, err := Sources()
	require.NoError(t, err)

	result, err := Apply(ctx, s, sources, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Created)
	assert.Equal(t, 1, result.Skipped)

	all, err := s.ListSources(ctx, false)
	require.NoError(t, err)
	for _, source := range all {
		if source.URL == "https://pulse.zerodha.com/" {
			assert.Equal(t, "My Zerodha", source.Name)
			assert.False(t, source.IsActive)
			assert.Equal(t, 9000, source.RateLimit)
		}
	}
}

// TestApply_PersistsSettings verifies stored settings are kept and the row
// exists afterwards
func TestApply_PersistsSettings(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateSettings(ctx, store.Settings{ScrapeInterval: 15, EnableAutoScrape: false})
	require.NoError(t, err)

	_, err = Apply(ctx, s, nil, logging.Discard())
	require.NoError(t, err)

	settings, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, settings.ScrapeInterval)
	assert.False(t, settings.EnableAutoScrape)
}

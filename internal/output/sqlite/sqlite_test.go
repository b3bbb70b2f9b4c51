package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-crawler/internal/models"
)

func openTemp(t *testing.T) (*Archive, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.db")
	a, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, path
}

func TestWriteResults(t *testing.T) {
	a, _ := openTemp(t)
	ctx := context.Background()

	err := a.WriteResults(ctx, []models.CrawlResult{
		{Domain: "https://shop.test", ProductURLs: []string{"https://shop.test/p/1", "https://shop.test/p/2"}, Status: models.StatusCompleted},
		{Domain: "https://blog.test", ProductURLs: []string{}, Status: models.StatusCompleted},
	}, time.Now())
	require.NoError(t, err)

	urls, err := a.ProductURLs(ctx, "https://shop.test")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.test/p/1", "https://shop.test/p/2"}, urls)

	urls, err = a.ProductURLs(ctx, "https://blog.test")
	require.NoError(t, err)
	assert.Empty(t, urls)

	domains, err := a.Domains(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://blog.test", "https://shop.test"}, domains)
}

func TestArchivePersistsAcrossOpen(t *testing.T) {
	a, path := openTemp(t)
	ctx := context.Background()
	require.NoError(t, a.WriteResults(ctx, []models.CrawlResult{
		{Domain: "https://shop.test", ProductURLs: []string{"https://shop.test/item/1"}, Status: models.StatusCompleted},
	}, time.Now()))
	require.NoError(t, a.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	urls, err := reopened.ProductURLs(ctx, "https://shop.test")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.test/item/1"}, urls)
}

func TestWriteNoResults(t *testing.T) {
	a, _ := openTemp(t)
	require.NoError(t, a.WriteResults(context.Background(), nil, time.Now()))

	domains, err := a.Domains(context.Background())
	require.NoError(t, err)
	assert.Empty(t, domains)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"product-crawler/internal/config"
	"product-crawler/internal/models"
	"product-crawler/internal/output/sqlite"
)

type recordingRunner struct {
	domains []string
	limits  models.Limits
	results []models.CrawlResult
}

func (r *recordingRunner) CrawlDomains(_ context.Context, domains []string, limits models.Limits) []models.CrawlResult {
	r.domains = domains
	r.limits = limits
	if r.results == nil {
		return []models.CrawlResult{}
	}
	return r.results
}

func factoryFor(r crawlRunner) runnerFactory {
	return func(config.Config, *zap.Logger) (crawlRunner, error) { return r, nil }
}

func execute(t *testing.T, newRunner runnerFactory, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(newRunner)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReadTargets(t *testing.T) {
	t.Run("args win", func(t *testing.T) {
		got, err := readTargets([]string{"a.example"}, "missing.txt", strings.NewReader("b.example"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a.example"}, got)
	})

	t.Run("file skips blanks and comments", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "targets.txt")
		require.NoError(t, os.WriteFile(path, []byte("# shops\nshop.example\n\n  store.example  \n"), 0o600))
		got, err := readTargets(nil, path, strings.NewReader("ignored.example"))
		require.NoError(t, err)
		assert.Equal(t, []string{"shop.example", "store.example"}, got)
	})

	t.Run("stdin", func(t *testing.T) {
		got, err := readTargets(nil, "", strings.NewReader("one.example\ntwo.example\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"one.example", "two.example"}, got)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readTargets(nil, filepath.Join(t.TempDir(), "nope.txt"), nil)
		assert.Error(t, err)
	})
}

func TestCrawlCommandPassesFlags(t *testing.T) {
	runner := &recordingRunner{results: []models.CrawlResult{
		{Domain: "https://shop.example", ProductURLs: []string{"https://shop.example/item/1"}, Status: models.StatusCompleted},
	}}

	out, err := execute(t, factoryFor(runner), "", "shop.example", "--max-pages", "7", "--max-depth", "1")
	require.NoError(t, err)

	assert.Equal(t, []string{"shop.example"}, runner.domains)
	assert.Equal(t, models.Limits{MaxPages: 7, MaxDepth: 1}, runner.limits)

	var got []models.CrawlResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, runner.results, got)
}

func TestCrawlCommandDefaults(t *testing.T) {
	runner := &recordingRunner{}

	out, err := execute(t, factoryFor(runner), "shop.example\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"shop.example"}, runner.domains)
	assert.Equal(t, models.DefaultLimits(), runner.limits)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestCrawlCommandRequiresDomains(t *testing.T) {
	_, err := execute(t, factoryFor(&recordingRunner{}), "\n# nothing\n")
	assert.ErrorIs(t, err, models.ErrNoDomains)
}

func TestCrawlCommandRunnerSetupError(t *testing.T) {
	failing := func(config.Config, *zap.Logger) (crawlRunner, error) {
		return nil, errors.New("no extractor")
	}
	_, err := execute(t, failing, "", "shop.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crawler setup")
}

func TestCrawlCommandArchivesResults(t *testing.T) {
	runner := &recordingRunner{results: []models.CrawlResult{
		{Domain: "https://shop.example", ProductURLs: []string{"https://shop.example/p/1", "https://shop.example/p/2"}, Status: models.StatusCompleted},
		{Domain: "https://empty.example", ProductURLs: []string{}, Status: models.StatusCompleted},
	}}
	dbPath := filepath.Join(t.TempDir(), "results.db")

	_, err := execute(t, factoryFor(runner), "", "shop.example", "empty.example", "--db", dbPath)
	require.NoError(t, err)

	archive, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })

	urls, err := archive.ProductURLs(context.Background(), "https://shop.example")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.example/p/1", "https://shop.example/p/2"}, urls)

	domains, err := archive.Domains(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://empty.example", "https://shop.example"}, domains)
}

func TestCrawlCommandAgainstLiveSite(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body><a href="/products/9">nine</a><a href="/about">about</a></body></html>`)
	})
	mux.HandleFunc("/products/9", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>product</body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>about</body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	out, err := execute(t, newHTTPRunner, "", srv.URL, "--max-pages", "10", "--max-depth", "2")
	require.NoError(t, err)

	var got []models.CrawlResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, srv.URL, got[0].Domain)
	assert.Equal(t, []string{srv.URL + "/products/9"}, got[0].ProductURLs)
	assert.Equal(t, models.StatusCompleted, got[0].Status)
}

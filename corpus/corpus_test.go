package corpus

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, dir, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadParsesAndPreprocesses(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, "fra.txt", "Go.\tVa !\nHi.\tSalut !\n")

	source, target, err := NewLoader(dir).Load(context.Background(), "eng-fra")
	require.NoError(t, err)
	require.Len(t, source, 2)
	require.Len(t, target, 2)
	assert.Equal(t, "<start> go . <end>", source[0])
	assert.Equal(t, "<start> va ! <end>", target[0])
	assert.Equal(t, "<start> salut ! <end>", target[1])
}

func TestLoadOrientsNonEnglishPairs(t *testing.T) {
	dir := t.TempDir()
	// Column order in corpus files is always English first.
	writeCorpus(t, dir, "fra.txt", "Go.\tVa !\n")

	source, target, err := NewLoader(dir).Load(context.Background(), "fra-eng")
	require.NoError(t, err)
	assert.Equal(t, "<start> va ! <end>", source[0])
	assert.Equal(t, "<start> go . <end>", target[0])
}

func TestLoadHonorsLimit(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, "fra.txt", "Go.\tVa !\nHi.\tSalut !\nRun!\tCours !\n")

	loader := NewLoader(dir)
	loader.Limit = 2
	source, _, err := loader.Load(context.Background(), "eng-fra")
	require.NoError(t, err)
	assert.Len(t, source, 2)
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, "fra.txt", "no tabs here\nGo.\tVa !\n\n")

	source, _, err := NewLoader(dir).Load(context.Background(), "eng-fra")
	require.NoError(t, err)
	assert.Len(t, source, 1)
}

func TestLoadWritesAndReusesParquetCache(t *testing.T) {
	dir := t.TempDir()
	raw := writeCorpus(t, dir, "fra.txt", "Go.\tVa !\n")

	loader := NewLoader(dir)
	first, _, err := loader.Load(context.Background(), "eng-fra")
	require.NoError(t, err)

	cache := loader.cachePath("eng-fra")
	require.FileExists(t, cache)

	// Remove the raw file: the second load must come from the cache.
	require.NoError(t, os.Remove(raw))
	second, _, err := loader.Load(context.Background(), "eng-fra")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// zipArchive builds an in-memory zip holding a single corpus file.
func zipArchive(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestLoadDownloadsAndExtractsArchive(t *testing.T) {
	archive := zipArchive(t, "fra.txt", "Go.\tVa !\nHi.\tSalut !\n")
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		require.Equal(t, "/fra-eng.zip", r.URL.Path)
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	dir := t.TempDir()
	loader := NewLoader(dir)
	loader.BaseURL = server.URL
	source, target, err := loader.Load(context.Background(), "eng-fra")
	require.NoError(t, err)
	require.Len(t, source, 2)
	assert.Equal(t, "<start> go . <end>", source[0])
	assert.Equal(t, "<start> salut ! <end>", target[1])
	assert.Equal(t, 1, hits)

	// The archive is fetched once and extracted next to itself; the
	// temporary download name must be gone after the atomic rename.
	assert.FileExists(t, filepath.Join(dir, "fra.txt"))
	assert.FileExists(t, filepath.Join(dir, "fra-eng.zip"))
	assert.NoFileExists(t, filepath.Join(dir, "fra-eng.zip.downloading"))
}

func TestLoadSurfacesDownloadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	dir := t.TempDir()
	loader := NewLoader(dir)
	loader.BaseURL = server.URL
	_, _, err := loader.Load(context.Background(), "eng-fra")
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "fra-eng.zip"))
	assert.NoFileExists(t, filepath.Join(dir, "fra-eng.zip.downloading"))
}

func TestLoadRejectsBadPair(t *testing.T) {
	loader := NewLoader(t.TempDir())
	_, _, err := loader.Load(context.Background(), "engfra")
	assert.Error(t, err)
}

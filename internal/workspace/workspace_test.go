package workspace

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/config"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	return New(config.PathsConfig{
		Root:       t.TempDir(),
		DataDir:    "data",
		GeoJSONDir: "geojsons",
		RawDataDir: "raw_data",
		OutputsDir: "outputs",
		MapsDir:    "maps",
	})
}

func TestNew_ResolvesAgainstRoot(t *testing.T) {
	ws := New(config.PathsConfig{
		Root:       "/srv/project",
		DataDir:    "data",
		GeoJSONDir: "/abs/geo",
		OutputsDir: "outputs",
	})
	assert.Equal(t, "/srv/project/data", ws.DataDir)
	assert.Equal(t, "/abs/geo", ws.GeoJSONDir)
	assert.Equal(t, "/srv/project/outputs", ws.OutputsDir)
}

func TestPathResolution(t *testing.T) {
	ws := New(config.PathsConfig{Root: "/p", DataDir: "data", GeoJSONDir: "geojsons", MapsDir: "maps"})
	assert.Equal(t, "/p/data/deals.csv", ws.TablePath("deals.csv"))
	assert.Equal(t, "/tmp/x.csv", ws.TablePath("/tmp/x.csv"))
	assert.Equal(t, "/p/geojsons/78.geojson", ws.GeometryPath("78.geojson"))
	assert.Equal(t, "/p/maps/a.html", ws.MapPath("a.html"))
}

func TestRequirePath(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.csv")
	require.NoError(t, os.WriteFile(existing, []byte("x\n"), 0o644))

	got, err := RequirePath(existing)
	require.NoError(t, err)
	assert.Equal(t, existing, got)

	_, err = RequirePath(filepath.Join(dir, "nope.csv"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListTablesAndGeometries(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.MkdirAll(ws.DataDir, 0o755))
	require.NoError(t, os.MkdirAll(ws.GeoJSONDir, 0o755))
	for _, name := range []string{"b.csv", "a.xlsx", "notes.md", "c.PARQUET"} {
		require.NoError(t, os.WriteFile(filepath.Join(ws.DataDir, name), nil, 0o644))
	}
	for _, name := range []string{"78.geojson", "x.json", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(ws.GeoJSONDir, name), nil, 0o644))
	}

	tables, err := ws.ListTables()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.xlsx", "b.csv", "c.PARQUET"}, tables)

	geoms, err := ws.ListGeometries()
	require.NoError(t, err)
	assert.Equal(t, []string{"78.geojson", "x.json"}, geoms)
}

func TestListTables_MissingDir(t *testing.T) {
	ws := newTestWorkspace(t)
	tables, err := ws.ListTables()
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestEnsureOutputs(t *testing.T) {
	ws := newTestWorkspace(t)
	dir, err := ws.EnsureOutputs()
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.txt")
	err := WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "hello")
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteFileAtomic_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	err := WriteFileAtomic(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return errors.New("boom")
	})
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file should be cleaned up")
}

func TestWriteFileAtomic_Mode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.html")
	require.NoError(t, WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "<html></html>")
		return err
	}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

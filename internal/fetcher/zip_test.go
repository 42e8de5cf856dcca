package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spbu-research/spbu-maps/internal/apperr"
)

// bundle writes a zip whose entries are added in the given name/content order.
func bundle(t *testing.T, entries ...string) string {
	t.Helper()
	require.Zero(t, len(entries)%2, "entries are name/content pairs")
	path := filepath.Join(t.TempDir(), "bundle.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	for i := 0; i < len(entries); i += 2 {
		w, err := zw.Create(entries[i])
		require.NoError(t, err)
		_, err = w.Write([]byte(entries[i+1]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractZIP(t *testing.T) {
	zipPath := bundle(t,
		"districts/", "",
		"districts/districts.shp", "shp",
		"districts/districts.dbf", "dbf",
		"__MACOSX/districts/._districts.shp", "junk",
		"README.txt", "boundaries 2024",
	)
	dest := t.TempDir()

	paths, err := ExtractZIP(zipPath, dest)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dest, "districts", "districts.shp"),
		filepath.Join(dest, "districts", "districts.dbf"),
		filepath.Join(dest, "README.txt"),
	}, paths)

	data, err := os.ReadFile(filepath.Join(dest, "README.txt"))
	require.NoError(t, err)
	assert.Equal(t, "boundaries 2024", string(data))
	assert.NoDirExists(t, filepath.Join(dest, "__MACOSX"))
}

func TestExtractZIP_ZipSlip(t *testing.T) {
	zipPath := bundle(t, "../../outside.csv", "a,b")

	_, err := ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}

func TestExtractZIP_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "districts.zip")
	require.NoError(t, os.WriteFile(path, []byte("<html>rate limited</html>"), 0o644))

	_, err := ExtractZIP(path, t.TempDir())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindParse))
}

func TestFindByExt(t *testing.T) {
	paths := []string{"/r/readme.txt", "/r/districts.SHP", "/r/districts.dbf", "/r/districts.geojson"}

	got, ok := FindByExt(paths, ".geojson", ".shp")
	require.True(t, ok)
	assert.Equal(t, "/r/districts.geojson", got)

	got, ok = FindByExt(paths, ".shp")
	require.True(t, ok)
	assert.Equal(t, "/r/districts.SHP", got)

	_, ok = FindByExt(paths, ".parquet")
	assert.False(t, ok)
}

func TestFindGeometry(t *testing.T) {
	tests := []struct {
		name    string
		paths   []string
		want    string
		wantErr string
	}{
		{"geojson wins", []string{"/r/q.shp", "/r/q.dbf", "/r/q.shx", "/r/q.geojson"}, "/r/q.geojson", ""},
		{"complete shapefile", []string{"/r/q.SHP", "/r/q.DBF", "/r/q.shx", "/r/q.prj"}, "/r/q.SHP", ""},
		{"missing shx", []string{"/r/q.shp", "/r/q.dbf"}, "", "no .shx"},
		{"nothing", []string{"/r/readme.txt"}, "", "no .geojson or .shp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindGeometry(tt.paths)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apperr.Is(err, apperr.KindNotFound))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

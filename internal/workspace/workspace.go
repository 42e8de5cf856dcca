// Package workspace resolves dataset names against the project directories
// and writes output files atomically.
package workspace

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/config"
)

// TableSuffixes lists the table formats the loader understands.
var TableSuffixes = map[string]bool{
	".csv":     true,
	".tsv":     true,
	".txt":     true,
	".xlsx":    true,
	".parquet": true,
	".sqlite":  true,
	".db":      true,
}

// GeometrySuffixes lists the geometry formats the loader understands.
var GeometrySuffixes = map[string]bool{
	".geojson": true,
	".json":    true,
	".shp":     true,
}

// Workspace holds the resolved project directories.
type Workspace struct {
	DataDir    string
	GeoJSONDir string
	RawDataDir string
	OutputsDir string
	MapsDir    string
}

// New resolves every directory in cfg against cfg.Root.
func New(cfg config.PathsConfig) *Workspace {
	root := cfg.Root
	if root == "" {
		root = "."
	}
	join := func(dir string) string {
		if filepath.IsAbs(dir) {
			return filepath.Clean(dir)
		}
		return filepath.Join(root, dir)
	}
	return &Workspace{
		DataDir:    join(cfg.DataDir),
		GeoJSONDir: join(cfg.GeoJSONDir),
		RawDataDir: join(cfg.RawDataDir),
		OutputsDir: join(cfg.OutputsDir),
		MapsDir:    join(cfg.MapsDir),
	}
}

func resolve(base, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(base, name)
}

// TablePath resolves a table name against the data directory.
// Absolute paths are returned unchanged.
func (w *Workspace) TablePath(name string) string {
	return resolve(w.DataDir, name)
}

// GeometryPath resolves a geometry name against the geojson directory.
func (w *Workspace) GeometryPath(name string) string {
	return resolve(w.GeoJSONDir, name)
}

// OutputPath resolves an output name against the outputs directory.
func (w *Workspace) OutputPath(name string) string {
	return resolve(w.OutputsDir, name)
}

// MapPath resolves an output name against the maps directory.
func (w *Workspace) MapPath(name string) string {
	return resolve(w.MapsDir, name)
}

// RawPath resolves a file name against the raw data directory.
func (w *Workspace) RawPath(name string) string {
	return resolve(w.RawDataDir, name)
}

// RequirePath fails with a NotFound error when path does not exist.
func RequirePath(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", apperr.NotFound(err, "path %s does not exist", path)
		}
		return "", eris.Wrapf(err, "workspace: stat %s", path)
	}
	return path, nil
}

// EnsureOutputs creates the outputs directory if missing and returns it.
func (w *Workspace) EnsureOutputs() (string, error) {
	if err := os.MkdirAll(w.OutputsDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "workspace: create %s", w.OutputsDir)
	}
	return w.OutputsDir, nil
}

// ListTables returns the sorted names of supported tables in the data directory.
func (w *Workspace) ListTables() ([]string, error) {
	return listDir(w.DataDir, TableSuffixes)
}

// ListGeometries returns the sorted names of supported geometry files.
func (w *Workspace) ListGeometries() ([]string, error) {
	return listDir(w.GeoJSONDir, GeometrySuffixes)
}

func listDir(dir string, suffixes map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "workspace: read dir %s", dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if suffixes[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// WriteFileAtomic creates the parent directory, streams fn's output to a
// temporary file next to path and renames it into place. On any error the
// temporary file is removed and path is left untouched.
func WriteFileAtomic(path string, fn func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "workspace: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "workspace: create temp file in %s", dir)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = fn(tmp); err != nil {
		return err
	}
	// CreateTemp opens files 0600.
	if err = tmp.Chmod(0o644); err != nil {
		return eris.Wrapf(err, "workspace: chmod %s", tmp.Name())
	}
	if err = tmp.Close(); err != nil {
		return eris.Wrapf(err, "workspace: close %s", tmp.Name())
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "workspace: rename to %s", path)
	}
	return nil
}

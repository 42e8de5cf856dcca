package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/workspace"
)

// shapefileSidecars must sit next to a .shp for the loader to read it.
var shapefileSidecars = []string{".dbf", ".shx"}

// ExtractZIP unpacks every regular file of the archive under destDir and
// returns their paths in archive order. Entries escaping destDir are rejected
// and resource-fork folders (__MACOSX) are skipped.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, apperr.Parse(err, "zip: open %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	root := filepath.Clean(destDir)
	var paths []string
	for _, entry := range r.File {
		if entry.FileInfo().IsDir() || strings.HasPrefix(entry.Name, "__MACOSX/") {
			continue
		}
		target := filepath.Join(root, entry.Name)
		if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return paths, eris.Errorf("zip: entry %q escapes %s (zip slip)", entry.Name, destDir)
		}
		if err := unpack(entry, target); err != nil {
			return paths, err
		}
		paths = append(paths, target)
	}

	zap.L().Debug("archive extracted",
		zap.String("component", "fetcher"),
		zap.String("archive", zipPath),
		zap.Int("files", len(paths)),
	)
	return paths, nil
}

func unpack(entry *zip.File, target string) error {
	rc, err := entry.Open()
	if err != nil {
		return eris.Wrapf(err, "zip: open entry %s", entry.Name)
	}
	defer rc.Close() //nolint:errcheck

	return workspace.WriteFileAtomic(target, func(w io.Writer) error {
		if _, err := io.Copy(w, rc); err != nil {
			return eris.Wrapf(err, "zip: write %s", entry.Name)
		}
		return nil
	})
}

// FindByExt returns the first path with one of exts (case-insensitive).
// Earlier exts win.
func FindByExt(paths []string, exts ...string) (string, bool) {
	for _, ext := range exts {
		for _, p := range paths {
			if strings.EqualFold(filepath.Ext(p), ext) {
				return p, true
			}
		}
	}
	return "", false
}

// FindGeometry picks the geometry file out of an extracted bundle: a GeoJSON
// file, else a shapefile whose .dbf and .shx were extracted with it.
func FindGeometry(paths []string) (string, error) {
	if p, ok := FindByExt(paths, ".geojson"); ok {
		return p, nil
	}
	shp, ok := FindByExt(paths, ".shp")
	if !ok {
		return "", apperr.NotFound(nil, "zip: no .geojson or .shp in archive")
	}
	have := make(map[string]bool, len(paths))
	for _, p := range paths {
		have[strings.ToLower(p)] = true
	}
	stem := strings.TrimSuffix(shp, filepath.Ext(shp))
	for _, ext := range shapefileSidecars {
		if !have[strings.ToLower(stem+ext)] {
			return "", apperr.NotFound(nil, "zip: %s has no %s next to it", filepath.Base(shp), ext)
		}
	}
	return shp, nil
}

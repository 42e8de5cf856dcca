package geo

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/workspace"
)

type rawDocument struct {
	Type       string            `json:"type"`
	Features   []json.RawMessage `json:"features"`
	Geometry   json.RawMessage   `json:"geometry"`
	Properties json.RawMessage   `json:"properties"`
	ID         any               `json:"id"`
}

// Load reads a geometry file, choosing the format by suffix: .geojson and
// .json are GeoJSON, .shp is an ESRI shapefile.
func Load(path, idColumn string) (*Collection, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".geojson", ".json":
		return LoadGeoJSON(path, idColumn)
	case ".shp":
		return LoadShapefile(path, idColumn)
	default:
		if _, err := workspace.RequirePath(path); err != nil {
			return nil, err
		}
		return nil, apperr.Parse(nil, "geo: unsupported geometry format %q", ext)
	}
}

// LoadGeoJSON reads a FeatureCollection (or a single Feature). When idColumn
// is set every feature must carry that property.
func LoadGeoJSON(path, idColumn string) (*Collection, error) {
	if _, err := workspace.RequirePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: read %s", path)
	}

	c, err := DecodeGeoJSON(data)
	if err != nil {
		return nil, apperr.Parse(err, "geo: parse %s", path)
	}

	if idColumn != "" {
		for i, r := range c.Records {
			if _, ok := r.Properties[idColumn]; !ok {
				return nil, apperr.Schema(nil, "geo: feature %d in %s has no property %q", i, path, idColumn)
			}
		}
		c.IDColumn = idColumn
	}

	zap.L().Debug("geojson loaded",
		zap.String("component", "geo"),
		zap.String("path", path),
		zap.Int("features", c.Len()),
	)
	return c, nil
}

// DecodeGeoJSON parses a GeoJSON document. Integral property numbers become
// int64, other numbers float64.
func DecodeGeoJSON(data []byte) (*Collection, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "geo: decode json")
	}

	var features []json.RawMessage
	switch doc.Type {
	case "FeatureCollection":
		features = doc.Features
	case "Feature":
		features = []json.RawMessage{data}
	default:
		return nil, eris.Errorf("geo: expected FeatureCollection or Feature, got %q", doc.Type)
	}

	c := &Collection{Records: make([]*Record, 0, len(features))}
	for i, raw := range features {
		var f rawDocument
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, eris.Wrapf(err, "geo: decode feature %d", i)
		}
		if f.Type != "Feature" {
			return nil, eris.Errorf("geo: feature %d has type %q", i, f.Type)
		}

		g, err := decodeGeometry(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: feature %d", i)
		}
		props, err := decodeProperties(f.Properties)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: feature %d properties", i)
		}
		for _, k := range objectKeys(f.Properties) {
			c.AddColumn(k)
		}
		if f.ID != nil {
			if _, taken := props["id"]; !taken {
				props["id"] = normalize(f.ID)
				c.AddColumn("id")
			}
		}
		c.Records = append(c.Records, &Record{Geometry: g, Properties: props})
	}
	return c, nil
}

func decodeGeometry(raw json.RawMessage) (geom.T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var g geom.T
	if err := geojson.Unmarshal(trimmed, &g); err != nil {
		return nil, eris.Wrap(err, "invalid geometry")
	}
	return g, nil
}

func decodeProperties(raw json.RawMessage) (map[string]any, error) {
	props := map[string]any{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return props, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&props); err != nil {
		return nil, err
	}
	for k, v := range props {
		props[k] = normalize(v)
	}
	return props, nil
}

// objectKeys lists the top-level keys of a JSON object in document order.
func objectKeys(raw []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, _ := tok.(string)
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}
	return keys
}

// normalize converts json.Number values, recursively.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, inner := range x {
			x[k] = normalize(inner)
		}
		return x
	case []any:
		for i, inner := range x {
			x[i] = normalize(inner)
		}
		return x
	}
	return v
}

// Save writes c as a GeoJSON FeatureCollection, replacing path atomically.
func Save(c *Collection, path string) error {
	err := workspace.WriteFileAtomic(path, func(w io.Writer) error {
		return Encode(w, c)
	})
	if err != nil {
		return err
	}
	zap.L().Info("geojson saved",
		zap.String("component", "geo"),
		zap.String("path", path),
		zap.Int("features", c.Len()),
	)
	return nil
}

// Encode writes c as a GeoJSON FeatureCollection.
func Encode(w io.Writer, c *Collection) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, len(c.Records))}
	for i, r := range c.Records {
		props := make(map[string]any, len(c.Columns))
		for _, col := range c.Columns {
			props[col] = r.Properties[col]
		}
		fc.Features[i] = &geojson.Feature{Geometry: r.Geometry, Properties: props}
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return eris.Wrap(err, "geo: encode geojson")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "geo: write geojson")
	}
	return nil
}

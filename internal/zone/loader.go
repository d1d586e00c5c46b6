package zone

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrZoneSetUnavailable marks a configured zone set whose geometry could not
// be loaded. It is fatal for a run.
var ErrZoneSetUnavailable = eris.New("zone: zone set unavailable")

// SetSpec describes where a zone set comes from.
type SetSpec struct {
	Name       string `yaml:"name" mapstructure:"name"`
	Path       string `yaml:"path" mapstructure:"path"`
	Kind       string `yaml:"kind" mapstructure:"kind"`
	LabelField string `yaml:"label_field" mapstructure:"label_field"` // per-feature label attribute
	Label      string `yaml:"label" mapstructure:"label"`             // fixed label when LabelField is empty
}

// FileProvider loads zone sets from shapefiles or GeoJSON files.
type FileProvider struct {
	specs []SetSpec
}

// NewFileProvider returns a provider for the given specs, in precedence order.
func NewFileProvider(specs []SetSpec) *FileProvider {
	return &FileProvider{specs: specs}
}

// LoadZoneSets reads every configured set. Files are read concurrently but the
// result keeps the declared precedence order. Any failure aborts the load.
func (p *FileProvider) LoadZoneSets(ctx context.Context) ([]*Set, error) {
	if len(p.specs) == 0 {
		return nil, eris.Wrap(ErrZoneSetUnavailable, "zone: no zone sets configured")
	}

	sets := make([]*Set, len(p.specs))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range p.specs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := LoadSet(spec)
			if err != nil {
				return err
			}
			sets[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, s := range sets {
		zap.L().Info("zone set loaded",
			zap.String("component", "zone.loader"),
			zap.String("set", s.Name),
			zap.String("kind", string(s.Kind)),
			zap.Int("features", len(s.Features)),
		)
	}
	return sets, nil
}

// LoadSet reads one zone set from disk. The format is chosen by extension:
// .shp (with its .dbf sidecar) or .geojson/.json.
func LoadSet(spec SetSpec) (*Set, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(spec.Kind)))
	switch kind {
	case "":
		kind = KindSpecial
	case KindSpecial, KindBase:
	default:
		return nil, unavailable(spec, eris.Errorf("unknown kind %q", spec.Kind))
	}
	if spec.LabelField == "" && spec.Label == "" {
		return nil, unavailable(spec, eris.New("either label_field or label is required"))
	}

	var (
		features []Feature
		err      error
	)
	switch strings.ToLower(filepath.Ext(spec.Path)) {
	case ".shp":
		features, err = readShapefile(spec)
	case ".geojson", ".json":
		features, err = readGeoJSON(spec)
	default:
		err = eris.Errorf("unsupported geometry file %q", spec.Path)
	}
	if err != nil {
		return nil, unavailable(spec, err)
	}
	if len(features) == 0 {
		return nil, unavailable(spec, eris.New("no polygon features"))
	}
	if err := checkGeographic(features); err != nil {
		return nil, unavailable(spec, err)
	}

	name := spec.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(spec.Path), filepath.Ext(spec.Path))
	}
	return &Set{Name: name, Kind: kind, Features: features}, nil
}

func unavailable(spec SetSpec, cause error) error {
	return eris.Wrapf(ErrZoneSetUnavailable, "zone: set %q (%s): %v", spec.Name, spec.Path, cause)
}

func readShapefile(spec SetSpec) ([]Feature, error) {
	if _, err := os.Stat(spec.Path); err != nil {
		return nil, err
	}
	if err := checkPrj(spec.Path); err != nil {
		return nil, err
	}
	reader, err := shp.Open(spec.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open shapefile")
	}
	defer func() { _ = reader.Close() }()

	labelIdx := -1
	if spec.LabelField != "" {
		labelIdx = fieldIndex(reader, spec.LabelField)
		if labelIdx < 0 {
			return nil, eris.Errorf("label field %q not found", spec.LabelField)
		}
	}

	var (
		features []Feature
		skipped  int
	)
	for reader.Next() {
		_, shape := reader.Shape()
		mp := shapeToMultiPolygon(shape)
		if mp == nil {
			skipped++
			continue
		}
		label := spec.Label
		if labelIdx >= 0 {
			label = NormalizeLabel(reader.Attribute(labelIdx))
		}
		if label == "" {
			skipped++
			continue
		}
		features = append(features, NewFeature(label, mp))
	}

	if skipped > 0 {
		zap.L().Debug("zone: skipped shapefile records",
			zap.String("set", spec.Name),
			zap.Int("skipped", skipped),
		)
	}
	return features, nil
}

// fieldIndex returns the index of a named DBF field, or -1 if not found.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

// shapeToMultiPolygon converts a shapefile polygon into a multipolygon with
// one single-ring polygon per part. Non-polygon shapes yield nil.
func shapeToMultiPolygon(s shp.Shape) *geom.MultiPolygon {
	var (
		parts  []int32
		points []shp.Point
	)
	switch p := s.(type) {
	case *shp.Polygon:
		parts, points = p.Parts, p.Points
	case *shp.PolygonZ:
		parts, points = p.Parts, p.Points
	case *shp.PolygonM:
		parts, points = p.Parts, p.Points
	default:
		return nil
	}
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || end-start < 4 {
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for _, pt := range points[start:end] {
			flat = append(flat, pt.X, pt.Y)
		}
		poly := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("zone: skipping malformed polygon part", zap.Int("part", i), zap.Error(err))
			continue
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// checkPrj rejects a shapefile whose .prj sidecar declares anything other
// than geographic WGS84. Case points are lon/lat, so a projected set would
// silently match nothing. A missing .prj is left to checkGeographic.
func checkPrj(shpPath string) error {
	prjPath := strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".prj"
	data, err := os.ReadFile(prjPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eris.Wrap(err, "read prj")
	}
	wkt := strings.ToUpper(strings.TrimSpace(string(data)))
	if wkt == "" {
		return nil
	}
	if !strings.HasPrefix(wkt, "GEOGCS[") && !strings.HasPrefix(wkt, "GEOGCRS[") {
		return eris.Errorf("coordinate system is not geographic: %.40s", wkt)
	}
	if !strings.Contains(wkt, "WGS_1984") && !strings.Contains(wkt, "WGS 84") && !strings.Contains(wkt, "WGS84") {
		return eris.Errorf("geographic datum is not WGS84: %.40s", wkt)
	}
	return nil
}

// checkGeographic fails when any feature lies outside lon [-180,180] and
// lat [-90,90], which means the geometry is in a projected unit like metres.
func checkGeographic(features []Feature) error {
	for _, f := range features {
		b := f.bounds
		if b == nil || b.IsEmpty() {
			continue
		}
		if b.Min(0) < -180 || b.Max(0) > 180 || b.Min(1) < -90 || b.Max(1) > 90 {
			return eris.Errorf("feature %q bounds (%g,%g)-(%g,%g) are not lon/lat degrees",
				f.Label, b.Min(0), b.Min(1), b.Max(0), b.Max(1))
		}
	}
	return nil
}

func readGeoJSON(spec SetSpec) ([]Feature, error) {
	data, err := os.ReadFile(spec.Path)
	if err != nil {
		return nil, err
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "decode geojson")
	}

	var features []Feature
	for i, f := range fc.Features {
		mp := toMultiPolygon(f.Geometry)
		if mp == nil {
			continue
		}
		label := spec.Label
		if spec.LabelField != "" {
			v, ok := f.Properties[spec.LabelField]
			if !ok {
				return nil, eris.Errorf("feature %d: label field %q not found", i, spec.LabelField)
			}
			label = NormalizeLabel(fmt.Sprint(v))
		}
		if label == "" {
			continue
		}
		features = append(features, NewFeature(label, mp))
	}
	return features, nil
}

func toMultiPolygon(g geom.T) *geom.MultiPolygon {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(t.Layout())
		if err := mp.Push(t); err != nil {
			return nil
		}
		return mp
	default:
		return nil
	}
}

// NormalizeLabel trims a zone label and renders integral numbers without a
// fractional part, so DBF values like "2.000000" become "2".
func NormalizeLabel(s string) string {
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if s == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

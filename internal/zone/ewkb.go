package zone

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// EncodeEWKB renders a feature's geometry as EWKB with SRID 4326, the format
// PostGIS accepts through COPY.
func EncodeEWKB(f Feature) ([]byte, error) {
	if f.Geom == nil {
		return nil, nil
	}
	g := f.Geom.Clone().SetSRID(4326)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrapf(err, "zone: encode EWKB for %q", f.Label)
	}
	return data, nil
}

package cadastre

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/audit-flash/internal/fetcher"
)

const source = "cadastre"

// ParcelAt implements Client.
func (c *client) ParcelAt(ctx context.Context, lat, lon float64) (*Parcel, error) {
	point, err := json.Marshal(map[string]any{
		"type":        "Point",
		"coordinates": []float64{lon, lat},
	})
	if err != nil {
		return nil, eris.Wrap(err, "cadastre: encode point")
	}
	reqURL := strings.TrimRight(c.baseURL, "/") + "/api/cadastre/parcelle?" + url.Values{"geom": {string(point)}}.Encode()

	var fc geojson.FeatureCollection
	if err := fetcher.GetJSON(ctx, c.httpClient, c.limiter, source, reqURL, &fc); err != nil {
		return nil, eris.Wrap(err, "cadastre: parcel lookup")
	}
	if len(fc.Features) == 0 {
		return nil, eris.Wrapf(fetcher.ErrNotFound, "cadastre: no parcel at %.6f,%.6f", lat, lon)
	}
	return parseFeature(fc.Features[0])
}

func parseFeature(f *geojson.Feature) (*Parcel, error) {
	p := &Parcel{
		ID:       stringProp(f.Properties, "id"),
		CityCode: stringProp(f.Properties, "code_insee"),
		Section:  stringProp(f.Properties, "section"),
		Number:   stringProp(f.Properties, "numero"),
	}
	if p.ID == "" {
		p.ID = f.ID
	}
	if p.ID == "" {
		return nil, eris.New("cadastre: parcel has no identifier")
	}
	p.Contenance = numberProp(f.Properties, "contenance")

	if f.Geometry != nil {
		area, err := FootprintArea(f.Geometry)
		if err != nil {
			return nil, err
		}
		p.Footprint = area
	}
	return p, nil
}

func stringProp(props map[string]any, key string) string {
	switch v := props[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	}
}

func numberProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

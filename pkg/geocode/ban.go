package geocode

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/audit-flash/internal/fetcher"
)

const source = "ban"

// ErrAddressNotFound means BAN returned no match above the score threshold.
var ErrAddressNotFound = eris.New("geocode: address not found")

type banResponse struct {
	Features []banFeature `json:"features"`
}

type banFeature struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // lon, lat
	} `json:"geometry"`
	Properties struct {
		Label       string  `json:"label"`
		Score       float64 `json:"score"`
		HouseNumber string  `json:"housenumber"`
		Street      string  `json:"street"`
		Name        string  `json:"name"`
		PostCode    string  `json:"postcode"`
		City        string  `json:"city"`
		CityCode    string  `json:"citycode"`
		Type        string  `json:"type"`
	} `json:"properties"`
}

// Geocode implements Client.
func (g *geocoder) Geocode(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, eris.Wrap(ErrAddressNotFound, "geocode: empty address")
	}

	key := cacheKey(query)
	if g.pool != nil {
		r, err := g.checkCache(ctx, key)
		if g.onCache != nil {
			g.onCache(err == nil)
		}
		if err == nil {
			return r, nil
		}
	}

	r, err := g.search(ctx, query)
	if err != nil {
		return nil, err
	}

	if g.pool != nil {
		if err := g.storeCache(ctx, key, r); err != nil {
			zap.L().Warn("geocode: cache store failed", zap.Error(err))
		}
	}
	return r, nil
}

func (g *geocoder) search(ctx context.Context, query string) (*Result, error) {
	params := url.Values{"q": {query}, "limit": {"1"}}
	reqURL := strings.TrimRight(g.baseURL, "/") + "/search/?" + params.Encode()

	var resp banResponse
	if err := fetcher.GetJSON(ctx, g.httpClient, g.limiter, source, reqURL, &resp); err != nil {
		return nil, eris.Wrap(err, "geocode: ban search")
	}
	if len(resp.Features) == 0 {
		return nil, eris.Wrapf(ErrAddressNotFound, "geocode: no match for %q", query)
	}

	f := resp.Features[0]
	p := f.Properties
	if p.Score < g.minScore {
		return nil, eris.Wrapf(ErrAddressNotFound, "geocode: best match %q scored %.2f", p.Label, p.Score)
	}
	if len(f.Geometry.Coordinates) < 2 {
		return nil, eris.Errorf("geocode: match %q has no coordinates", p.Label)
	}

	street := p.Street
	if street == "" && p.Type == "street" {
		street = p.Name
	}
	return &Result{
		Label:       p.Label,
		HouseNumber: p.HouseNumber,
		Street:      street,
		PostCode:    p.PostCode,
		City:        p.City,
		CityCode:    p.CityCode,
		Latitude:    f.Geometry.Coordinates[1],
		Longitude:   f.Geometry.Coordinates[0],
		Score:       p.Score,
		Type:        p.Type,
	}, nil
}

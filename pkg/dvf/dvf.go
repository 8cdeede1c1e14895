// Package dvf reads property transactions from the Demandes de Valeurs
// Foncières (DVF) open-data API around a point.
package dvf

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/audit-flash/internal/fetcher"
)

// DefaultBaseURL is the public DVF endpoint.
const DefaultBaseURL = "https://api.cquest.org"

const source = "dvf"

// Mutation natures and local types used by the market filter.
const (
	NatureSale   = "Vente"
	TypeFlat     = "Appartement"
	dateLayout   = "2006-01-02"
	defaultRange = 500
)

// Client lists transactions near a point.
type Client interface {
	Sales(ctx context.Context, lat, lon float64) ([]Sale, error)
}

// Sale is one DVF mutation line.
type Sale struct {
	ID           string    `json:"id"`
	Date         time.Time `json:"date"`
	Nature       string    `json:"nature"`
	LocalType    string    `json:"local_type"`
	Price        float64   `json:"price"`
	BuiltSurface float64   `json:"built_surface"`
	PostalCode   string    `json:"postal_code"`
}

// PricePerSqm returns Price / BuiltSurface, or zero when the surface is unknown.
func (s Sale) PricePerSqm() float64 {
	if s.BuiltSurface <= 0 {
		return 0
	}
	return s.Price / s.BuiltSurface
}

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides the DVF endpoint.
func WithBaseURL(u string) Option {
	return func(c *client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithRadius sets the search radius in metres.
func WithRadius(m int) Option {
	return func(c *client) { c.radius = m }
}

type client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	radius     int
}

// NewClient creates a DVF client.
func NewClient(opts ...Option) Client {
	c := &client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(5, 5),
		radius:     defaultRange,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type dvfResponse struct {
	Results []struct {
		ID           string   `json:"id_mutation"`
		Date         string   `json:"date_mutation"`
		Nature       string   `json:"nature_mutation"`
		Price        *float64 `json:"valeur_fonciere"`
		LocalType    string   `json:"type_local"`
		BuiltSurface *float64 `json:"surface_reelle_bati"`
		PostalCode   string   `json:"code_postal"`
	} `json:"resultats"`
}

// Sales implements Client. Lines with an unparseable date are skipped.
func (c *client) Sales(ctx context.Context, lat, lon float64) ([]Sale, error) {
	params := url.Values{
		"lat":  {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":  {strconv.FormatFloat(lon, 'f', 6, 64)},
		"dist": {strconv.Itoa(c.radius)},
	}
	reqURL := strings.TrimRight(c.baseURL, "/") + "/dvf?" + params.Encode()

	var resp dvfResponse
	if err := fetcher.GetJSON(ctx, c.httpClient, c.limiter, source, reqURL, &resp); err != nil {
		return nil, eris.Wrap(err, "dvf: list sales")
	}

	out := make([]Sale, 0, len(resp.Results))
	for _, r := range resp.Results {
		d, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			continue
		}
		s := Sale{
			ID:         r.ID,
			Date:       d,
			Nature:     r.Nature,
			LocalType:  r.LocalType,
			PostalCode: r.PostalCode,
		}
		if r.Price != nil {
			s.Price = *r.Price
		}
		if r.BuiltSurface != nil {
			s.BuiltSurface = *r.BuiltSurface
		}
		out = append(out, s)
	}
	return out, nil
}

// Package geocode normalizes French addresses through the Base Adresse
// Nationale (BAN) search API, with an optional Postgres result cache.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/audit-flash/internal/db"
)

// DefaultBaseURL is the public BAN endpoint.
const DefaultBaseURL = "https://api-adresse.data.gouv.fr"

// Client normalizes a free-text address.
type Client interface {
	// Geocode returns the best match for query, or an error wrapping
	// ErrAddressNotFound when BAN has no confident answer.
	Geocode(ctx context.Context, query string) (*Result, error)
}

// Result is a normalized address.
type Result struct {
	Label       string  `json:"label"`
	HouseNumber string  `json:"housenumber,omitempty"`
	Street      string  `json:"street,omitempty"`
	PostCode    string  `json:"postcode"`
	City        string  `json:"city"`
	CityCode    string  `json:"citycode"`
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
	Score       float64 `json:"score"`
	Type        string  `json:"type"`
	Cached      bool    `json:"-"`
}

// Option configures the client.
type Option func(*geocoder)

// WithBaseURL overrides the BAN endpoint.
func WithBaseURL(u string) Option {
	return func(g *geocoder) { g.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) { g.httpClient = hc }
}

// WithRateLimit sets the requests-per-second limit. BAN allows 50/s per IP.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithMinScore sets the relevance score below which a match is rejected.
func WithMinScore(s float64) Option {
	return func(g *geocoder) { g.minScore = s }
}

// WithCache enables the Postgres result cache. ttl <= 0 keeps entries forever.
func WithCache(pool db.Pool, ttl time.Duration) Option {
	return func(g *geocoder) {
		g.pool = pool
		g.cacheTTL = ttl
	}
}

// WithCacheObserver is called with the outcome of every cache lookup.
func WithCacheObserver(fn func(hit bool)) Option {
	return func(g *geocoder) { g.onCache = fn }
}

type geocoder struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	minScore   float64

	pool     db.Pool
	cacheTTL time.Duration
	onCache  func(hit bool)
}

// NewClient creates a BAN client.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(40, 40),
		minScore:   0.5,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

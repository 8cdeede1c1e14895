// Package cadastre queries the IGN API Carto cadastre module for the parcel
// under a point.
package cadastre

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public API Carto endpoint.
const DefaultBaseURL = "https://apicarto.ign.fr"

// Client looks up cadastral parcels.
type Client interface {
	// ParcelAt returns the parcel containing the WGS84 point, or an error
	// wrapping fetcher.ErrNotFound when no parcel matches.
	ParcelAt(ctx context.Context, lat, lon float64) (*Parcel, error)
}

// Parcel is one cadastral parcel.
type Parcel struct {
	ID         string  `json:"id"`
	CityCode   string  `json:"city_code"`
	Section    string  `json:"section"`
	Number     string  `json:"number"`
	Contenance float64 `json:"contenance"`
	Footprint  float64 `json:"footprint"`
}

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides the API Carto endpoint.
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

type client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a cadastre client.
func NewClient(opts ...Option) Client {
	c := &client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

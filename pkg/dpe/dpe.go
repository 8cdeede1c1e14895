// Package dpe searches the ADEME energy performance certificate (DPE) dataset
// for certificates issued near a point.
package dpe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/audit-flash/internal/fetcher"
)

// DefaultBaseURL is the ADEME data-fair dataset for existing dwellings.
const DefaultBaseURL = "https://data.ademe.fr/data-fair/api/v1/datasets/dpe03existant"

const source = "dpe"

// Building types reported by the dataset.
const (
	TypeBuilding  = "immeuble"
	TypeFlat      = "appartement"
	TypeHouse     = "maison"
	defaultRadius = 50
	pageSize      = 50
)

// Client finds certificates near a point.
type Client interface {
	Certificates(ctx context.Context, lat, lon float64) ([]Certificate, error)
}

// Certificate is one DPE record.
type Certificate struct {
	Number           string    `json:"number"`
	IssuedAt         time.Time `json:"issued_at"`
	Class            string    `json:"class"`
	Consumption      float64   `json:"consumption"`
	BuildingType     string    `json:"building_type"`
	ConstructionYear int       `json:"construction_year,omitempty"`
	BuildingSurface  float64   `json:"building_surface,omitempty"`
	Units            int       `json:"units,omitempty"`
	Address          string    `json:"address,omitempty"`
}

// BuildingLevel reports whether the certificate covers the whole building.
func (c Certificate) BuildingLevel() bool {
	return strings.EqualFold(c.BuildingType, TypeBuilding)
}

// Best returns the most relevant certificate: building-level ones first, then
// the most recent. It returns false when certs holds no usable class.
func Best(certs []Certificate) (Certificate, bool) {
	usable := make([]Certificate, 0, len(certs))
	for _, c := range certs {
		if c.Class != "" {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		return Certificate{}, false
	}
	sort.SliceStable(usable, func(i, j int) bool {
		if usable[i].BuildingLevel() != usable[j].BuildingLevel() {
			return usable[i].BuildingLevel()
		}
		return usable[i].IssuedAt.After(usable[j].IssuedAt)
	})
	return usable[0], true
}

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides the dataset endpoint.
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

// NewClient creates a DPE client.
func NewClient(opts ...Option) Client {
	c := &client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
		radius:     defaultRadius,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type linesResponse struct {
	Total   int `json:"total"`
	Results []struct {
		Number           string   `json:"numero_dpe"`
		IssuedAt         string   `json:"date_etablissement_dpe"`
		Class            string   `json:"etiquette_dpe"`
		Consumption      *float64 `json:"conso_5_usages_par_m2_ep"`
		BuildingType     string   `json:"type_batiment"`
		ConstructionYear *float64 `json:"annee_construction"`
		BuildingSurface  *float64 `json:"surface_habitable_immeuble"`
		Units            *float64 `json:"nombre_appartement"`
		Address          string   `json:"adresse_ban"`
	} `json:"results"`
}

// Certificates implements Client.
func (c *client) Certificates(ctx context.Context, lat, lon float64) ([]Certificate, error) {
	params := url.Values{
		"geo_distance": {fmt.Sprintf("%.6f:%.6f:%d", lon, lat, c.radius)},
		"size":         {fmt.Sprint(pageSize)},
		"sort":         {"-date_etablissement_dpe"},
	}
	reqURL := strings.TrimRight(c.baseURL, "/") + "/lines?" + params.Encode()

	var resp linesResponse
	if err := fetcher.GetJSON(ctx, c.httpClient, c.limiter, source, reqURL, &resp); err != nil {
		return nil, eris.Wrap(err, "dpe: search certificates")
	}

	out := make([]Certificate, 0, len(resp.Results))
	for _, r := range resp.Results {
		issued, err := time.Parse("2006-01-02", r.IssuedAt)
		if err != nil {
			continue
		}
		cert := Certificate{
			Number:       r.Number,
			IssuedAt:     issued,
			Class:        strings.ToUpper(strings.TrimSpace(r.Class)),
			BuildingType: strings.ToLower(strings.TrimSpace(r.BuildingType)),
			Address:      r.Address,
		}
		if r.Consumption != nil {
			cert.Consumption = *r.Consumption
		}
		if r.ConstructionYear != nil {
			cert.ConstructionYear = int(*r.ConstructionYear)
		}
		if r.BuildingSurface != nil {
			cert.BuildingSurface = *r.BuildingSurface
		}
		if r.Units != nil {
			cert.Units = int(*r.Units)
		}
		out = append(out, cert)
	}
	return out, nil
}

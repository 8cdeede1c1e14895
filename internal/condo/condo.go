// Package condo serves the national condominium registry (RNIC): bulk import
// of the published extract and lookup of a building by address.
package condo

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-flash/internal/textnorm"
)

// ErrNotFound means no registered condominium matches the address.
var ErrNotFound = eris.New("condo: not found")

// Record is one registered condominium.
type Record struct {
	ID          string  `json:"id"`
	Name        string  `json:"name,omitempty"`
	Address     string  `json:"address"`
	PostalCode  string  `json:"postal_code"`
	City        string  `json:"city,omitempty"`
	CityCode    string  `json:"city_code,omitempty"`
	TotalLots   int     `json:"total_lots,omitempty"`
	Units       int     `json:"units"`
	ManagerName string  `json:"manager_name,omitempty"`
	Period      string  `json:"construction_period,omitempty"`
	Lat         float64 `json:"lat,omitempty"`
	Lon         float64 `json:"lon,omitempty"`
}

// AddressKey is the folded address used for matching.
func (r Record) AddressKey() string {
	return textnorm.Fold(r.Address)
}

// HasLocation reports whether the record carries coordinates.
func (r Record) HasLocation() bool {
	return r.Lat != 0 || r.Lon != 0
}

// Registry finds a condominium by street address and postal code.
type Registry interface {
	Find(ctx context.Context, street, postalCode string) (*Record, error)
}

// Sink receives imported records in batches.
type Sink interface {
	Load(ctx context.Context, records []Record) (int64, error)
}

// likePattern is the SQL LIKE pattern matching any key containing street.
// Folded keys hold only letters, digits and spaces.
func likePattern(street string) (string, error) {
	key := textnorm.Fold(street)
	if key == "" {
		return "", eris.Wrap(ErrNotFound, "condo: empty street")
	}
	return "%" + key + "%", nil
}

// better reports whether a is a tighter match than b: the shortest key
// containing the query wins, ties broken by id.
func better(a, b Record) bool {
	ka, kb := a.AddressKey(), b.AddressKey()
	if len(ka) != len(kb) {
		return len(ka) < len(kb)
	}
	return strings.Compare(a.ID, b.ID) < 0
}

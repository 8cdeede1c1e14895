// Package market turns raw DVF transactions into a local price per m².
package market

import (
	"time"

	"github.com/sells-group/audit-flash/internal/regulation"
	"github.com/sells-group/audit-flash/pkg/dvf"
)

// Estimate is the averaged flat price around a building.
type Estimate struct {
	PricePerSqm float64
	SalesCount  int
	From        time.Time
	To          time.Time
}

// Filter keeps flat sales inside the observation window ending at asOf whose
// price per m² lies within the configured bounds.
func Filter(sales []dvf.Sale, terms regulation.MarketTerms, asOf time.Time) []dvf.Sale {
	cutoff := asOf.AddDate(-terms.WindowYears, 0, 0)
	out := make([]dvf.Sale, 0, len(sales))
	for _, s := range sales {
		if s.Nature != dvf.NatureSale || s.LocalType != dvf.TypeFlat {
			continue
		}
		if s.Date.Before(cutoff) || s.Date.After(asOf) {
			continue
		}
		p := s.PricePerSqm()
		if p < terms.MinPricePerSqm || p > terms.MaxPricePerSqm {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Average returns the mean price per m² of the filtered sales. ok is false
// when no sale survives the filter.
func Average(sales []dvf.Sale, terms regulation.MarketTerms, asOf time.Time) (Estimate, bool) {
	kept := Filter(sales, terms, asOf)
	if len(kept) == 0 {
		return Estimate{}, false
	}

	var sum float64
	est := Estimate{SalesCount: len(kept), From: kept[0].Date, To: kept[0].Date}
	for _, s := range kept {
		sum += s.PricePerSqm()
		if s.Date.Before(est.From) {
			est.From = s.Date
		}
		if s.Date.After(est.To) {
			est.To = s.Date
		}
	}
	est.PricePerSqm = sum / float64(len(kept))
	return est, true
}

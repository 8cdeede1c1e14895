package engine

import (
	"math"

	"github.com/sells-group/audit-flash/internal/model"
)

// Valuation projects the building's value after renovation. A missing price
// falls back to the configured market constant, tagged as such; a supplied
// price without a tag is taken as manual.
func (e *Engine) Valuation(in model.DiagnosticInput, remainingCost float64) model.Valuation {
	price, origin, sales := in.PricePerSqm, in.PriceOrigin, in.SalesCount
	switch {
	case price <= 0:
		price, origin, sales = e.table.Market.FallbackPricePerSqm, model.OriginFallback, 0
	case origin == "":
		origin = model.OriginManual
	}

	current := in.TotalSurface() * price
	rate := e.table.GreenValueRate(in.CurrentClass.Delta(in.TargetClass))
	projected := current * (1 + rate)
	gain := projected - current
	return model.Valuation{
		PricePerSqm:    price,
		PriceOrigin:    origin,
		SalesCount:     sales,
		CurrentValue:   current,
		GreenValueRate: rate,
		ProjectedValue: projected,
		GreenValueGain: gain,
		NetROI:         gain - remainingCost,
	}
}

// Inaction is the extra cost of postponing works by the configured number of
// years: construction inflation plus the discount applied to passoires.
func (e *Engine) Inaction(current model.EnergyClass, cost, value float64) model.InactionCost {
	inf := e.table.Inflation
	projected := cost * math.Pow(1+inf.AnnualRate, float64(inf.Years))
	depreciation := value * e.table.DepreciationRate(current)
	return model.InactionCost{
		Years:             inf.Years,
		InflationRate:     inf.AnnualRate,
		CurrentCost:       cost,
		ProjectedCost:     projected,
		ValueDepreciation: depreciation,
		TotalInactionCost: projected - cost + depreciation,
	}
}

package engine

import (
	"fmt"

	"github.com/sells-group/audit-flash/internal/model"
)

// ValidateInput rejects out-of-domain input. The returned error, when not
// nil, is a *model.ValidationError keyed by JSON field name.
func ValidateInput(in model.DiagnosticInput) error {
	verr := &model.ValidationError{}

	if !in.CurrentClass.Valid() {
		verr.Add("current_class", "expected a letter A–G")
	}
	if !in.TargetClass.Valid() {
		verr.Add("target_class", "expected a letter A–G")
	}
	if in.CurrentClass.Valid() && in.TargetClass.Valid() && in.CurrentClass.Delta(in.TargetClass) < 0 {
		verr.Add("target_class", fmt.Sprintf("target %s is worse than current %s", in.TargetClass, in.CurrentClass))
	}
	if in.Units <= 0 {
		verr.Add("units", "must be positive")
	}
	if in.AverageUnitSurface <= 0 {
		verr.Add("average_unit_surface", "must be positive")
	}
	if in.RenovationCost != nil && in.RenovationCost.Amount < 0 {
		verr.Add("renovation_cost", "must not be negative")
	}
	if in.PricePerSqm < 0 {
		verr.Add("price_per_sqm", "must not be negative")
	}
	if in.SalesCount < 0 {
		verr.Add("sales_count", "must not be negative")
	}
	if in.AnnualEnergyBill < 0 {
		verr.Add("annual_energy_bill", "must not be negative")
	}
	if in.LocalAid < 0 {
		verr.Add("local_aid", "must not be negative")
	}
	if in.AsOf.IsZero() {
		verr.Add("as_of", "required")
	}

	mixed := 0
	for _, s := range in.IncomeMix {
		if !s.Tier.Valid() {
			verr.Add("income_mix", fmt.Sprintf("unknown tier %q", s.Tier))
			break
		}
		if s.Units < 0 {
			verr.Add("income_mix", "units must not be negative")
			break
		}
		mixed += s.Units
	}
	if in.Units > 0 && mixed > in.Units {
		verr.Add("income_mix", fmt.Sprintf("%d units in mix exceed %d units", mixed, in.Units))
	}

	if o := in.Ownership; o != nil {
		switch {
		case o.TotalTantiemes <= 0:
			verr.Add("ownership", "total tantièmes must be positive")
		case o.Tantiemes <= 0 || o.Tantiemes > o.TotalTantiemes:
			verr.Add("ownership", fmt.Sprintf("tantièmes must be in 1..%d", o.TotalTantiemes))
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

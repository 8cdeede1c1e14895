package allocator

import (
	"math"

	"github.com/sells-group/audit-flash/internal/model"
	"github.com/sells-group/audit-flash/internal/regulation"
)

// Allocate returns the part of amount owed by a holder of ratio.
func Allocate(amount, ratio float64) float64 {
	return amount * ratio
}

// ShareOf applies one ratio uniformly to every line of the building plan.
func ShareOf(f model.Financing, v model.Valuation, ratio float64) model.Share {
	return model.Share{
		Ratio:          ratio,
		Cost:           Allocate(f.Cost.TotalTTC, ratio),
		Subsidies:      Allocate(f.TotalSubsidies, ratio),
		RemainingCost:  Allocate(f.RemainingCost, ratio),
		LoanAmount:     Allocate(f.LoanAmount, ratio),
		MonthlyPayment: Allocate(f.MonthlyPayment, ratio),
		UpfrontCash:    Allocate(f.UpfrontCash, ratio),
		GreenValueGain: Allocate(v.GreenValueGain, ratio),
	}
}

// OwnerShare is ShareOf for a tantième holding.
func OwnerShare(f model.Financing, v model.Valuation, o model.OwnershipShare) model.Share {
	return ShareOf(f, v, o.Ratio())
}

// PerTier breaks the plan down for an average unit of each income tier in the
// mix. Building-wide lines (CEE, AMO, local aid) are split equally; the
// primary subsidy uses the tier's own rate.
func PerTier(t *regulation.Table, plan Plan, f model.Financing, v model.Valuation, mix []model.IncomeShare, units int) []model.TierBreakdown {
	if units <= 0 {
		return []model.TierBreakdown{}
	}
	ratio := 1 / float64(units)
	unitCost := Allocate(f.Cost.TotalTTC, ratio)

	shared := 0.0
	for _, l := range plan.Lines {
		if l.Kind != model.SubsidyPrimary {
			shared += l.Amount
		}
	}
	sharedPerUnit := Allocate(shared, ratio)

	normalized := NormalizeMix(t, mix, units)
	out := make([]model.TierBreakdown, 0, len(normalized))
	for _, s := range normalized {
		primary := 0.0
		if plan.PrimaryEligible {
			primary = t.PrimaryRate(s.Tier) * plan.EligibleUnitCost
		}
		subsidies := math.Min(unitCost, primary+sharedPerUnit)
		remaining := unitCost - subsidies
		loan := math.Min(remaining, t.Loan.CeilingPerUnit)
		out = append(out, model.TierBreakdown{
			Tier:  s.Tier,
			Units: s.Units,
			Share: model.Share{
				Ratio:          ratio,
				Cost:           unitCost,
				Subsidies:      subsidies,
				RemainingCost:  remaining,
				LoanAmount:     loan,
				MonthlyPayment: MonthlyPayment(loan, t.Loan.TermMonths),
				UpfrontCash:    remaining - loan,
				GreenValueGain: Allocate(v.GreenValueGain, ratio),
			},
			PrimarySubsidy: math.Min(primary, unitCost),
		})
	}
	return out
}

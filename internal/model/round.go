package model

import "github.com/shopspring/decimal"

// RoundEuro rounds an amount to the nearest euro, halves away from zero.
func RoundEuro(v float64) float64 {
	return decimal.NewFromFloat(v).Round(0).InexactFloat64()
}

// RoundCents rounds an amount to the nearest cent, halves away from zero.
func RoundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Rounded returns a copy of r with money amounts rounded to the euro and
// monthly figures to the cent. Ratios and rates are left as computed.
func (r DiagnosticResult) Rounded() DiagnosticResult {
	out := r

	c := r.Financing.Cost
	out.Financing.Cost = CostBreakdown{
		WorksHT:  RoundEuro(c.WorksHT),
		VAT:      RoundEuro(c.VAT),
		TotalTTC: RoundEuro(c.TotalTTC),
		Derived:  c.Derived,
	}
	out.Financing.Subsidies = make([]SubsidyLine, len(r.Financing.Subsidies))
	for i, l := range r.Financing.Subsidies {
		l.Amount = RoundEuro(l.Amount)
		out.Financing.Subsidies[i] = l
	}
	out.Financing.TotalSubsidies = RoundEuro(r.Financing.TotalSubsidies)
	out.Financing.RemainingCost = RoundEuro(r.Financing.RemainingCost)
	out.Financing.LoanAmount = RoundEuro(r.Financing.LoanAmount)
	out.Financing.UpfrontCash = RoundEuro(r.Financing.UpfrontCash)
	out.Financing.MonthlyPayment = RoundCents(r.Financing.MonthlyPayment)
	out.Financing.MonthlyEnergySavings = RoundCents(r.Financing.MonthlyEnergySavings)
	out.Financing.NetMonthlyCashFlow = RoundCents(r.Financing.NetMonthlyCashFlow)

	out.Valuation.PricePerSqm = RoundEuro(r.Valuation.PricePerSqm)
	out.Valuation.CurrentValue = RoundEuro(r.Valuation.CurrentValue)
	out.Valuation.ProjectedValue = RoundEuro(r.Valuation.ProjectedValue)
	out.Valuation.GreenValueGain = RoundEuro(r.Valuation.GreenValueGain)
	out.Valuation.NetROI = RoundEuro(r.Valuation.NetROI)

	out.InactionCost.CurrentCost = RoundEuro(r.InactionCost.CurrentCost)
	out.InactionCost.ProjectedCost = RoundEuro(r.InactionCost.ProjectedCost)
	out.InactionCost.ValueDepreciation = RoundEuro(r.InactionCost.ValueDepreciation)
	out.InactionCost.TotalInactionCost = RoundEuro(r.InactionCost.TotalInactionCost)

	out.Allocation.PerTier = make([]TierBreakdown, len(r.Allocation.PerTier))
	for i, tb := range r.Allocation.PerTier {
		tb.Share = tb.Share.Rounded()
		tb.PrimarySubsidy = RoundEuro(tb.PrimarySubsidy)
		out.Allocation.PerTier[i] = tb
	}
	if r.Allocation.Owner != nil {
		s := r.Allocation.Owner.Rounded()
		out.Allocation.Owner = &s
	}
	if r.Compliance.ProhibitionDate != nil {
		d := *r.Compliance.ProhibitionDate
		out.Compliance.ProhibitionDate = &d
	}
	return out
}

// Rounded returns s with amounts rounded like DiagnosticResult.Rounded.
func (s Share) Rounded() Share {
	return Share{
		Ratio:          s.Ratio,
		Cost:           RoundEuro(s.Cost),
		Subsidies:      RoundEuro(s.Subsidies),
		RemainingCost:  RoundEuro(s.RemainingCost),
		LoanAmount:     RoundEuro(s.LoanAmount),
		MonthlyPayment: RoundCents(s.MonthlyPayment),
		UpfrontCash:    RoundEuro(s.UpfrontCash),
		GreenValueGain: RoundEuro(s.GreenValueGain),
	}
}

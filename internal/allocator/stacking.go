// Package allocator stacks subsidies over a renovation budget, sizes the
// collective zero-interest loan, and splits the building-level plan across
// income tiers and ownership shares (tantièmes).
package allocator

import (
	"math"

	"github.com/sells-group/audit-flash/internal/model"
	"github.com/sells-group/audit-flash/internal/regulation"
)

// StackInput is the building-level data the stacking rules need.
type StackInput struct {
	TotalCost float64
	Units     int
	ClassGain int
	IncomeMix []model.IncomeShare
	LocalAid  float64
}

// Plan is the result of subsidy stacking and loan sizing.
type Plan struct {
	Lines            []model.SubsidyLine
	TotalSubsidies   float64
	RemainingCost    float64
	LoanAmount       float64
	LoanTermMonths   int
	MonthlyPayment   float64
	UpfrontCash      float64
	PrimaryEligible  bool
	EligibleUnitCost float64
}

// Stack applies the subsidy lines in their fixed order. Each line is capped
// at what remains, so RemainingCost is never negative and always equals
// TotalCost minus the sum of the lines.
func Stack(t *regulation.Table, in StackInput) Plan {
	p := Plan{LoanTermMonths: t.Loan.TermMonths}
	if in.Units <= 0 || in.TotalCost <= 0 {
		p.Lines = []model.SubsidyLine{}
		return p
	}

	remaining := in.TotalCost
	take := func(kind model.SubsidyKind, label string, amount float64, eligible bool) {
		amount = math.Max(0, math.Min(amount, remaining))
		if !eligible {
			amount = 0
		}
		remaining -= amount
		p.Lines = append(p.Lines, model.SubsidyLine{Kind: kind, Label: label, Amount: amount, Eligible: eligible})
	}

	unitCost := in.TotalCost / float64(in.Units)
	p.EligibleUnitCost = math.Min(unitCost, t.Primary.CeilingPerUnit)
	p.PrimaryEligible = in.ClassGain >= t.Primary.MinClassGain

	// 1. Means-tested primary subsidy on the capped per-unit cost.
	primary := 0.0
	for _, share := range NormalizeMix(t, in.IncomeMix, in.Units) {
		primary += t.PrimaryRate(share.Tier) * p.EligibleUnitCost * float64(share.Units)
	}
	take(model.SubsidyPrimary, "MaPrimeRénov' Copropriété", primary, p.PrimaryEligible)

	// 2. CEE bonus, no means test.
	take(model.SubsidyCEE, "Prime CEE", t.CEE.Rate*in.TotalCost, t.CEE.Rate > 0)

	// 3. Engineering assistance allowance.
	take(model.SubsidyAMO, "Aide AMO", t.AMOPerUnit(in.Units)*float64(in.Units), p.PrimaryEligible)

	// 4. Local aid, caller-supplied.
	take(model.SubsidyLocal, "Aides locales", in.LocalAid, in.LocalAid > 0)

	for _, l := range p.Lines {
		p.TotalSubsidies += l.Amount
	}
	p.RemainingCost = math.Max(0, remaining)

	// 5. Collective zero-interest loan over the remainder.
	p.LoanAmount = math.Min(p.RemainingCost, t.Loan.CeilingPerUnit*float64(in.Units))
	p.MonthlyPayment = MonthlyPayment(p.LoanAmount, t.Loan.TermMonths)
	p.UpfrontCash = p.RemainingCost - p.LoanAmount
	return p
}

// MonthlyPayment amortizes a zero-interest loan linearly.
func MonthlyPayment(loan float64, termMonths int) float64 {
	if termMonths <= 0 || loan <= 0 {
		return 0
	}
	return loan / float64(termMonths)
}

// NormalizeMix returns the income mix with units not covered by the caller
// assigned to the default tier. Tiers with no units are dropped, duplicates
// are merged and the result follows the low-to-high tier order.
func NormalizeMix(t *regulation.Table, mix []model.IncomeShare, units int) []model.IncomeShare {
	counts := make(map[model.IncomeTier]int, len(model.IncomeTiers))
	assigned := 0
	for _, s := range mix {
		if s.Units <= 0 || !s.Tier.Valid() {
			continue
		}
		counts[s.Tier] += s.Units
		assigned += s.Units
	}
	if rest := units - assigned; rest > 0 {
		counts[t.Primary.DefaultTier] += rest
	}

	out := make([]model.IncomeShare, 0, len(counts))
	for _, tier := range model.IncomeTiers {
		if n := counts[tier]; n > 0 {
			out = append(out, model.IncomeShare{Tier: tier, Units: n})
		}
	}
	return out
}

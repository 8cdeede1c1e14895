package engine

import (
	"github.com/sells-group/audit-flash/internal/allocator"
	"github.com/sells-group/audit-flash/internal/model"
)

// CostBase resolves the renovation budget. Without an estimate the works are
// priced per m² excluding VAT; a supplied amount is converted both ways.
func (e *Engine) CostBase(in model.DiagnosticInput) model.CostBreakdown {
	vat := 1 + e.table.VATRate
	var ht, ttc float64
	derived := false

	switch {
	case in.RenovationCost == nil:
		ht = in.TotalSurface() * e.table.CostPerSqmHT
		ttc = ht * vat
		derived = true
	case in.RenovationCost.IncludesVAT:
		ttc = in.RenovationCost.Amount
		ht = ttc / vat
	default:
		ht = in.RenovationCost.Amount
		ttc = ht * vat
	}
	return model.CostBreakdown{WorksHT: ht, VAT: ttc - ht, TotalTTC: ttc, Derived: derived}
}

func (e *Engine) financing(in model.DiagnosticInput, cost model.CostBreakdown, plan allocator.Plan, delta int) model.Financing {
	savings := in.AnnualEnergyBill * e.table.EnergySavingsRate(delta) / 12
	return model.Financing{
		Cost:                 cost,
		Subsidies:            plan.Lines,
		TotalSubsidies:       plan.TotalSubsidies,
		RemainingCost:        plan.RemainingCost,
		LoanAmount:           plan.LoanAmount,
		LoanTermMonths:       plan.LoanTermMonths,
		MonthlyPayment:       plan.MonthlyPayment,
		UpfrontCash:          plan.UpfrontCash,
		MonthlyEnergySavings: savings,
		NetMonthlyCashFlow:   savings - plan.MonthlyPayment,
	}
}

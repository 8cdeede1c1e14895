// Package engine computes the renovation diagnostic for a condominium: legal
// compliance, financing plan, green value and the cost of postponing works.
// Compute is pure: it reads no clock and performs no I/O.
package engine

import (
	"github.com/sells-group/audit-flash/internal/allocator"
	"github.com/sells-group/audit-flash/internal/model"
	"github.com/sells-group/audit-flash/internal/regulation"
)

// Engine holds the regulatory table. It is safe for concurrent use.
type Engine struct {
	table *regulation.Table
}

// New creates an Engine over table. A nil table selects regulation.Default().
func New(table *regulation.Table) *Engine {
	if table == nil {
		table = regulation.Default()
	}
	return &Engine{table: table}
}

// Table returns the regulatory table in use.
func (e *Engine) Table() *regulation.Table { return e.table }

// Compute runs every diagnostic step over in. Callers validate in with
// ValidateInput first; Compute never fails.
func (e *Engine) Compute(in model.DiagnosticInput) model.DiagnosticResult {
	delta := in.CurrentClass.Delta(in.TargetClass)
	cost := e.CostBase(in)

	plan := allocator.Stack(e.table, allocator.StackInput{
		TotalCost: cost.TotalTTC,
		Units:     in.Units,
		ClassGain: delta,
		IncomeMix: in.IncomeMix,
		LocalAid:  in.LocalAid,
	})
	fin := e.financing(in, cost, plan, delta)
	val := e.Valuation(in, fin.RemainingCost)

	alloc := model.Allocation{
		PerTier: allocator.PerTier(e.table, plan, fin, val, in.IncomeMix, in.Units),
	}
	if in.Ownership != nil && in.Ownership.TotalTantiemes > 0 {
		s := allocator.OwnerShare(fin, val, *in.Ownership)
		alloc.Owner = &s
	}

	return model.DiagnosticResult{
		Compliance:   e.Compliance(in.CurrentClass, in.TargetClass, in.AsOf),
		Financing:    fin,
		Valuation:    val,
		InactionCost: e.Inaction(in.CurrentClass, cost.TotalTTC, val.CurrentValue),
		Allocation:   alloc,
	}
}

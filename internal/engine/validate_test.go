package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/audit-flash/internal/model"
)

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.DiagnosticInput)
		field  string
	}{
		{"zero units", func(in *model.DiagnosticInput) { in.Units = 0 }, "units"},
		{"zero surface", func(in *model.DiagnosticInput) { in.AverageUnitSurface = 0 }, "average_unit_surface"},
		{"bad class", func(in *model.DiagnosticInput) { in.CurrentClass = "H" }, "current_class"},
		{"target worse", func(in *model.DiagnosticInput) { in.TargetClass = model.ClassG }, "target_class"},
		{"negative cost", func(in *model.DiagnosticInput) { in.RenovationCost = &model.CostEstimate{Amount: -1} }, "renovation_cost"},
		{"negative aid", func(in *model.DiagnosticInput) { in.LocalAid = -10 }, "local_aid"},
		{"negative bill", func(in *model.DiagnosticInput) { in.AnnualEnergyBill = -1 }, "annual_energy_bill"},
		{"missing as_of", func(in *model.DiagnosticInput) { in.AsOf = time.Time{} }, "as_of"},
		{"mix too large", func(in *model.DiagnosticInput) {
			in.IncomeMix = []model.IncomeShare{{Tier: model.TierHigh, Units: 21}}
		}, "income_mix"},
		{"unknown tier", func(in *model.DiagnosticInput) {
			in.IncomeMix = []model.IncomeShare{{Tier: "rich", Units: 1}}
		}, "income_mix"},
		{"tantiemes over total", func(in *model.DiagnosticInput) {
			in.Ownership = &model.OwnershipShare{Tantiemes: 10001, TotalTantiemes: 10000}
		}, "ownership"},
		{"zero total tantiemes", func(in *model.DiagnosticInput) {
			in.Ownership = &model.OwnershipShare{Tantiemes: 1}
		}, "ownership"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := scenarioA()
			tt.mutate(&in)
			err := ValidateInput(in)
			require.Error(t, err)
			var verr *model.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestValidateInput_AcceptsScenario(t *testing.T) {
	in := scenarioA()
	in.IncomeMix = []model.IncomeShare{{Tier: model.TierModest, Units: 20}}
	in.Ownership = &model.OwnershipShare{Tantiemes: 10000, TotalTantiemes: 10000}
	assert.NoError(t, ValidateInput(in))
}

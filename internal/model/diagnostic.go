package model

import "time"

// CostEstimate is a caller-supplied renovation budget.
type CostEstimate struct {
	Amount      float64 `json:"amount"`
	IncludesVAT bool    `json:"includes_vat"`
}

// DiagnosticInput is everything the computation engine needs. AsOf pins the
// calendar so results are reproducible.
type DiagnosticInput struct {
	CurrentClass       EnergyClass     `json:"current_class"`
	TargetClass        EnergyClass     `json:"target_class"`
	Units              int             `json:"units"`
	AverageUnitSurface float64         `json:"average_unit_surface"`
	RenovationCost     *CostEstimate   `json:"renovation_cost,omitempty"`
	PricePerSqm        float64         `json:"price_per_sqm"`
	PriceOrigin        Origin          `json:"price_origin,omitempty"`
	SalesCount         int             `json:"sales_count"`
	IncomeMix          []IncomeShare   `json:"income_mix,omitempty"`
	Ownership          *OwnershipShare `json:"ownership,omitempty"`
	AnnualEnergyBill   float64         `json:"annual_energy_bill"`
	LocalAid           float64         `json:"local_aid"`
	AsOf               time.Time       `json:"as_of"`
}

// IncomeShare is the number of units whose owners fall in a tier.
type IncomeShare struct {
	Tier  IncomeTier `json:"tier"`
	Units int        `json:"units"`
}

// OwnershipShare is one owner's tantièmes out of the building total.
type OwnershipShare struct {
	Tantiemes      int `json:"tantiemes"`
	TotalTantiemes int `json:"total_tantiemes"`
}

// Ratio returns Tantiemes / TotalTantiemes.
func (o OwnershipShare) Ratio() float64 {
	if o.TotalTantiemes <= 0 {
		return 0
	}
	return float64(o.Tantiemes) / float64(o.TotalTantiemes)
}

// TotalSurface is Units × AverageUnitSurface.
func (in DiagnosticInput) TotalSurface() float64 {
	return float64(in.Units) * in.AverageUnitSurface
}

// ComplianceStatus classifies the rental situation of the current class.
type ComplianceStatus string

// Compliance statuses.
const (
	ComplianceOK         ComplianceStatus = "compliant"
	ComplianceAtRisk     ComplianceStatus = "at_risk"
	ComplianceProhibited ComplianceStatus = "prohibited"
)

// Compliance is the legal calendar outcome for the current class.
type Compliance struct {
	Status               ComplianceStatus `json:"status"`
	IsProhibited         bool             `json:"is_prohibited"`
	ProhibitionDate      *time.Time       `json:"prohibition_date,omitempty"`
	DaysUntilProhibition int              `json:"days_until_prohibition"`
	TargetCompliant      bool             `json:"target_compliant"`
}

// SubsidyKind identifies a stacking line.
type SubsidyKind string

// Subsidy lines in stacking order.
const (
	SubsidyPrimary SubsidyKind = "primary"
	SubsidyCEE     SubsidyKind = "cee"
	SubsidyAMO     SubsidyKind = "amo"
	SubsidyLocal   SubsidyKind = "local"
)

// SubsidyLine is one subsidy applied to the building.
type SubsidyLine struct {
	Kind     SubsidyKind `json:"kind"`
	Label    string      `json:"label"`
	Amount   float64     `json:"amount"`
	Eligible bool        `json:"eligible"`
}

// CostBreakdown splits the renovation budget.
type CostBreakdown struct {
	WorksHT  float64 `json:"works_ht"`
	VAT      float64 `json:"vat"`
	TotalTTC float64 `json:"total_ttc"`
	Derived  bool    `json:"derived"`
}

// Financing is the building-level financing plan.
type Financing struct {
	Cost                 CostBreakdown `json:"cost"`
	Subsidies            []SubsidyLine `json:"subsidies"`
	TotalSubsidies       float64       `json:"total_subsidies"`
	RemainingCost        float64       `json:"remaining_cost"`
	LoanAmount           float64       `json:"loan_amount"`
	LoanTermMonths       int           `json:"loan_term_months"`
	MonthlyPayment       float64       `json:"monthly_payment"`
	UpfrontCash          float64       `json:"upfront_cash"`
	MonthlyEnergySavings float64       `json:"monthly_energy_savings"`
	NetMonthlyCashFlow   float64       `json:"net_monthly_cash_flow"`
}

// Valuation is the green-value projection.
type Valuation struct {
	PricePerSqm    float64 `json:"price_per_sqm"`
	PriceOrigin    Origin  `json:"price_origin,omitempty"`
	SalesCount     int     `json:"sales_count"`
	CurrentValue   float64 `json:"current_value"`
	GreenValueRate float64 `json:"green_value_rate"`
	ProjectedValue float64 `json:"projected_value"`
	GreenValueGain float64 `json:"green_value_gain"`
	NetROI         float64 `json:"net_roi"`
}

// InactionCost is the cost of postponing works.
type InactionCost struct {
	Years             int     `json:"years"`
	InflationRate     float64 `json:"inflation_rate"`
	CurrentCost       float64 `json:"current_cost"`
	ProjectedCost     float64 `json:"projected_cost"`
	ValueDepreciation float64 `json:"value_depreciation"`
	TotalInactionCost float64 `json:"total_inaction_cost"`
}

// Share is one allocation of the building-level plan.
type Share struct {
	Ratio          float64 `json:"ratio"`
	Cost           float64 `json:"cost"`
	Subsidies      float64 `json:"subsidies"`
	RemainingCost  float64 `json:"remaining_cost"`
	LoanAmount     float64 `json:"loan_amount"`
	MonthlyPayment float64 `json:"monthly_payment"`
	UpfrontCash    float64 `json:"upfront_cash"`
	GreenValueGain float64 `json:"green_value_gain"`
}

// TierBreakdown is the plan for an average unit of one income tier.
type TierBreakdown struct {
	Tier  IncomeTier `json:"tier"`
	Units int        `json:"units"`
	Share
	PrimarySubsidy float64 `json:"primary_subsidy"`
}

// Allocation holds the per-tier and per-owner views.
type Allocation struct {
	PerTier []TierBreakdown `json:"per_tier"`
	Owner   *Share          `json:"owner,omitempty"`
}

// DiagnosticResult is the complete engine output.
type DiagnosticResult struct {
	Compliance   Compliance   `json:"compliance"`
	Financing    Financing    `json:"financing"`
	Valuation    Valuation    `json:"valuation"`
	InactionCost InactionCost `json:"inaction_cost"`
	Allocation   Allocation   `json:"allocation"`
}

// DiagnosticRecord is a persisted diagnostic, reproducible from its input.
type DiagnosticRecord struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id,omitempty"`
	Input     DiagnosticInput  `json:"input"`
	Result    DiagnosticResult `json:"result"`
	CreatedAt time.Time        `json:"created_at"`
}

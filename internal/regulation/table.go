// Package regulation holds the French regulatory constants used by the
// diagnostic engine: rental prohibition calendar, subsidy rates and caps,
// Eco-PTZ loan terms, inflation and valuation multipliers.
//
// A Table is plain data. Callers obtain one from Default or Load and inject it
// into the engine, so alternate regimes can be tested side by side.
package regulation

import (
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/audit-flash/internal/model"
)

// Table is the full set of regulatory and calibration constants.
type Table struct {
	ProhibitionDates map[model.EnergyClass]Date    `yaml:"prohibition_dates"`
	CostPerSqmHT     float64                       `yaml:"cost_per_sqm_ht"`
	VATRate          float64                       `yaml:"vat_rate"`
	Primary          PrimarySubsidy                `yaml:"primary_subsidy"`
	CEE              CEEBonus                      `yaml:"cee"`
	AMO              AMOAllowance                  `yaml:"amo"`
	Loan             LoanTerms                     `yaml:"loan"`
	Inflation        InflationTerms                `yaml:"inflation"`
	GreenValue       map[int]float64               `yaml:"green_value"`
	EnergySavings    map[int]float64               `yaml:"energy_savings"`
	Depreciation     map[model.EnergyClass]float64 `yaml:"depreciation"`
	Market           MarketTerms                   `yaml:"market"`
}

// PrimarySubsidy configures the means-tested MaPrimeRénov' Copropriété line.
type PrimarySubsidy struct {
	Rates          map[model.IncomeTier]float64 `yaml:"rates"`
	CeilingPerUnit float64                      `yaml:"ceiling_per_unit"`
	MinClassGain   int                          `yaml:"min_class_gain"`
	DefaultTier    model.IncomeTier             `yaml:"default_tier"`
}

// CEEBonus configures the energy-savings-certificate bonus.
type CEEBonus struct {
	Rate float64 `yaml:"rate"`
}

// AMOAllowance is the flat engineering assistance allowance per unit.
type AMOAllowance struct {
	PerUnitSmall   float64 `yaml:"per_unit_small"`
	PerUnitLarge   float64 `yaml:"per_unit_large"`
	LargeThreshold int     `yaml:"large_threshold"`
}

// LoanTerms configures the collective zero-interest loan (Eco-PTZ copropriété).
type LoanTerms struct {
	CeilingPerUnit float64 `yaml:"ceiling_per_unit"`
	TermMonths     int     `yaml:"term_months"`
}

// InflationTerms configures the cost-of-inaction projection.
type InflationTerms struct {
	AnnualRate float64 `yaml:"annual_rate"`
	Years      int     `yaml:"years"`
}

// MarketTerms configures price fallbacks and DVF filtering.
type MarketTerms struct {
	FallbackPricePerSqm float64 `yaml:"fallback_price_per_sqm"`
	MinPricePerSqm      float64 `yaml:"min_price_per_sqm"`
	MaxPricePerSqm      float64 `yaml:"max_price_per_sqm"`
	WindowYears         int     `yaml:"window_years"`
	AverageUnitSurface  float64 `yaml:"average_unit_surface"`
}

// Date is a calendar day decoded from "YYYY-MM-DD".
type Date struct {
	time.Time
}

// NewDate returns the UTC midnight of the given day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	t, err := time.Parse(time.DateOnly, node.Value)
	if err != nil {
		return eris.Wrapf(err, "regulation: parse date %q", node.Value)
	}
	d.Time = t
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Date) MarshalYAML() (any, error) {
	return d.Format(time.DateOnly), nil
}

// Default returns the regime in force for 2025–2034 rental prohibitions.
func Default() *Table {
	return &Table{
		ProhibitionDates: map[model.EnergyClass]Date{
			model.ClassG: NewDate(2025, time.January, 1),
			model.ClassF: NewDate(2028, time.January, 1),
			model.ClassE: NewDate(2034, time.January, 1),
		},
		CostPerSqmHT: 350,
		VATRate:      0.055,
		Primary: PrimarySubsidy{
			Rates: map[model.IncomeTier]float64{
				model.TierVeryModest:   0.75,
				model.TierModest:       0.60,
				model.TierIntermediate: 0.45,
				model.TierHigh:         0.30,
			},
			CeilingPerUnit: 25000,
			MinClassGain:   2,
			DefaultTier:    model.TierIntermediate,
		},
		CEE: CEEBonus{Rate: 0.08},
		AMO: AMOAllowance{
			PerUnitSmall:   1000,
			PerUnitLarge:   600,
			LargeThreshold: 20,
		},
		Loan: LoanTerms{
			CeilingPerUnit: 50000,
			TermMonths:     240,
		},
		Inflation: InflationTerms{
			AnnualRate: 0.045,
			Years:      3,
		},
		GreenValue: map[int]float64{
			1: 0.05, 2: 0.10, 3: 0.15, 4: 0.20, 5: 0.24, 6: 0.28,
		},
		EnergySavings: map[int]float64{
			1: 0.15, 2: 0.30, 3: 0.45, 4: 0.55, 5: 0.60, 6: 0.65,
		},
		Depreciation: map[model.EnergyClass]float64{
			model.ClassF: 0.10,
			model.ClassG: 0.15,
		},
		Market: MarketTerms{
			FallbackPricePerSqm: 3500,
			MinPricePerSqm:      1000,
			MaxPricePerSqm:      10000,
			WindowYears:         3,
			AverageUnitSurface:  65,
		},
	}
}

// Load reads a YAML file with a top-level "regulation" key and overlays it
// onto Default. Scalar keys absent from the file keep their default value; a
// map present in the file replaces the default map as a whole, so a regime
// can drop a prohibition date or a multiplier.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "regulation: read %s", path)
	}
	return Parse(data)
}

// mapKeys records which map-valued keys an override file sets.
type mapKeys struct {
	Regulation struct {
		ProhibitionDates *yaml.Node `yaml:"prohibition_dates"`
		GreenValue       *yaml.Node `yaml:"green_value"`
		EnergySavings    *yaml.Node `yaml:"energy_savings"`
		Depreciation     *yaml.Node `yaml:"depreciation"`
		Primary          struct {
			Rates *yaml.Node `yaml:"rates"`
		} `yaml:"primary_subsidy"`
	} `yaml:"regulation"`
}

// Parse is Load for in-memory YAML.
func Parse(data []byte) (*Table, error) {
	var present mapKeys
	if err := yaml.Unmarshal(data, &present); err != nil {
		return nil, eris.Wrap(err, "regulation: parse")
	}

	t := Default()
	r := present.Regulation
	if r.ProhibitionDates != nil {
		t.ProhibitionDates = nil
	}
	if r.GreenValue != nil {
		t.GreenValue = nil
	}
	if r.EnergySavings != nil {
		t.EnergySavings = nil
	}
	if r.Depreciation != nil {
		t.Depreciation = nil
	}
	if r.Primary.Rates != nil {
		t.Primary.Rates = nil
	}

	wrapper := struct {
		Regulation *Table `yaml:"regulation"`
	}{Regulation: t}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "regulation: parse")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks internal consistency. Green value and energy savings must be
// non-decreasing with the class delta.
func (t *Table) Validate() error {
	if t.CostPerSqmHT <= 0 {
		return eris.New("regulation: cost_per_sqm_ht must be positive")
	}
	if t.VATRate < 0 || t.VATRate >= 1 {
		return eris.Errorf("regulation: vat_rate %v out of range", t.VATRate)
	}
	if t.Loan.TermMonths <= 0 {
		return eris.New("regulation: loan term_months must be positive")
	}
	if !t.Primary.DefaultTier.Valid() {
		return eris.Errorf("regulation: unknown default tier %q", t.Primary.DefaultTier)
	}
	for class := range t.ProhibitionDates {
		if !class.Valid() {
			return eris.Errorf("regulation: prohibition date for unknown class %q", class)
		}
	}
	if err := checkMonotone("green_value", t.GreenValue); err != nil {
		return err
	}
	return checkMonotone("energy_savings", t.EnergySavings)
}

func checkMonotone(name string, m map[int]float64) error {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	prev := 0.0
	for _, k := range keys {
		v := m[k]
		if v < 0 || v > 1 {
			return eris.Errorf("regulation: %s[%d]=%v not a fraction", name, k, v)
		}
		if v < prev {
			return eris.Errorf("regulation: %s must not decrease (delta %d)", name, k)
		}
		prev = v
	}
	return nil
}

// ProhibitionDate returns the rental prohibition date for class c, if any.
func (t *Table) ProhibitionDate(c model.EnergyClass) (time.Time, bool) {
	d, ok := t.ProhibitionDates[c]
	if !ok {
		return time.Time{}, false
	}
	return d.Time, true
}

// GreenValueRate returns the value uplift fraction for a gain of delta classes.
func (t *Table) GreenValueRate(delta int) float64 {
	return lookupByDelta(t.GreenValue, delta)
}

// EnergySavingsRate returns the fraction of the energy bill saved for delta classes.
func (t *Table) EnergySavingsRate(delta int) float64 {
	return lookupByDelta(t.EnergySavings, delta)
}

// DepreciationRate returns the value discount applied to class c (zero outside F/G).
func (t *Table) DepreciationRate(c model.EnergyClass) float64 {
	return t.Depreciation[c]
}

// PrimaryRate returns the primary subsidy rate for an income tier.
func (t *Table) PrimaryRate(tier model.IncomeTier) float64 {
	return t.Primary.Rates[tier]
}

// AMOPerUnit returns the assistance allowance per unit for a building size.
func (t *Table) AMOPerUnit(units int) float64 {
	if units > t.AMO.LargeThreshold {
		return t.AMO.PerUnitLarge
	}
	return t.AMO.PerUnitSmall
}

// lookupByDelta returns the value for the largest configured delta <= delta.
// Non-positive deltas yield zero.
func lookupByDelta(m map[int]float64, delta int) float64 {
	if delta <= 0 {
		return 0
	}
	best, bestKey := 0.0, 0
	for k, v := range m {
		if k <= delta && k > bestKey {
			best, bestKey = v, k
		}
	}
	return best
}

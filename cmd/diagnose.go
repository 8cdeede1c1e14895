package main

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/audit-flash/internal/engine"
	"github.com/sells-group/audit-flash/internal/model"
)

// diagnosticFlags are shared by diagnose and audit diagnose.
type diagnosticFlags struct {
	target    string
	cost      float64
	costTTC   bool
	mix       string
	ownership string
	bill      float64
	localAid  float64
	asOf      string
}

func (f *diagnosticFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.target, "target", "C", "target energy class after works")
	cmd.Flags().Float64Var(&f.cost, "cost", 0, "renovation cost quote; 0 derives it from the surface")
	cmd.Flags().BoolVar(&f.costTTC, "cost-ttc", false, "the --cost quote includes VAT")
	cmd.Flags().StringVar(&f.mix, "mix", "", "income mix, e.g. very_modest=3,modest=5")
	cmd.Flags().StringVar(&f.ownership, "tantiemes", "", "one owner's share as held/total, e.g. 50/1000")
	cmd.Flags().Float64Var(&f.bill, "energy-bill", 0, "annual energy bill of the building (€)")
	cmd.Flags().Float64Var(&f.localAid, "local-aid", 0, "local authority aid (€)")
	cmd.Flags().StringVar(&f.asOf, "as-of", "", "evaluation date YYYY-MM-DD (default today)")
}

// parse returns the class, cost, mix, ownership and date the flags describe.
func (f *diagnosticFlags) parse() (target model.EnergyClass, cost *model.CostEstimate, mix []model.IncomeShare, own *model.OwnershipShare, asOf time.Time, err error) {
	target, err = model.ParseEnergyClass(f.target)
	if err != nil {
		return "", nil, nil, nil, time.Time{}, eris.Wrap(err, "--target")
	}
	if f.cost > 0 {
		cost = &model.CostEstimate{Amount: f.cost, IncludesVAT: f.costTTC}
	}
	if mix, err = parseMix(f.mix); err != nil {
		return "", nil, nil, nil, time.Time{}, err
	}
	if own, err = parseOwnership(f.ownership); err != nil {
		return "", nil, nil, nil, time.Time{}, err
	}
	if asOf, err = parseDate(f.asOf); err != nil {
		return "", nil, nil, nil, time.Time{}, err
	}
	return target, cost, mix, own, asOf, nil
}

// parseMix reads "tier=units" pairs separated by commas.
func parseMix(s string) ([]model.IncomeShare, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []model.IncomeShare
	for _, part := range strings.Split(s, ",") {
		tier, units, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, eris.Errorf("--mix: %q is not tier=units", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(units))
		if err != nil {
			return nil, eris.Errorf("--mix: %q has a non-integer unit count", part)
		}
		out = append(out, model.IncomeShare{Tier: model.IncomeTier(strings.TrimSpace(tier)), Units: n})
	}
	return out, nil
}

// parseOwnership reads "held/total".
func parseOwnership(s string) (*model.OwnershipShare, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	held, total, ok := strings.Cut(s, "/")
	if !ok {
		return nil, eris.Errorf("--tantiemes: %q is not held/total", s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(held))
	if err != nil {
		return nil, eris.Errorf("--tantiemes: %q is not held/total", s)
	}
	t, err := strconv.Atoi(strings.TrimSpace(total))
	if err != nil {
		return nil, eris.Errorf("--tantiemes: %q is not held/total", s)
	}
	return &model.OwnershipShare{Tantiemes: h, TotalTantiemes: t}, nil
}

// parseDate reads YYYY-MM-DD; empty means now.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, eris.Wrap(err, "--as-of")
	}
	return t, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var (
	diagFlags   diagnosticFlags
	diagCurrent string
	diagUnits   int
	diagSurface float64
	diagPrice   float64
	diagSales   int
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Compute a diagnostic from building figures, without any registry lookup",
	RunE: func(cmd *cobra.Command, _ []string) error {
		table, err := loadTable()
		if err != nil {
			return err
		}
		in, err := flagInput()
		if err != nil {
			return err
		}
		if err := engine.ValidateInput(in); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), engine.New(table).Compute(in).Rounded())
	},
}

// flagInput builds the engine input from the diagnose flags.
func flagInput() (model.DiagnosticInput, error) {
	current, err := model.ParseEnergyClass(diagCurrent)
	if err != nil {
		return model.DiagnosticInput{}, eris.Wrap(err, "--current")
	}
	target, cost, mix, own, asOf, err := diagFlags.parse()
	if err != nil {
		return model.DiagnosticInput{}, err
	}
	origin := model.OriginManual
	if diagSales > 0 {
		origin = model.OriginAPI
	}
	return model.DiagnosticInput{
		CurrentClass:       current,
		TargetClass:        target,
		Units:              diagUnits,
		AverageUnitSurface: diagSurface,
		RenovationCost:     cost,
		PricePerSqm:        diagPrice,
		PriceOrigin:        origin,
		SalesCount:         diagSales,
		IncomeMix:          mix,
		Ownership:          own,
		AnnualEnergyBill:   diagFlags.bill,
		LocalAid:           diagFlags.localAid,
		AsOf:               asOf,
	}, nil
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagCurrent, "current", "", "current energy class (required)")
	diagnoseCmd.Flags().IntVar(&diagUnits, "units", 0, "number of dwellings (required)")
	diagnoseCmd.Flags().Float64Var(&diagSurface, "unit-surface", 65, "average dwelling surface (m²)")
	diagnoseCmd.Flags().Float64Var(&diagPrice, "price", 0, "market price per m²")
	diagnoseCmd.Flags().IntVar(&diagSales, "sales", 0, "number of sales behind --price")
	diagFlags.register(diagnoseCmd)
	_ = diagnoseCmd.MarkFlagRequired("current")
	_ = diagnoseCmd.MarkFlagRequired("units")
	rootCmd.AddCommand(diagnoseCmd)
}

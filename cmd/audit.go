package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/audit-flash/internal/acquisition"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the acquisition lifecycle of one audit against the configured store",
}

var auditInitAddress string

var auditInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Resolve an address and query every registry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context(), "audit")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orchestrator.Init(cmd.Context(), auditInitAddress)
		if err != nil {
			return err
		}
		zap.L().Info("audit initialized",
			zap.String("session_id", res.SessionID),
			zap.String("status", string(res.Status)),
			zap.Int("missing", len(res.MissingFields)),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var (
	auditID     string
	auditValues []string
)

// parseValues reads key=value pairs. Values stay strings; numeric fields
// parse them on entry.
func parseValues(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, eris.Errorf("--set: %q is not key=value", p)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

var auditCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Enter missing values for a draft audit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		values, err := parseValues(auditValues)
		if err != nil {
			return err
		}
		if len(values) == 0 {
			return eris.New("at least one --set key=value is required")
		}

		env, err := initEnv(cmd.Context(), "audit")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orchestrator.Complete(cmd.Context(), auditID, values)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var auditRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Query the registries again for an open audit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context(), "audit")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orchestrator.Refresh(cmd.Context(), auditID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var auditShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a stored audit session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context(), "audit")
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := env.Orchestrator.Session(cmd.Context(), auditID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), s)
	},
}

var auditDiagFlags diagnosticFlags

var auditDiagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Compute and store the diagnostic of a ready audit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		target, cost, mix, own, asOf, err := auditDiagFlags.parse()
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context(), "audit")
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Orchestrator.Diagnose(cmd.Context(), auditID, acquisition.DiagnoseParams{
			TargetClass:      target,
			RenovationCost:   cost,
			IncomeMix:        mix,
			Ownership:        own,
			AnnualEnergyBill: auditDiagFlags.bill,
			LocalAid:         auditDiagFlags.localAid,
			AsOf:             asOf,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rec)
	},
}

func init() {
	auditInitCmd.Flags().StringVar(&auditInitAddress, "address", "", "postal address of the building (required)")
	_ = auditInitCmd.MarkFlagRequired("address")

	auditCompleteCmd.Flags().StringArrayVar(&auditValues, "set", nil, "manual value as key=value, e.g. unitCount=24 (repeatable)")

	for _, c := range []*cobra.Command{auditCompleteCmd, auditRefreshCmd, auditShowCmd, auditDiagnoseCmd} {
		c.Flags().StringVar(&auditID, "id", "", "session id (required)")
		_ = c.MarkFlagRequired("id")
	}
	auditDiagFlags.register(auditDiagnoseCmd)

	auditCmd.AddCommand(auditInitCmd, auditCompleteCmd, auditRefreshCmd, auditShowCmd, auditDiagnoseCmd)
	rootCmd.AddCommand(auditCmd)
}

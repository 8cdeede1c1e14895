package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/audit-flash/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "audit-flash",
	Short: "Energy-renovation diagnostics for French condominiums",
	Long:  "Resolves an address against the public registries (BAN, cadastre, RNIC, DPE, DVF), completes missing data by hand, and computes the regulatory, financing and valuation diagnostic.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

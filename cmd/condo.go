package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/audit-flash/internal/condo"
	"github.com/sells-group/audit-flash/internal/fetcher"
	"github.com/sells-group/audit-flash/internal/resilience"
)

var condoCmd = &cobra.Command{
	Use:   "condo",
	Short: "Manage the condominium registry (RNIC)",
}

var (
	condoSrc       string
	condoCharset   string
	condoDelimiter string
	condoSheet     string
	condoBatch     int
)

// importOptions merges flags over the condo config.
func importOptions() condo.ImportOptions {
	opts := condo.ImportOptions{
		Charset:   cfg.Condo.Charset,
		Sheet:     cfg.Condo.Sheet,
		BatchSize: cfg.Condo.BatchSize,
	}
	delim := cfg.Condo.Delimiter
	if condoDelimiter != "" {
		delim = condoDelimiter
	}
	if r := []rune(delim); len(r) == 1 {
		opts.Delimiter = r[0]
	}
	if condoCharset != "" {
		opts.Charset = condoCharset
	}
	if condoSheet != "" {
		opts.Sheet = condoSheet
	}
	if condoBatch > 0 {
		opts.BatchSize = condoBatch
	}
	return opts
}

var condoImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load an RNIC extract (.csv, .xlsx or .zip, local or http) into the registry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if condoDelimiter != "" {
			cfg.Condo.Delimiter = condoDelimiter
		}
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		registry, err := initCondos(ctx, st)
		if err != nil {
			return err
		}

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Retry: resilience.DefaultRetryConfig(),
		})
		opts := importOptions()
		var loaded int64
		opts.OnBatch = func(n int64) {
			loaded += n
			zap.L().Debug("condo import batch", zap.Int64("rows", n), zap.Int64("loaded", loaded))
		}

		start := time.Now()
		stats, err := condo.NewImporter(f, registry).Import(ctx, condoSrc, opts)
		if err != nil {
			return err
		}
		zap.L().Info("condo import complete",
			zap.String("src", condoSrc),
			zap.Int64("rows", stats.Rows),
			zap.Int64("loaded", stats.Loaded),
			zap.Int64("skipped", stats.Skipped),
			zap.Duration("elapsed", time.Since(start)),
		)
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

func init() {
	condoImportCmd.Flags().StringVar(&condoSrc, "src", "", "path or URL of the extract (required)")
	condoImportCmd.Flags().StringVar(&condoCharset, "charset", "", "CSV charset, e.g. windows-1252 (default from config)")
	condoImportCmd.Flags().StringVar(&condoDelimiter, "delimiter", "", "CSV delimiter (default from config)")
	condoImportCmd.Flags().StringVar(&condoSheet, "sheet", "", "XLSX worksheet (default first)")
	condoImportCmd.Flags().IntVar(&condoBatch, "batch-size", 0, "rows per load batch (default from config)")
	_ = condoImportCmd.MarkFlagRequired("src")

	condoCmd.AddCommand(condoImportCmd)
	rootCmd.AddCommand(condoCmd)
}

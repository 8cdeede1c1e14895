package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/audit-flash/internal/store"
	"github.com/sells-group/audit-flash/pkg/geocode"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the session, diagnostic, registry and cache tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		// Opening the store runs its migration.
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := initCondos(ctx, st); err != nil {
			return err
		}
		if ps, ok := baseStore(st).(*store.PostgresStore); ok {
			if _, err := ps.Pool().Exec(ctx, geocode.CacheMigration); err != nil {
				return eris.Wrap(err, "migrate geocode cache")
			}
		}

		zap.L().Info("migrations applied", zap.String("store", cfg.Store.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/audit-flash/internal/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Audit Flash HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		interval, err := time.ParseDuration(cfg.Server.SweepInterval)
		if err != nil {
			return eris.Wrap(err, "parse sweep interval")
		}
		sweepDone := make(chan struct{})
		go func() {
			defer close(sweepDone)
			env.Orchestrator.RunSweeper(ctx, interval)
		}()

		err = startServer(ctx, buildRouter(env), resolvePort(servePort, cfg.Server.Port))
		stop()
		<-sweepDone
		return err
	},
}

// buildRouter wires the API over env.
func buildRouter(env *auditEnv) http.Handler {
	h := api.NewHandler(env.Orchestrator, env.Engine, nil)
	opts := api.RouterOptions{AllowedOrigins: cfg.Server.AllowedOrigins}
	if env.Registry != nil {
		opts.Gatherer = env.Registry
	}
	return api.NewRouter(h, opts)
}

// resolvePort prefers the flag over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves h on port until ctx is done, then shuts down
// gracefully.
func startServer(ctx context.Context, h http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return <-shutdownErr
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanhnv2901/tlsprofiler/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run tlsprofiler as a REST API service",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		addr, _ := cmd.Flags().GetString("addr")
		authToken, _ := cmd.Flags().GetString("auth-token")
		shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
		rateLimit, _ := cmd.Flags().GetInt("rate-limit")
		rateBurst, _ := cmd.Flags().GetInt("rate-burst")
		trustProxy, _ := cmd.Flags().GetBool("trust-proxy")
		save, _ := cmd.Flags().GetBool("save")

		// The server logs requests and job completions at info level.
		logger := appCtx.Logger
		if !debug {
			l, err := newLogger(false, "info")
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			logger = l
		}
		defer func() {
			_ = logger.Sync()
		}()

		appCtx = withLogger(appCtx, logger)
		coll, err := newCollector(appCtx)
		if err != nil {
			return err
		}
		store := newProfileStore(appCtx)

		var (
			recorder api.ResultRecorder
			results  api.ResultReader
		)
		if save {
			repo, err := newReportRepository(appCtx)
			if err != nil {
				return configError("failed to open results directory: %v", err)
			}
			recorder = repo
			results = repo
		}

		jobManager := api.NewJobManager(store, coll, recorder, logger.Named("jobs"))
		if timeout := appCtx.Config.Audit.Timeout(); timeout > 0 {
			jobManager.SetTimeout(timeout)
		}

		server := api.NewServer(api.Config{
			Profiles:   store,
			Jobs:       jobManager,
			Results:    results,
			AuthToken:  authToken,
			Logger:     logger,
			RateLimit:  rateLimit,
			RateBurst:  rateBurst,
			TrustProxy: trustProxy,
		})

		httpServer := &http.Server{
			Addr:              addr,
			Handler:           server,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       120 * time.Second,
			// WriteTimeout stays unset: /audits-stream holds the response open.
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s API server listening on %s (backend: %s)\n", colorInfo("→"), addr, appCtx.Config.Audit.Backend)
			fmt.Fprintf(cmd.OutOrStdout(), "%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))
			serverErrors <- httpServer.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case sig := <-shutdown:
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s Received signal %v, initiating graceful shutdown...\n", colorInfo("→"), sig)

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(ctx); err != nil {
				if closeErr := httpServer.Close(); closeErr != nil {
					return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
				}
				return fmt.Errorf("failed to gracefully shutdown server: %w", err)
			}

			logger.Info("Waiting for running audits to finish")
			if err := jobManager.WaitContext(ctx); err != nil {
				logger.Warn("Shutdown timeout reached with audits still running", zap.Error(err))
				return fmt.Errorf("audits still running after %s: %w", shutdownTimeout, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Server shutdown complete\n", colorSuccess("✓"))
		}

		logger.Debug("server stopped", zap.String("addr", addr))
		return nil
	},
}

// withLogger returns a copy of appCtx that logs through logger.
func withLogger(appCtx *AppContext, logger *zap.Logger) *AppContext {
	scoped := *appCtx
	scoped.Logger = logger
	return &scoped
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Address for the API server")
	serveCmd.Flags().String("auth-token", "", "Optional shared secret for API requests")
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	serveCmd.Flags().Int("rate-limit", 10, "Rate limit per IP (requests/second, 0 = disabled)")
	serveCmd.Flags().Int("rate-burst", 20, "Rate limit burst size")
	serveCmd.Flags().Bool("trust-proxy", false, "Rate limit by X-Forwarded-For (only behind a trusted reverse proxy)")
	serveCmd.Flags().Bool("save", true, "Save finished audits to the results directory and expose them under /api/v1/results")
	serveCmd.Flags().StringVar(&cliConfig.Audit.Backend, "backend", cliConfig.Audit.Backend, "probe backend: native or sslyze")
	serveCmd.Flags().IntVar(&cliConfig.Audit.TimeoutSecs, "timeout", cliConfig.Audit.TimeoutSecs, "timeout in seconds for one audit job")
	serveCmd.Flags().IntVar(&cliConfig.Audit.ProbeTimeoutSecs, "probe-timeout", cliConfig.Audit.ProbeTimeoutSecs, "timeout in seconds for each probe")
	serveCmd.Flags().StringArrayVar(&cliConfig.Audit.TrustStores, "trust-store", nil, "additional PEM trust store (repeatable)")
}

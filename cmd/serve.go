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

	"github.com/khanhnv2901/webharden/internal/api"
	"github.com/khanhnv2901/webharden/internal/metrics"
	consts "github.com/khanhnv2901/webharden/internal/shared/constants"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the auditor as a REST API service",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		flags := cmd.Flags()
		addr, _ := flags.GetString("addr")
		authToken, _ := flags.GetString("auth-token")
		shutdownTimeout, _ := flags.GetDuration("shutdown-timeout")
		corsOrigins, _ := flags.GetStringSlice("cors-origins")
		rateLimit, _ := flags.GetInt("rate-limit")
		rateBurst, _ := flags.GetInt("rate-burst")
		maxAudits, _ := flags.GetInt("max-audits")
		timeoutSecs, _ := flags.GetInt("timeout")

		auditor := newAuditor(appCtx, cmd, timeoutSecs)
		server := api.NewServer(api.Config{
			Audits:         &api.AuditorService{Base: *auditor},
			Jobs:           api.NewJobManager(maxAudits),
			AuthToken:      authToken,
			Logger:         appCtx.Logger,
			CORSOrigins:    corsOrigins,
			RateLimit:      rateLimit,
			RateBurst:      rateBurst,
			DefaultTimeout: auditor.Timeout,
			Metrics:        metrics.Handler(),
		})

		httpServer := &http.Server{
			Addr:         addr,
			Handler:      server,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  120 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("%s API server listening on %s\n", colorInfo("→"), addr)
			fmt.Printf("%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))
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
			fmt.Printf("\n%s Received signal %v, initiating graceful shutdown...\n", colorInfo("→"), sig)

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(ctx); err != nil {
				if closeErr := httpServer.Close(); closeErr != nil {
					return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
				}
				return fmt.Errorf("failed to gracefully shutdown server: %w", err)
			}
			// cancel in-flight audits
			if err := server.Shutdown(ctx); err != nil {
				appCtx.Logger.Warn("audits still running at shutdown", zap.Error(err))
			}

			fmt.Printf("%s Server shutdown complete\n", colorInfo("✓"))
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", consts.DefaultAPIAddr, "Address for the API server")
	serveCmd.Flags().String("auth-token", "", "Optional shared secret for API requests")
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	serveCmd.Flags().StringSlice("cors-origins", []string{}, "Allowed CORS origins (empty = allow all)")
	serveCmd.Flags().Int("rate-limit", 10, "Rate limit per IP (requests/second, 0 = disabled)")
	serveCmd.Flags().Int("rate-burst", 20, "Rate limit burst size")
	serveCmd.Flags().Int("max-audits", consts.DefaultStoredAudits, "Finished audits kept in memory")
	serveCmd.Flags().Int("timeout", defaultTimeoutSeconds, "Default per-probe timeout in seconds")
	serveCmd.Flags().Int("tls-port", 0, "Port for the direct TLS handshake (default: target port or 443)")
	serveCmd.Flags().Int("http-port", 0, "Port for the plain-HTTP redirect probe (default: target port)")
}

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

	"github.com/horizonsante/hsc/cmd/hscapi/cmd/cmdutil"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	hscmiddleware "github.com/horizonsante/hsc/cmd/hscapi/internal/middleware"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/server"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/audit"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/iam"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the hscapi HTTP server",
	Long: `Registers every component's resource types, reconciles role groups and
grants against the role registry, then serves the HTTP API. A failed
reconcile aborts startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateServe(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownTracing, err := telemetry.Init(ctx, cfg.Observability, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				logger.Warn().Err(err).Msg("telemetry shutdown")
			}
		}()

		metrics := telemetry.NewMetrics()
		bundle, err := cmdutil.Open(cfg, logger, metrics)
		if err != nil {
			return err
		}
		defer bundle.Close()
		logger.Info().Msg("connected to database")

		if _, err := bundle.Bootstrap(ctx); err != nil {
			return fmt.Errorf("permission reconcile failed, refusing to start: %w", err)
		}

		db := bundle.DB
		revoked := repository.NewBunRevokedTokenRepository(db)
		go sweepRevokedTokens(ctx, revoked, revokedSweepInterval)

		authenticator := iam.NewAuthenticator(iam.AuthenticatorDeps{
			Users:   bundle.Users,
			Members: bundle.Members,
			Revoked: revoked,
			Tokens:  auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.ServerURL, cfg.JWT.TTL),
			Metrics: metrics,
			Logger:  logger,
		})

		limiter := hscmiddleware.NewIPRateLimiter(cfg.LoginRate.PerSecond, cfg.LoginRate.Burst)
		go limiter.Run(ctx)

		corsOpts := server.DefaultCORSOptions()
		if len(cfg.CORS.AllowedOrigins) > 0 {
			corsOpts.AllowedOrigins = cfg.CORS.AllowedOrigins
		}

		router, err := server.NewRouter(server.RouterOptions{
			Authenticator: authenticator,
			Assigner:      bundle.Assigner,
			Synchronizer:  bundle.Synchronizer,
			Provisioner:   bundle.Provisioner,
			Enforcer:      bundle.Enforcer,
			Audit:         audit.NewRecorder(repository.NewBunAuditRepository(db), metrics, logger),
			Patients:      repository.NewBunPatientRepository(db),
			LoginLimiter:  limiter,
			Metrics:       metrics,
			Logger:        logger,
			CORSOptions:   &corsOpts,
			HealthHandler: healthHandler(bundle),
		})
		if err != nil {
			return fmt.Errorf("failed to build router: %w", err)
		}

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", cfg.ServerAddr).Str("url", cfg.ServerURL).Msg("starting server")
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			logger.Info().Msg("shutting down gracefully")
		}

		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info().Msg("server stopped")
		return nil
	},
}

const revokedSweepInterval = time.Hour

// sweepRevokedTokens drops denylist entries whose token has expired
// anyway, until ctx is done.
func sweepRevokedTokens(ctx context.Context, repo repository.RevokedTokenRepository, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx, time.Now())
			if err != nil {
				logger.Error().Err(err).Msg("revoked token sweep failed")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("deleted", n).Msg("revoked tokens swept")
			}
		case <-ctx.Done():
			return
		}
	}
}

func healthHandler(bundle *cmdutil.Bundle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := bundle.DB.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"status":"unavailable"}`)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}


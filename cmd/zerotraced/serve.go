// serve.go - The serve command.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"zerotrace/internal/api"
	"zerotrace/internal/config"
	"zerotrace/internal/health"
	"zerotrace/internal/logging"
	"zerotrace/internal/messaging"
	"zerotrace/internal/metrics"
	"zerotrace/internal/proof"
	"zerotrace/internal/ratelimit"
	"zerotrace/internal/store"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "zerotrace.json", "configuration file (.json, .yaml or .yml)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := logging.New(logging.Config{
		Level:     cfg.LogLevel,
		File:      cfg.LogFile,
		AuditFile: cfg.AuditFile(),
		Console:   cfg.LogConsole,
	})
	if err != nil {
		return err
	}
	defer log.Close()

	engine, err := proof.NewEngine(cfg.ProofBackend, cfg.KeyDir, log.Component("proof"))
	if err != nil {
		return err
	}

	collector := metrics.New()
	opts := []messaging.Option{messaging.WithLogger(log), messaging.WithMetrics(collector)}
	if cfg.LedgerPath != "" {
		if _, statErr := os.Stat(cfg.LedgerPath); statErr == nil {
			ledger, err := store.LoadLedgerFromFile(cfg.LedgerPath)
			if err != nil {
				return fmt.Errorf("load ledger: %w", err)
			}
			if err := ledger.VerifyAll(engine); err != nil {
				log.Warn().Err(err).Str("path", cfg.LedgerPath).Msg("ledger contains unverifiable transitions")
			}
			log.Info().Int("transitions", ledger.Len()).Str("path", cfg.LedgerPath).Msg("ledger loaded")
			opts = append(opts, messaging.WithLedger(ledger))
		}
	}
	svc := messaging.New(store.New(), engine, opts...)

	checker := health.NewChecker(version)
	checker.Register("store", func(context.Context) error {
		return svc.CheckStore()
	})
	checker.Register("proof_backend", func(context.Context) error {
		return svc.ProbeProofBackend()
	})
	checker.Register("ledger", func(context.Context) error {
		return health.MarkDegraded(svc.VerifyLatestTransition())
	})

	if log.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	server := api.NewServer(api.Options{
		Service:   svc,
		Limiter:   ratelimit.NewPerIdentity(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		Metrics:   collector,
		Health:    checker,
		Logger:    log,
		StaticDir: cfg.StaticDir,
	})
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: server.Router()}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.ListenAddr).
			Str("proof_backend", engine.Name()).
			Msg("zerotrace listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	if cfg.LedgerPath != "" {
		if err := svc.SaveLedger(cfg.LedgerPath); err != nil {
			return fmt.Errorf("save ledger: %w", err)
		}
		log.Info().Str("path", cfg.LedgerPath).Msg("ledger exported")
	}
	return nil
}

package cmd

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/docgate/docgate/internal/appid"
	"github.com/docgate/docgate/internal/config"
	errwrap "github.com/docgate/docgate/internal/errors"
	"github.com/docgate/docgate/internal/metrics"
	"github.com/docgate/docgate/internal/observability"
	"github.com/docgate/docgate/internal/server"
	"github.com/docgate/docgate/internal/server/handlers"
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// ledgerHealthChecker pings the submission ledger. A missing ledger is
// reported as degraded; submissions still flow without receipts.
type ledgerHealthChecker struct {
	rt *gateRuntime
}

func (l ledgerHealthChecker) CheckHealth(ctx context.Context) error {
	if l.rt == nil || l.rt.ledger == nil {
		return &handlers.DegradedError{Reason: "ledger unavailable"}
	}
	return l.rt.ledger.DB.PingContext(ctx)
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	identity *appid.Identity
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.identity == nil || i.identity.BinaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.identity.EnvPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the document relay server",
	Long: `Run an HTTP relay that accepts documents on POST /v1/documents and
submits them through one shared admission gate.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read and validate config (restart to apply gate changes)

Shutdown stops accepting requests, drains in-flight ones, then closes the
gate so any caller still waiting for quota receives an error.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	identity := GetAppIdentity()
	namespace := identity.TelemetryNamespace()

	observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, namespace)
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
		}
		metrics.SetServerStartTime(time.Now().Unix())
	}

	rt, err := newGateRuntime(cmd.Context(), cfg, runtimeOptions{logger: logger})
	if err != nil {
		return errwrap.WrapConfigInvalid(cmd.Context(), err, "gate configuration invalid")
	}

	logger.Info("Initializing relay",
		zap.String("service", identity.BinaryName),
		zap.String("namespace", namespace),
		zap.String("version", versionInfo.Version),
		zap.String("endpoint", cfg.Transport.Endpoint),
		zap.Int("gate_limit", cfg.Gate.Limit),
		zap.String("gate_period", rt.gate.Period().String()),
		zap.Duration("gate_max_wait", cfg.Gate.MaxWait),
		zap.Bool("ledger", rt.ledger != nil))

	hm := handlers.InitHealthManager(versionInfo.Version)
	hm.RegisterChecker("gate", handlers.GateChecker{Gate: rt.gate, WaitingThreshold: 10 * cfg.Gate.Limit})
	hm.RegisterChecker("app_identity", identityHealthChecker{identity: identity})
	if cfg.Ledger.Enabled {
		hm.RegisterChecker("ledger", ledgerHealthChecker{rt: rt})
	}
	if cfg.Metrics.Enabled {
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})
	}

	handlers.SetAppIdentity(identity)
	handlers.SetGateInfo(cfg.Gate.Limit, rt.gate.Period().String())

	srv := server.New(server.Options{
		Server:     cfg.Server,
		Inbound:    cfg.Inbound,
		Submitter:  rt.submitter,
		Health:     hm,
		AdminToken: os.Getenv(identity.EnvPrefix + "ADMIN_TOKEN"),
	})

	drained := registerShutdown(srv, rt, cfg.Server.ShutdownTimeout)
	registerReload()

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 2)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr()))
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	go func() {
		if err := signals.Listen(cmd.Context()); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		rt.Close()
		return errwrap.WrapInternal(cmd.Context(), err, "server error")
	}

	// The server returns as soon as it stops listening; wait for the rest
	// of the shutdown chain.
	select {
	case <-drained:
	case <-time.After(cfg.Server.ShutdownTimeout + 5*time.Second):
	}
	return nil
}

// registerShutdown registers handlers in LIFO order: the HTTP server stops
// first, then the gate, then metrics and logs are flushed.
func registerShutdown(srv *server.Server, rt *gateRuntime, timeout time.Duration) <-chan struct{} {
	logger := observability.ServerLogger
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	drained := make(chan struct{})

	signals.OnShutdown(func(ctx context.Context) error {
		defer close(drained)
		if err := observability.ShutdownMetrics(); err != nil {
			logger.Warn("Metrics exporter shutdown returned error", zap.Error(err))
		}
		if err := logger.Sync(); err != nil {
			// Sync errors are often benign (stdout/stderr already closed)
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Closing admission gate", zap.Int("waiting", rt.gate.Stats().Waiting))
		rt.Close()
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	return drained
}

func registerReload() {
	logger := observability.ServerLogger
	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: attempting config reload")

		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				logger.Info("No config file found - using defaults and environment variables")
				return nil
			}
			logger.Error("Failed to reload config file",
				zap.String("file", viper.ConfigFileUsed()),
				zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}
		logger.Info("Configuration validated; restart to apply gate and server changes",
			zap.String("file", viper.ConfigFileUsed()),
			zap.Int("gate_limit", cfg.Gate.Limit),
			zap.String("gate_period", cfg.Gate.Period))
		return nil
	})
}

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/docgate/docgate/internal/config"
	"github.com/docgate/docgate/internal/core/engine"
	"github.com/docgate/docgate/internal/core/store"
	"github.com/docgate/docgate/internal/core/submit"
	"github.com/docgate/docgate/internal/core/transport"
	"github.com/docgate/docgate/internal/metrics"
)

// gateRuntime owns one admission gate and everything it submits through.
type gateRuntime struct {
	gate      *engine.Gate
	ledger    *store.Store
	submitter *submit.Submitter
	closers   []func()
}

type runtimeOptions struct {
	dryRun bool
	logger *logging.Logger
}

func newGateRuntime(ctx context.Context, cfg *config.Config, opts runtimeOptions) (*gateRuntime, error) {
	period, err := config.ParsePeriod(cfg.Gate.Period)
	if err != nil {
		return nil, err
	}

	rt := &gateRuntime{}

	if path := strings.TrimSpace(cfg.Transport.TraceFile); path != "" {
		cleanup, err := transport.EnableTracing(path)
		if err != nil {
			warn(opts.logger, "Failed to enable tracing", zap.String("file", path), zap.Error(err))
		} else {
			rt.closers = append(rt.closers, cleanup)
		}
	}

	sender := &transport.HTTPTransport{
		Client:          &http.Client{Timeout: cfg.Transport.Timeout},
		Endpoint:        cfg.Transport.Endpoint,
		SignatureHeader: cfg.Transport.SignatureHeader,
		UserAgent:       userAgent(cfg),
	}

	gateOpts := []engine.Option{
		engine.WithMaxWait(cfg.Gate.MaxWait),
		engine.WithObserver(metrics.GateObserver{}),
	}
	if opts.logger != nil {
		gateOpts = append(gateOpts, engine.WithLogger(opts.logger))
	}
	gate, err := engine.NewGate(period, cfg.Gate.Limit, sender, gateOpts...)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("build gate: %w", err)
	}
	rt.gate = gate

	rt.submitter = &submit.Submitter{
		Gate:        gate,
		ToolVersion: versionInfo.Version,
		DryRun:      opts.dryRun,
	}
	if opts.logger != nil {
		rt.submitter.Logger = opts.logger
	}

	if cfg.Ledger.Enabled && !opts.dryRun {
		ledger, err := openStore(ctx, cfg.Store)
		if err != nil {
			// Receipts are best effort; submissions proceed without them.
			warn(opts.logger, "Submission ledger unavailable", zap.Error(err))
		} else {
			rt.ledger = ledger
			rt.submitter.Ledger = ledger
		}
	}

	return rt, nil
}

// Close shuts the gate, then the ledger and trace file.
func (rt *gateRuntime) Close() {
	if rt == nil {
		return
	}
	if rt.gate != nil {
		rt.gate.Close()
	}
	if rt.ledger != nil {
		_ = rt.ledger.Close()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func userAgent(cfg *config.Config) string {
	if ua := strings.TrimSpace(cfg.Transport.UserAgent); ua != "" {
		return ua
	}
	version := versionInfo.Version
	if version == "" {
		version = "dev"
	}
	return GetAppIdentity().BinaryName + "/" + version
}

func warn(logger *logging.Logger, msg string, fields ...zap.Field) {
	if logger != nil {
		logger.Warn(msg, fields...)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mailsift/mailsift/internal/checkpoint"
	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/core"
	"github.com/mailsift/mailsift/internal/di"
	"github.com/mailsift/mailsift/internal/feedback"
	"github.com/mailsift/mailsift/internal/scan"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	coordinator *scan.Coordinator,
	ingestor *feedback.Ingestor,
	cp *checkpoint.Store,
	store core.MailStore,
	remote core.RemoteClassifier,
	cache core.PatternCache,
	engine *core.Engine,
) error {
	defer logger.Sync()

	scanCfg, err := cfg.GetScan()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Shutting down...", zap.String("signal", sig.String()))
		cancel()
	}()

	ingestor.EnsureFolders(ctx)

	logger.Info("starting scan loop",
		zap.Duration("interval", scanCfg.Interval),
		zap.Bool("dry_run", scanCfg.DryRun))

	for {
		cycleStart := time.Now()

		if err := ingestor.RunCycle(ctx); err != nil && ctx.Err() == nil {
			logger.Error("feedback cycle failed", zap.Error(err))
		}
		if err := coordinator.RunCycle(ctx); err != nil && ctx.Err() == nil {
			logger.Error("scan cycle failed", zap.Error(err))
		}

		if err := cp.Save(); err != nil {
			logger.Error("failed to save checkpoint", zap.Error(err))
		}

		metrics := engine.Metrics()
		logger.Info("cycle complete",
			zap.Duration("elapsed", time.Since(cycleStart)),
			zap.Int64("total", metrics.Total),
			zap.Int64("cache_hits", metrics.CacheHits),
			zap.Int64("rule_hits", metrics.RuleHits),
			zap.Int64("keyword_accepts", metrics.KeywordAccepts),
			zap.Int64("remote_accepts", metrics.RemoteAccepts),
			zap.Int64("remote_batches", metrics.RemoteBatchCalls),
			zap.Int64("fallbacks", metrics.Fallbacks))

		select {
		case <-ctx.Done():
			return shutdown(logger, cp, store, remote, cache)
		case <-time.After(scanCfg.Interval):
		}
	}
}

// shutdown persists progress and releases connections
func shutdown(
	logger *zap.Logger,
	cp *checkpoint.Store,
	store core.MailStore,
	remote core.RemoteClassifier,
	cache core.PatternCache,
) error {
	if err := cp.Save(); err != nil {
		logger.Error("failed to save checkpoint on shutdown", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		logger.Error("failed to close mail store", zap.Error(err))
	}
	if closer, ok := remote.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("failed to close remote classifier", zap.Error(err))
		}
	}
	if err := cache.Close(); err != nil {
		logger.Error("failed to close pattern cache", zap.Error(err))
	}
	logger.Info("Shutdown complete")
	return nil
}

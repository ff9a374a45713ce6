package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mailsift/mailsift/internal/checkpoint"
	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/core"
	"github.com/mailsift/mailsift/internal/factory"
	"github.com/mailsift/mailsift/internal/feedback"
	"github.com/mailsift/mailsift/internal/logging"
	"github.com/mailsift/mailsift/internal/ratelimit"
	"github.com/mailsift/mailsift/internal/rules"
	"github.com/mailsift/mailsift/internal/scan"
	"github.com/mailsift/mailsift/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register category set
	if err := container.Provide(func(cfg *config.Config) (*core.CategorySet, error) {
		return cfg.LoadCategories()
	}); err != nil {
		return nil, err
	}

	// Register rule store
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*rules.Store, error) {
		return rules.Open(cfg.GetRules().Dir, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *rules.Store) core.RulePredictor { return s }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *rules.Store) core.PromptHints { return s }); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewMailboxFactory); err != nil {
		return nil, err
	}

	// Register pattern cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.PatternCache, error) {
		return f.CreatePatternCache()
	}); err != nil {
		return nil, err
	}

	// Register remote classifier
	if err := container.Provide(func(f *factory.LLMFactory) (core.RemoteClassifier, error) {
		return f.CreateRemoteClassifier()
	}); err != nil {
		return nil, err
	}

	// Register rate limiter
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.RateLimiter, error) {
		classCfg, err := cfg.GetClassification()
		if err != nil {
			return nil, err
		}
		return ratelimit.New(classCfg.RateLimitCalls, classCfg.RateLimitWindow, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register classification engine
	if err := container.Provide(func(
		cfg *config.Config,
		categories *core.CategorySet,
		cache core.PatternCache,
		predictor core.RulePredictor,
		remote core.RemoteClassifier,
		limiter core.RateLimiter,
		logger *zap.Logger,
	) (*core.Engine, error) {
		classCfg, err := cfg.GetClassification()
		if err != nil {
			return nil, err
		}
		return core.NewEngine(categories, cache, predictor, remote, limiter, logger,
			core.WithBatchSize(classCfg.BatchSize),
			core.WithRemoteTimeout(classCfg.RemoteTimeout),
		), nil
	}); err != nil {
		return nil, err
	}

	// Register mail store
	if err := container.Provide(func(f *factory.MailboxFactory) (core.MailStore, error) {
		return f.CreateMailStore()
	}); err != nil {
		return nil, err
	}

	// Register checkpoint store
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*checkpoint.Store, error) {
		scanCfg, err := cfg.GetScan()
		if err != nil {
			return nil, err
		}
		return checkpoint.Load(scanCfg.CheckpointPath, logger)
	}); err != nil {
		return nil, err
	}

	// Register folder router
	if err := container.Provide(func(store core.MailStore, logger *zap.Logger) *scan.FolderRouter {
		return scan.NewFolderRouter(store, logger)
	}); err != nil {
		return nil, err
	}

	// Register scan coordinator
	if err := container.Provide(func(
		cfg *config.Config,
		store core.MailStore,
		engine *core.Engine,
		router *scan.FolderRouter,
		cp *checkpoint.Store,
		categories *core.CategorySet,
		logger *zap.Logger,
	) (*scan.Coordinator, error) {
		scanCfg, err := cfg.GetScan()
		if err != nil {
			return nil, err
		}
		return scan.NewCoordinator(store, engine, router, cp, categories, scan.Config{
			MaxPerFolder:   scanCfg.MaxPerFolder,
			SpamTrashLimit: scanCfg.SpamTrashLimit,
			Workers:        scanCfg.Workers,
			SkipFolders:    scanCfg.SkipFolders,
			UnseenOnly:     scanCfg.UnseenOnly,
			DryRun:         scanCfg.DryRun,
		}, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register feedback ingestor
	if err := container.Provide(func(
		store core.MailStore,
		ruleStore *rules.Store,
		categories *core.CategorySet,
		logger *zap.Logger,
	) *feedback.Ingestor {
		return feedback.NewIngestor(store, ruleStore, categories, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

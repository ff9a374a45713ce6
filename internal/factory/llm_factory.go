package factory

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mailsift/mailsift/internal/adapters/bedrock"
	"github.com/mailsift/mailsift/internal/adapters/gemini"
	"github.com/mailsift/mailsift/internal/adapters/openai"
	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/core"
	"github.com/mailsift/mailsift/internal/utils"
	"go.uber.org/zap"
)

// LLMFactory creates remote classifier clients
type LLMFactory struct {
	cfg           *config.Config
	categories    *core.CategorySet
	hints         core.PromptHints
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(
	cfg *config.Config,
	categories *core.CategorySet,
	hints core.PromptHints,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		categories:    categories,
		hints:         hints,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// CreateRemoteClassifier creates a remote classifier based on the configuration
func (f *LLMFactory) CreateRemoteClassifier() (core.RemoteClassifier, error) {
	switch provider := f.cfg.GetLLM().Provider; provider {
	case "bedrock":
		return f.createBedrock()
	case "gemini":
		return f.createGemini()
	case "openai":
		return f.createOpenAI()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

func (f *LLMFactory) createBedrock() (core.RemoteClassifier, error) {
	cfg := f.cfg.GetBedrock()
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return bedrock.NewBedrockClient(
		bedrockruntime.NewFromConfig(awsCfg),
		cfg.ModelID,
		cfg.MaxTokens,
		cfg.Temperature,
		cfg.TopP,
		cfg.MaxBodySize,
		f.categories,
		f.hints,
		f.textProcessor,
		f.logger,
	), nil
}

func (f *LLMFactory) createGemini() (core.RemoteClassifier, error) {
	cfg := f.cfg.GetGemini()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	return gemini.NewGeminiClient(
		cfg.APIKey,
		cfg.ModelName,
		cfg.MaxTokens,
		cfg.Temperature,
		cfg.TopP,
		cfg.MaxBodySize,
		f.categories,
		f.hints,
		f.textProcessor,
		f.logger,
	)
}

func (f *LLMFactory) createOpenAI() (core.RemoteClassifier, error) {
	cfg := f.cfg.GetOpenAI()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	return openai.NewOpenAIClient(
		cfg.APIKey,
		cfg.BaseURL,
		cfg.ModelName,
		cfg.MaxTokens,
		cfg.Temperature,
		cfg.TopP,
		cfg.MaxBodySize,
		f.categories,
		f.hints,
		f.textProcessor,
		f.logger,
	), nil
}

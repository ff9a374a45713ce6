package openai

import (
	"context"
	"fmt"

	"github.com/mailsift/mailsift/internal/adapters/llm"
	"github.com/mailsift/mailsift/internal/core"
	"github.com/mailsift/mailsift/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient is an implementation of the RemoteClassifier interface using
// any OpenAI-compatible chat completion endpoint. Pointing the base URL at
// api.perplexity.ai serves Perplexity with the same adapter.
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	categories    *core.CategorySet
	hints         core.PromptHints
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewOpenAIClient creates a new OpenAI-compatible batch classifier
func NewOpenAIClient(
	apiKey string,
	baseURL string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	categories *core.CategorySet,
	hints core.PromptHints,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIClient{
		client:        openai.NewClientWithConfig(cfg),
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		categories:    categories,
		hints:         hints,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// ClassifyBatch submits one combined chat completion request for the batch
// and parses the structured result
func (c *OpenAIClient) ClassifyBatch(ctx context.Context, msgs []core.Message, validCategories []string) (map[core.MessageID]core.RemoteResult, error) {
	if len(msgs) == 0 {
		return map[core.MessageID]core.RemoteResult{}, nil
	}

	prompt := llm.BuildBatchPrompt(msgs, c.categories, validCategories, c.hints, c.textProcessor, c.maxBodySize)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: llm.SystemPrompt(validCategories),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from chat completion")
	}

	results, err := llm.DecodeBatchResponse(resp.Choices[0].Message.Content, msgs, validCategories)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("batch classified",
		zap.Int("submitted", len(msgs)),
		zap.Int("returned", len(results)),
		zap.String("model", c.modelName))
	return results, nil
}

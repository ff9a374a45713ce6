package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/mailsift/mailsift/internal/adapters/llm"
	"github.com/mailsift/mailsift/internal/core"
	"github.com/mailsift/mailsift/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient is an implementation of the RemoteClassifier interface using
// Google Gemini
type GeminiClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	categories    *core.CategorySet
	hints         core.PromptHints
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewGeminiClient creates a new Gemini batch classifier
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	categories *core.CategorySet,
	hints core.PromptHints,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		categories:    categories,
		hints:         hints,
		textProcessor: textProcessor,
		logger:        logger,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// ClassifyBatch submits one combined GenerateContent request for the batch
// and parses the structured result
func (c *GeminiClient) ClassifyBatch(ctx context.Context, msgs []core.Message, validCategories []string) (map[core.MessageID]core.RemoteResult, error) {
	if len(msgs) == 0 {
		return map[core.MessageID]core.RemoteResult{}, nil
	}

	prompt := llm.SystemPrompt(validCategories) + "\n\n" +
		llm.BuildBatchPrompt(msgs, c.categories, validCategories, c.hints, c.textProcessor, c.maxBodySize)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	results, err := llm.DecodeBatchResponse(responseText, msgs, validCategories)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("batch classified",
		zap.Int("submitted", len(msgs)),
		zap.Int("returned", len(results)),
		zap.String("model", c.modelName))
	return results, nil
}

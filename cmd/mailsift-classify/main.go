package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"time"

	"github.com/mailsift/mailsift/internal/adapters/cache"
	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/core"
	"github.com/mailsift/mailsift/internal/factory"
	"github.com/mailsift/mailsift/internal/logging"
	"github.com/mailsift/mailsift/internal/ratelimit"
	"github.com/mailsift/mailsift/internal/rules"
	"github.com/mailsift/mailsift/internal/utils"
	"go.uber.org/zap"
)

var (
	// LLM provider flags
	provider    = flag.String("provider", "openai", "LLM provider (bedrock, gemini, openai)")
	maxTokens   = flag.Int("max-tokens", 1000, "Maximum tokens for LLM response")
	temperature = flag.Float64("temperature", 0.1, "Temperature for LLM generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for LLM generation")
	maxBodySize = flag.Int("max-body-size", 4096, "Maximum email body size to send to LLM")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiBaseURL   = flag.String("openai-base-url", "", "Base URL for OpenAI-compatible endpoints")
	openaiModelName = flag.String("openai-model", "gpt-4", "OpenAI model name")

	// Classification flags
	rulesDir     = flag.String("rules-dir", "", "Rule store directory (skip learned rules if empty)")
	categoryFile = flag.String("categories", "", "Category file (compiled-in defaults if empty)")
	localOnly    = flag.Bool("local-only", false, "Run only the local tiers, never the remote service")

	// Input flags
	inputFile  = flag.String("file", "", "Input email file (use stdin if not specified)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var cfg *config.Config
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		cfg = createConfigFromFlags()
	}

	categories, err := cfg.LoadCategories()
	if err != nil {
		logger.Fatal("Failed to load categories", zap.Error(err))
	}

	// Learned rules are optional for a one-shot run
	var (
		predictor core.RulePredictor
		hints     core.PromptHints
	)
	if dir := cfg.GetRules().Dir; dir != "" {
		ruleStore, err := rules.Open(dir, logger)
		if err != nil {
			logger.Fatal("Failed to open rule store", zap.Error(err))
		}
		predictor = ruleStore
		hints = ruleStore
	}

	textProcessor := utils.NewTextProcessor(logger)

	var remote core.RemoteClassifier
	var limiter core.RateLimiter
	if !*localOnly {
		llmFactory := factory.NewLLMFactory(cfg, categories, hints, textProcessor, logger)
		remote, err = llmFactory.CreateRemoteClassifier()
		if err != nil {
			logger.Fatal("Failed to create remote classifier", zap.Error(err))
		}
		classCfg, err := cfg.GetClassification()
		if err != nil {
			logger.Fatal("Invalid classification configuration", zap.Error(err))
		}
		limiter = ratelimit.New(classCfg.RateLimitCalls, classCfg.RateLimitWindow, logger)
	}

	engine := core.NewEngine(categories, cache.NewMemoryCache(logger), predictor, remote, limiter, logger)

	msg, err := readEmail(logger)
	if err != nil {
		logger.Fatal("Failed to read email", zap.Error(err))
	}

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", msg.From)
	fmt.Printf("Subject: %s\n", msg.Subject)
	fmt.Printf("Body length: %d bytes\n", len(msg.Body))
	fmt.Printf("\n=== Classification ===\n")
	fmt.Printf("Provider: %s\n", cfg.GetString("llm.provider"))
	fmt.Printf("Local only: %t\n", *localOnly)

	startTime := time.Now()
	result := engine.Classify(context.Background(), *msg)
	duration := time.Since(startTime)

	folder, routable := categories.FolderFor(result.Category)
	if !routable {
		folder = "(stays in place)"
	}

	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Category: %s\n", result.Category)
	fmt.Printf("Confidence: %.4f\n", result.Confidence)
	fmt.Printf("Method: %s\n", result.Method)
	fmt.Printf("Explanation: %s\n", result.Explanation)
	fmt.Printf("Destination folder: %s\n", folder)
	fmt.Printf("Processing time: %v\n", duration)

	if closer, ok := remote.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close remote classifier", zap.Error(err))
		}
	}
}

// readEmail parses the input message into the classification model
func readEmail(logger *zap.Logger) (*core.Message, error) {
	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", *inputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	parsed, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		return nil, err
	}
	bodyBytes, err := io.ReadAll(parsed.Body)
	if err != nil {
		return nil, err
	}

	return &core.Message{
		ID:      core.MessageID{Folder: "local", UID: "1"},
		From:    parsed.Header.Get("From"),
		Subject: parsed.Header.Get("Subject"),
		Body:    string(bodyBytes),
		Date:    time.Now(),
	}, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("llm.provider", *provider)

	switch *provider {
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
		v.Set("bedrock.max_body_size", *maxBodySize)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
		v.Set("gemini.max_body_size", *maxBodySize)
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.base_url", *openaiBaseURL)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
		v.Set("openai.max_body_size", *maxBodySize)
	}

	v.Set("rules.dir", *rulesDir)
	v.Set("categories.file", *categoryFile)

	return config.NewFromViper(v)
}

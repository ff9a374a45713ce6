package config

import "time"

// IMAPConfig represents the configuration for the mailbox connection
type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Security string
}

// ScanConfig represents the configuration for the scan coordinator
type ScanConfig struct {
	Interval       time.Duration
	MaxPerFolder   int
	SpamTrashLimit int
	Workers        int
	SkipFolders    []string
	UnseenOnly     bool
	DryRun         bool
	CheckpointPath string
}

// ClassificationConfig represents the configuration for the tiered engine
type ClassificationConfig struct {
	BatchSize       int
	RemoteTimeout   time.Duration
	RateLimitCalls  int
	RateLimitWindow time.Duration
}

// RulesConfig represents the configuration for the adaptive rule store
type RulesConfig struct {
	Dir string
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI-compatible endpoints
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// CacheConfig represents the configuration for the pattern cache
type CacheConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// GetIMAP returns the IMAP configuration
func (c *Config) GetIMAP() IMAPConfig {
	return IMAPConfig{
		Host:     c.GetString("imap.host"),
		Port:     c.GetInt("imap.port"),
		Username: c.GetString("imap.username"),
		Password: c.GetString("imap.password"),
		Security: c.GetString("imap.security"),
	}
}

// GetScan returns the scan configuration
func (c *Config) GetScan() (ScanConfig, error) {
	interval, err := c.GetDuration("scan.interval")
	if err != nil {
		return ScanConfig{}, err
	}
	return ScanConfig{
		Interval:       interval,
		MaxPerFolder:   c.GetInt("scan.max_per_folder"),
		SpamTrashLimit: c.GetInt("scan.spam_trash_limit"),
		Workers:        c.GetInt("scan.workers"),
		SkipFolders:    c.GetStringSlice("scan.skip_folders"),
		UnseenOnly:     c.GetBool("scan.unseen_only"),
		DryRun:         c.GetBool("scan.dry_run"),
		CheckpointPath: c.GetString("scan.checkpoint_path"),
	}, nil
}

// GetClassification returns the classification engine configuration
func (c *Config) GetClassification() (ClassificationConfig, error) {
	timeout, err := c.GetDuration("classification.remote_timeout")
	if err != nil {
		return ClassificationConfig{}, err
	}
	window, err := c.GetDuration("classification.rate_limit_window")
	if err != nil {
		return ClassificationConfig{}, err
	}
	return ClassificationConfig{
		BatchSize:       c.GetInt("classification.batch_size"),
		RemoteTimeout:   timeout,
		RateLimitCalls:  c.GetInt("classification.rate_limit_calls"),
		RateLimitWindow: window,
	}, nil
}

// GetRules returns the rule store configuration
func (c *Config) GetRules() RulesConfig {
	return RulesConfig{
		Dir: c.GetString("rules.dir"),
	}
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Type:       c.GetString("cache.type"),
		SQLitePath: c.GetString("cache.sqlite_path"),
		MySQLDSN:   c.GetString("cache.mysql_dsn"),
	}
}

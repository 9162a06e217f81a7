package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Delivery targets
const (
	TargetEmail = "email"
	TargetGCS   = "gcs"
)

// LLM providers
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// DefaultKeywords is the keyword list used when neither KEYWORDS nor KEYWORDS_FILE is set.
var DefaultKeywords = []string{
	"global economy", "Vietnam economy", "stock market", "real estate",
	"gold price", "silver price", "monetary policy", "interest rate",
	"US dollar", "inflation", "FDI Vietnam", "export growth",
	"manufacturing PMI", "AI economy", "tech industry", "cryptocurrency",
	"infrastructure Vietnam", "trade agreements", "supply chain",
	"recession",
}

// Config holds all configuration for the application
type Config struct {
	// Server settings
	Port         string `json:"port"`
	Host         string `json:"host"`
	TriggerToken string `json:"-"` // Don't expose in JSON

	// Logging
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	// News search settings
	NewsAPIKey      string        `json:"-"`
	NewsAPIEndpoint string        `json:"news_api_endpoint"`
	NewsLanguage    string        `json:"news_language"`
	NewsPageSize    int           `json:"news_page_size"`
	NewsDelay       time.Duration `json:"news_delay"`
	Keywords        []string      `json:"keywords"`

	// Generative model settings
	LLMProvider  string `json:"llm_provider"`
	GeminiAPIKey string `json:"-"`
	GeminiModel  string `json:"gemini_model"`
	OllamaModel  string `json:"ollama_model"`

	// Summarization settings
	BatchSize       int           `json:"batch_size"`
	BatchDelay      time.Duration `json:"batch_delay"`
	BatchAttempts   int           `json:"batch_attempts"`
	BatchBackoff    time.Duration `json:"batch_backoff"`
	SummaryLanguage string        `json:"summary_language"`
	SummaryMarket   string        `json:"summary_market"`

	// Report settings
	ReportDir string `json:"report_dir"`
	FontPath  string `json:"font_path"`
	FontURL   string `json:"font_url"`

	// Delivery settings
	DeliveryTargets  []string      `json:"delivery_targets"`
	DeliveryAttempts int           `json:"delivery_attempts"`
	DeliveryBackoff  time.Duration `json:"delivery_backoff"`

	// Email (Resend) settings
	ResendAPIKey   string   `json:"-"`
	ResendAPIURL   string   `json:"resend_api_url"`
	EmailSender    string   `json:"email_sender"`
	EmailReceivers []string `json:"email_receivers"`

	// Cloud Storage settings
	GCSBucket          string `json:"gcs_bucket"`
	GCSFolder          string `json:"gcs_folder"`
	GCSPublicRead      bool   `json:"gcs_public_read"`
	GCSCredentialsFile string `json:"-"`

	// Slack settings
	SlackBotToken string `json:"-"`
	SlackChannel  string `json:"slack_channel"`

	// Scheduling
	ScheduleTimes    []string `json:"schedule_times"`
	ScheduleTimezone string   `json:"schedule_timezone"`

	// Shared run guard
	RedisAddr     string        `json:"redis_addr"`
	RedisPassword string        `json:"-"`
	LockKey       string        `json:"lock_key"`
	LockTTL       time.Duration `json:"lock_ttl"`
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	keywords, err := loadKeywords()
	if err != nil {
		return nil, err
	}

	config := &Config{
		Port:         getEnvOrDefault("PORT", "10000"),
		Host:         getEnvOrDefault("HOST", "0.0.0.0"),
		TriggerToken: getEnvOrDefault("TRIGGER_TOKEN", ""),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		NewsAPIKey:      getEnvOrDefault("NEWSAPI_KEY", ""),
		NewsAPIEndpoint: getEnvOrDefault("NEWSAPI_ENDPOINT", "https://newsapi.org/v2/everything"),
		NewsLanguage:    getEnvOrDefault("NEWS_LANGUAGE", "en"),
		NewsPageSize:    getEnvOrDefaultInt("NEWS_PAGE_SIZE", 2),
		NewsDelay:       getEnvOrDefaultSeconds("NEWS_DELAY_SECONDS", 5),
		Keywords:        keywords,

		LLMProvider:  strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey: getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:  getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		OllamaModel:  getEnvOrDefault("OLLAMA_MODEL", "llama3.1"),

		BatchSize:       getEnvOrDefaultInt("SUMMARY_BATCH_SIZE", 10),
		BatchDelay:      getEnvOrDefaultSeconds("SUMMARY_BATCH_DELAY_SECONDS", 30),
		BatchAttempts:   getEnvOrDefaultInt("SUMMARY_BATCH_ATTEMPTS", 2),
		BatchBackoff:    getEnvOrDefaultSeconds("SUMMARY_BATCH_BACKOFF_SECONDS", 10),
		SummaryLanguage: getEnvOrDefault("SUMMARY_LANGUAGE", "Vietnamese"),
		SummaryMarket:   getEnvOrDefault("SUMMARY_MARKET", "Vietnam"),

		ReportDir: getEnvOrDefault("REPORT_DIR", os.TempDir()),
		FontPath:  getEnvOrDefault("REPORT_FONT_PATH", "/tmp/NotoSans-Regular.ttf"),
		FontURL: getEnvOrDefault("REPORT_FONT_URL",
			"https://github.com/googlefonts/noto-fonts/raw/main/hinted/ttf/NotoSans/NotoSans-Regular.ttf"),

		DeliveryTargets:  parseStringSlice(strings.ToLower(getEnvOrDefault("DELIVERY_TARGETS", TargetEmail))),
		DeliveryAttempts: getEnvOrDefaultInt("DELIVERY_ATTEMPTS", 3),
		DeliveryBackoff:  getEnvOrDefaultSeconds("DELIVERY_BACKOFF_SECONDS", 15),

		ResendAPIKey:   getEnvOrDefault("RESEND_API_KEY", ""),
		ResendAPIURL:   getEnvOrDefault("RESEND_API_URL", "https://api.resend.com/emails"),
		EmailSender:    getEnvOrDefault("EMAIL_SENDER", ""),
		EmailReceivers: parseStringSlice(getEnvOrDefault("EMAIL_RECEIVERS", getEnvOrDefault("EMAIL_RECEIVER", ""))),

		GCSBucket:          getEnvOrDefault("GCS_BUCKET", ""),
		GCSFolder:          strings.Trim(getEnvOrDefault("GCS_FOLDER", "reports"), "/"),
		GCSPublicRead:      getEnvOrDefaultBool("GCS_PUBLIC_READ", false),
		GCSCredentialsFile: getEnvOrDefault("GCS_CREDENTIALS_FILE", ""),

		SlackBotToken: getEnvOrDefault("SLACK_BOT_TOKEN", ""),
		SlackChannel:  getEnvOrDefault("SLACK_CHANNEL", ""),

		ScheduleTimes:    parseStringSlice(getEnvOrDefault("SCHEDULE_TIMES", "01:00,16:00")),
		ScheduleTimezone: getEnvOrDefault("SCHEDULE_TIMEZONE", "UTC"),

		RedisAddr:     getEnvOrDefault("REDIS_ADDR", ""),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		LockKey:       getEnvOrDefault("LOCK_KEY", "econ-news-digest:run"),
		LockTTL:       time.Duration(getEnvOrDefaultInt("LOCK_TTL_MINUTES", 60)) * time.Minute,
	}

	return config, config.validate()
}

// HasTarget reports whether the named delivery target is enabled.
func (c *Config) HasTarget(name string) bool {
	for _, target := range c.DeliveryTargets {
		if target == name {
			return true
		}
	}
	return false
}

// validate checks if required configuration values are present
func (c *Config) validate() error {
	if c.NewsAPIKey == "" {
		return &ConfigError{Field: "NEWSAPI_KEY", Message: "news search API key is required"}
	}
	if len(c.Keywords) == 0 {
		return &ConfigError{Field: "KEYWORDS", Message: "at least one keyword is required"}
	}
	if c.NewsPageSize <= 0 {
		return &ConfigError{Field: "NEWS_PAGE_SIZE", Message: "must be positive"}
	}
	if c.BatchSize <= 0 {
		return &ConfigError{Field: "SUMMARY_BATCH_SIZE", Message: "must be positive"}
	}

	switch c.LLMProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return &ConfigError{Field: "GEMINI_API_KEY", Message: "Gemini API key is required"}
		}
	case ProviderOllama:
		if c.OllamaModel == "" {
			return &ConfigError{Field: "OLLAMA_MODEL", Message: "model name is required"}
		}
	default:
		return &ConfigError{Field: "LLM_PROVIDER", Message: "unknown provider " + c.LLMProvider}
	}

	if len(c.DeliveryTargets) == 0 {
		return &ConfigError{Field: "DELIVERY_TARGETS", Message: "at least one delivery target is required"}
	}
	for _, target := range c.DeliveryTargets {
		switch target {
		case TargetEmail:
			if c.ResendAPIKey == "" {
				return &ConfigError{Field: "RESEND_API_KEY", Message: "Resend API key is required for email delivery"}
			}
			if c.EmailSender == "" {
				return &ConfigError{Field: "EMAIL_SENDER", Message: "sender address is required for email delivery"}
			}
			if len(c.EmailReceivers) == 0 {
				return &ConfigError{Field: "EMAIL_RECEIVERS", Message: "at least one receiver is required for email delivery"}
			}
		case TargetGCS:
			if c.GCSBucket == "" {
				return &ConfigError{Field: "GCS_BUCKET", Message: "bucket is required for storage delivery"}
			}
		default:
			return &ConfigError{Field: "DELIVERY_TARGETS", Message: "unknown target " + target}
		}
	}

	if c.SlackChannel != "" && !strings.HasPrefix(c.SlackBotToken, "xoxb-") {
		return &ConfigError{Field: "SLACK_BOT_TOKEN", Message: "must start with xoxb- when SLACK_CHANNEL is set"}
	}

	if len(c.ScheduleTimes) == 0 {
		return &ConfigError{Field: "SCHEDULE_TIMES", Message: "at least one time is required"}
	}
	for _, clock := range c.ScheduleTimes {
		if _, err := time.Parse("15:04", clock); err != nil {
			return &ConfigError{Field: "SCHEDULE_TIMES", Message: fmt.Sprintf("invalid time %q, want HH:MM", clock)}
		}
	}
	if _, err := time.LoadLocation(c.ScheduleTimezone); err != nil {
		return &ConfigError{Field: "SCHEDULE_TIMEZONE", Message: err.Error()}
	}

	return nil
}

// loadKeywords resolves the keyword list: KEYWORDS, then KEYWORDS_FILE, then defaults.
func loadKeywords() ([]string, error) {
	if value := os.Getenv("KEYWORDS"); value != "" {
		return parseStringSlice(value), nil
	}
	if path := os.Getenv("KEYWORDS_FILE"); path != "" {
		keywords, err := readKeywordsFile(path)
		if err != nil {
			return nil, &ConfigError{Field: "KEYWORDS_FILE", Message: err.Error()}
		}
		return keywords, nil
	}
	return append([]string(nil), DefaultKeywords...), nil
}

// readKeywordsFile accepts either a bare YAML list or a {keywords: [...]} document.
func readKeywordsFile(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keywords file: %w", err)
	}

	var list []string
	if err := yaml.Unmarshal(raw, &list); err != nil {
		var doc struct {
			Keywords []string `yaml:"keywords"`
		}
		if docErr := yaml.Unmarshal(raw, &doc); docErr != nil {
			return nil, fmt.Errorf("parsing keywords file: %w", docErr)
		}
		list = doc.Keywords
	}

	result := make([]string, 0, len(list))
	for _, keyword := range list {
		if trimmed := strings.TrimSpace(keyword); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result, nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default if not set
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvOrDefaultSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvOrDefaultInt(key, defaultValue)) * time.Second
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// parseStringSlice parses comma-separated string into slice
func parseStringSlice(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

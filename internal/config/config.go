package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	Port        string
	DatabaseURL string
	Version     string
	LogLevel    string

	// LLM providers (Azure primary, OpenAI fallback)
	OpenAIKey                      string
	AzureOpenAIEndpoint            string
	AzureOpenAIKey                 string
	AzureOpenAIGPTDeployment       string
	AzureOpenAIEmbeddingDeployment string
	OpenAITimeout                  int // seconds

	// Broker
	RabbitMQURL              string
	QueueName                string
	DeadLetterQueue          string
	ConsumerWorkers          int
	ReconnectDelaySeconds    int
	EnableConsumer           bool
	CrispWebhookSecret       string
	WebhookMaxSkewSeconds    int
	DedupContentHash         bool // fingerprint-less events get a content-derived fingerprint
	Timezone                 string
	WorkDayStartHour         int
	AnalysisMinMessages      int
	AnalysisSampleRate       float64
	AnalysisBatchSize        int
	AnalysisBatchDelayMs     int
	EmbeddingBatchSize       int
	EmbeddingBatchDelayMs    int
	EmbeddingDimensions      int
	EmbeddingMaxInputChars   int
	QdrantHost               string
	QdrantPort               int
	QdrantAPIKey             string
	QdrantCollection         string
	SendGridAPIKey           string
	ReportEmail              string
	ReportSender             string
	JobImage                 string
	JobNamespace             string
	InsightsCacheMinutes     int
	InsightsReportHour       int
	InsightsReportMinute     int
	BatchAnalysisIntervalMin int
	EnableScheduler          bool
}

// Load initializes and returns application configuration
func Load() *Config {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Version:     getEnv("VERSION", "1.0.0"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		OpenAIKey:                      os.Getenv("OPENAI_API_KEY"),
		AzureOpenAIEndpoint:            os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureOpenAIKey:                 os.Getenv("AZURE_OPENAI_KEY"),
		AzureOpenAIGPTDeployment:       getEnv("AZURE_OPENAI_GPT_DEPLOYMENT", "gpt-4o-mini"),
		AzureOpenAIEmbeddingDeployment: getEnv("AZURE_OPENAI_EMBEDDING_DEPLOYMENT", "text-embedding-3-small"),
		OpenAITimeout:                  getEnvInt("OPENAI_TIMEOUT", 60),

		RabbitMQURL:           getEnv("RABBITMQ_URL", "amqp://localhost"),
		QueueName:             getEnv("RABBITMQ_QUEUE", "crisp_messages"),
		DeadLetterQueue:       getEnv("RABBITMQ_DEAD_LETTER_QUEUE", "crisp_messages.dead"),
		ConsumerWorkers:       getEnvInt("CONSUMER_WORKERS", 4),
		ReconnectDelaySeconds: getEnvInt("RABBITMQ_RECONNECT_SECONDS", 10),
		EnableConsumer:        getEnvBool("ENABLE_CONSUMER", true),
		CrispWebhookSecret:    os.Getenv("CRISP_WEBHOOK_SECRET"),
		WebhookMaxSkewSeconds: getEnvInt("WEBHOOK_MAX_SKEW_SECONDS", 1800),
		DedupContentHash:      getEnvBool("DEDUP_CONTENT_HASH", false),

		Timezone:               getEnv("TIMEZONE", "Asia/Ho_Chi_Minh"),
		WorkDayStartHour:       getEnvInt("WORK_DAY_START_HOUR", 7),
		AnalysisMinMessages:    getEnvInt("ANALYSIS_MIN_MESSAGES", 5),
		AnalysisSampleRate:     getEnvFloat("ANALYSIS_SAMPLE_RATE", 1.0),
		AnalysisBatchSize:      getEnvInt("ANALYSIS_BATCH_SIZE", 50),
		AnalysisBatchDelayMs:   getEnvInt("ANALYSIS_BATCH_DELAY_MS", 1000),
		EmbeddingBatchSize:     getEnvInt("EMBEDDING_BATCH_SIZE", 20),
		EmbeddingBatchDelayMs:  getEnvInt("EMBEDDING_BATCH_DELAY_MS", 500),
		EmbeddingDimensions:    getEnvInt("EMBEDDING_DIMENSIONS", 1536),
		EmbeddingMaxInputChars: getEnvInt("EMBEDDING_MAX_INPUT_CHARS", 8000),

		QdrantHost:       os.Getenv("QDRANT_HOST"),
		QdrantPort:       getEnvInt("QDRANT_PORT", 6334),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "conversation_summaries"),

		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		ReportEmail:    os.Getenv("REPORT_EMAIL"),
		ReportSender:   getEnv("REPORT_SENDER", "insights@chatlens.local"),

		JobImage:     os.Getenv("JOB_IMAGE"),
		JobNamespace: getEnv("JOB_NAMESPACE", "chatlens"),

		InsightsCacheMinutes:     getEnvInt("INSIGHTS_CACHE_MINUTES", 5),
		InsightsReportHour:       getEnvInt("INSIGHTS_REPORT_HOUR", 7),
		InsightsReportMinute:     getEnvInt("INSIGHTS_REPORT_MINUTE", 30),
		BatchAnalysisIntervalMin: getEnvInt("BATCH_ANALYSIS_INTERVAL_MINUTES", 60),
		EnableScheduler:          getEnvBool("ENABLE_SCHEDULER", true),
	}

	return config
}

// UseAzureOpenAI reports whether Azure OpenAI is configured as the primary provider
func (c *Config) UseAzureOpenAI() bool {
	return c.AzureOpenAIEndpoint != "" && c.AzureOpenAIKey != ""
}

// HasOpenAIFallback reports whether the OpenAI platform key is available
func (c *Config) HasOpenAIFallback() bool {
	return c.OpenAIKey != ""
}

// UseQdrant reports whether the Qdrant index should serve vector queries
func (c *Config) UseQdrant() bool {
	return c.QdrantHost != ""
}

// Location returns the business timezone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ReconnectDelay is the fixed backoff between broker reconnect attempts
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySeconds) * time.Second
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as integer with a default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets an environment variable as float with a default fallback
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as boolean with a default fallback
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// SetupLogger configures zerolog with JSON output and single-line format
func (c *Config) SetupLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "chatlens").
		Str("version", c.Version).
		Logger()

	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	return logger
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPHost    string
	HTTPPort    string
	MetricsAddr string

	LogLevel  string
	LogFormat string

	QueueBackend          string
	SQSQueueURL           string
	SQSDeadLetterQueueURL string
	RedisStream           string
	RedisDeadLetterStream string

	PollWait          time.Duration
	VisibilityTimeout time.Duration
	ProcessTimeout    time.Duration
	ReceiveErrorDelay time.Duration
	MaxReceiveCount   int

	NotifyProvider string
	SNSTopic       string
	SESSourceEmail string
	AWSRegion      string
	AWSEndpoint    string

	BillBaseURL string

	MySQLDSN     string
	MySQLMaxOpen int
	MySQLMaxIdle int
	MySQLMaxLife time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LockBackend string
}

// Load reads configuration from the environment, honouring an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPHost:    getEnv("HTTP_HOST", "0.0.0.0"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		QueueBackend:          strings.ToLower(getEnv("QUEUE_BACKEND", "sqs")),
		SQSQueueURL:           getEnv("SQS_QUEUE_URL", ""),
		SQSDeadLetterQueueURL: getEnv("SQS_DEAD_LETTER_QUEUE_URL", ""),
		RedisStream:           getEnv("REDIS_STREAM", "bills:due-requests"),
		RedisDeadLetterStream: getEnv("REDIS_DEAD_LETTER_STREAM", ""),

		NotifyProvider: strings.ToLower(getEnv("NOTIFY_PROVIDER", "sns")),
		SNSTopic:       getEnv("SNS_TOPIC", ""),
		SESSourceEmail: getEnv("SES_SOURCE_EMAIL", ""),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpoint:    getEnv("AWS_ENDPOINT", ""),

		BillBaseURL: getEnv("BILL_BASE_URL", "http://localhost:8080"),

		MySQLDSN: getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/bills?parseTime=true"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		LockBackend: strings.ToLower(getEnv("LOCK_BACKEND", "redis")),
	}

	var err error
	if cfg.PollWait, err = getEnvDuration("POLL_WAIT", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.VisibilityTimeout, err = getEnvDuration("VISIBILITY_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProcessTimeout, err = getEnvDuration("PROCESS_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReceiveErrorDelay, err = getEnvDuration("RECEIVE_ERROR_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.MySQLMaxLife, err = getEnvDuration("MYSQL_MAX_LIFE", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MaxReceiveCount, err = getEnvInt("MAX_RECEIVE_COUNT", 0); err != nil {
		return nil, err
	}
	if cfg.MySQLMaxOpen, err = getEnvInt("MYSQL_MAX_OPEN", 10); err != nil {
		return nil, err
	}
	if cfg.MySQLMaxIdle, err = getEnvInt("MYSQL_MAX_IDLE", 5); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateConsumer checks the settings the due-bill consumer cannot run without.
func (c *Config) ValidateConsumer() error {
	switch c.QueueBackend {
	case "sqs":
		if c.SQSQueueURL == "" {
			return fmt.Errorf("SQS_QUEUE_URL is required for the sqs queue backend")
		}
		if c.PollWait < time.Second {
			return fmt.Errorf("POLL_WAIT must be at least 1s for the sqs queue backend")
		}
	case "redis":
		if c.RedisStream == "" {
			return fmt.Errorf("REDIS_STREAM is required for the redis queue backend")
		}
	default:
		return fmt.Errorf("unsupported QUEUE_BACKEND: %s", c.QueueBackend)
	}
	if c.NotifyProvider == "sns" && c.SNSTopic == "" {
		return fmt.Errorf("SNS_TOPIC is required for the sns notify provider")
	}
	if c.PollWait <= 0 {
		return fmt.Errorf("POLL_WAIT must be positive")
	}
	if c.MaxReceiveCount < 0 {
		return fmt.Errorf("MAX_RECEIVE_COUNT must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

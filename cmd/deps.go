package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-bills-due/app/lock"
	"github.com/vibast-solutions/ms-go-bills-due/app/provider"
	"github.com/vibast-solutions/ms-go-bills-due/app/queue"
	"github.com/vibast-solutions/ms-go-bills-due/config"
)

// newLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unsupported LOG_FORMAT: %s", cfg.LogFormat)
	}
	return logger, nil
}

func openMySQL(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MySQLMaxOpen)
	db.SetMaxIdleConns(cfg.MySQLMaxIdle)
	db.SetConnMaxLifetime(cfg.MySQLMaxLife)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func openRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}

// needsRedis reports whether any configured component talks to Redis.
func needsRedis(cfg *config.Config) bool {
	return cfg.QueueBackend == "redis" || cfg.LockBackend == "redis"
}

// loadAWSConfig loads the default AWS chain. AWS_ENDPOINT points every client
// at a local emulator such as LocalStack.
func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.AWSEndpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWSEndpoint)
	}
	return awsCfg, nil
}

func buildPublisher(cfg *config.Config, awsCfg aws.Config, logger logrus.FieldLogger) (provider.NotificationPublisher, error) {
	switch cfg.NotifyProvider {
	case "", "sns":
		return provider.NewSNSPublisherFromConfig(awsCfg, cfg.SNSTopic, logger), nil
	case "ses":
		return provider.NewSESPublisherFromConfig(awsCfg, cfg.SESSourceEmail), nil
	case "noop":
		return provider.NewNoopPublisher(logger), nil
	default:
		return nil, fmt.Errorf("unsupported NOTIFY_PROVIDER: %s", cfg.NotifyProvider)
	}
}

func buildLocker(cfg *config.Config, db *sql.DB, rdb *redis.Client) (lock.Locker, error) {
	switch cfg.LockBackend {
	case "", "redis":
		return lock.NewRedisLocker(rdb), nil
	case "mysql":
		return lock.NewMySQLLocker(db), nil
	default:
		return nil, fmt.Errorf("unsupported LOCK_BACKEND: %s", cfg.LockBackend)
	}
}

// buildSender returns the producing side of the work queue.
func buildSender(cfg *config.Config, awsCfg aws.Config, rdb *redis.Client) (queue.Sender, error) {
	switch cfg.QueueBackend {
	case "sqs":
		if cfg.SQSQueueURL == "" {
			return nil, fmt.Errorf("SQS_QUEUE_URL is required for the sqs queue backend")
		}
		return queue.NewSQSQueueFromConfig(awsCfg, cfg.SQSQueueURL), nil
	case "redis":
		return queue.NewRedisStreamSender(rdb, cfg.RedisStream), nil
	default:
		return nil, fmt.Errorf("unsupported QUEUE_BACKEND: %s", cfg.QueueBackend)
	}
}

// buildReceiver returns the consuming side of the work queue plus the
// dead-letter sender, which is nil when none is configured.
func buildReceiver(ctx context.Context, cfg *config.Config, awsCfg aws.Config, rdb *redis.Client, consumerName string) (queue.Receiver, queue.Sender, error) {
	switch cfg.QueueBackend {
	case "sqs":
		var deadLetter queue.Sender
		if cfg.SQSDeadLetterQueueURL != "" {
			deadLetter = queue.NewSQSQueueFromConfig(awsCfg, cfg.SQSDeadLetterQueueURL)
		}
		return queue.NewSQSQueueFromConfig(awsCfg, cfg.SQSQueueURL), deadLetter, nil
	case "redis":
		q := queue.NewRedisStreamQueue(rdb, cfg.RedisStream, consumerName, cfg.VisibilityTimeout)
		if err := q.EnsureGroup(ctx); err != nil {
			return nil, nil, err
		}
		var deadLetter queue.Sender
		if cfg.RedisDeadLetterStream != "" {
			deadLetter = queue.NewRedisStreamSender(rdb, cfg.RedisDeadLetterStream)
		}
		return q, deadLetter, nil
	default:
		return nil, nil, fmt.Errorf("unsupported QUEUE_BACKEND: %s", cfg.QueueBackend)
	}
}

package cmd

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-bills-due/app/metrics"
	"github.com/vibast-solutions/ms-go-bills-due/app/preparer"
	"github.com/vibast-solutions/ms-go-bills-due/app/provider"
	"github.com/vibast-solutions/ms-go-bills-due/app/queue"
	"github.com/vibast-solutions/ms-go-bills-due/app/repository"
	"github.com/vibast-solutions/ms-go-bills-due/app/service"
	"github.com/vibast-solutions/ms-go-bills-due/config"
)

// lockTTLMargin keeps a request lock alive past the processing timeout.
const lockTTLMargin = 30 * time.Second

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume queued messages",
	Long:  "Consume queued messages from SQS or Redis streams.",
}

// init registers consume subcommands.
func init() {
	consumeCmd.AddCommand(consumeDueBillsCmd)
	rootCmd.AddCommand(consumeCmd)
}

var consumeDueBillsCmd = &cobra.Command{
	Use:   "due-bills [consumer_name]",
	Short: "Start the due-bill queue consumer",
	Long:  "Start a worker that reads due-bill requests from the queue, selects the bills due within the horizon and publishes a notification.",
	Args:  cobra.MaximumNArgs(1),
	Run:   runConsumeDueBills,
}

// runConsumeDueBills starts the due-bill consumer worker.
func runConsumeDueBills(_ *cobra.Command, args []string) {
	consumerName, _ := os.Hostname()
	if len(args) == 1 {
		consumerName = args[0]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	if err := cfg.ValidateConsumer(); err != nil {
		logger.WithError(err).Fatal("Invalid consumer configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := openMySQL(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	var rdb *redis.Client
	if needsRedis(cfg) {
		rdb, err = openRedis(ctx, cfg)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer rdb.Close()
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load AWS configuration")
	}

	publisher, err := buildPublisher(cfg, awsCfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build notification publisher")
	}
	receiver, deadLetter, err := buildReceiver(ctx, cfg, awsCfg, rdb, consumerName)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build queue receiver")
	}

	reg := newRegistry()
	m := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.MetricsAddr, reg, logger)
	}

	dueService, err := newDueBillService(cfg, db, rdb, publisher, logger, m)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build due-bill service")
	}

	consumer := queue.NewDueBillConsumer(receiver, dueService, deadLetter, queue.ConsumerConfig{
		PollWait:          cfg.PollWait,
		ProcessTimeout:    cfg.ProcessTimeout,
		ReceiveErrorDelay: cfg.ReceiveErrorDelay,
		MaxReceiveCount:   cfg.MaxReceiveCount,
	}, logger.WithFields(logrus.Fields{
		"consumer": consumerName,
		"backend":  cfg.QueueBackend,
	}), m)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Received shutdown signal, stopping consumer...")
		cancel()
	}()

	if err := consumer.Run(ctx); err != nil {
		logger.WithError(err).Fatal("Consumer error")
	}

	logger.Info("Consumer stopped")
}

func newDueBillService(cfg *config.Config, db *sql.DB, rdb *redis.Client, publisher provider.NotificationPublisher, logger logrus.FieldLogger, m *metrics.Metrics) (*service.DueBillService, error) {
	locker, err := buildLocker(cfg, db, rdb)
	if err != nil {
		return nil, err
	}
	return service.NewDueBillService(
		repository.NewBillRepository(db),
		repository.NewUserRepository(db),
		repository.NewNotificationHistoryRepository(db),
		preparer.NewDuePreparer(cfg.BillBaseURL),
		publisher,
		locker,
		clockwork.NewRealClock(),
		logger,
	).WithMetrics(m).WithLockTTL(cfg.ProcessTimeout + lockTTLMargin), nil
}

package cmd

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-bills-due/app/controller"
	"github.com/vibast-solutions/ms-go-bills-due/app/metrics"
	"github.com/vibast-solutions/ms-go-bills-due/app/queue"
	"github.com/vibast-solutions/ms-go-bills-due/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server that accepts due-bill requests and queues them for the consumer.",
	Run:   runServe,
}

// init registers the serve command.
func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires dependencies and starts the HTTP server.
func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	ctx := context.Background()

	var rdb *redis.Client
	if cfg.QueueBackend == "redis" {
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
	sender, err := buildSender(cfg, awsCfg, rdb)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build queue sender")
	}

	reg := newRegistry()
	m := metrics.New(reg)
	producer := queue.NewDueBillProducer(sender)
	dueController := controller.NewDueBillController(producer, logger, m)

	e := setupHTTPServer(dueController, reg)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)
		logger.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP shutdown error")
	}

	logger.Info("Server stopped")
}

// setupHTTPServer configures the Echo HTTP server and routes.
func setupHTTPServer(dueController *controller.DueBillController, reg prometheus.Gatherer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())

	v1 := e.Group("/v1")
	v1.POST("/bills/due", dueController.Enqueue)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return e
}

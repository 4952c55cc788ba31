package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-bills-due/app/dto"
	"github.com/vibast-solutions/ms-go-bills-due/app/metrics"
)

// Enqueuer queues a due-bill request and returns its request ID.
type Enqueuer interface {
	EnqueueDueBillRequest(ctx context.Context, userID string, horizonDays int) (string, error)
}

type DueBillController struct {
	enqueuer Enqueuer
	logger   logrus.FieldLogger
	metrics  *metrics.Metrics
}

// NewDueBillController constructs the HTTP due-bill controller.
func NewDueBillController(enqueuer Enqueuer, logger logrus.FieldLogger, m *metrics.Metrics) *DueBillController {
	return &DueBillController{enqueuer: enqueuer, logger: logger, metrics: m}
}

// Enqueue validates a due-bill request and queues it for the consumer.
func (c *DueBillController) Enqueue(ctx echo.Context) error {
	req, err := dto.FromEchoContext(ctx)
	if err != nil {
		c.metrics.IncEnqueued("invalid")
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		c.metrics.IncEnqueued("invalid")
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	start := time.Now()
	requestID, err := c.enqueuer.EnqueueDueBillRequest(ctx.Request().Context(), req.UserID, *req.HorizonDays)
	c.metrics.ObserveStage(metrics.StageEnqueue, time.Since(start))
	if err != nil {
		c.metrics.IncEnqueued("failed")
		c.logger.WithError(err).WithField("user_id", req.UserID).Error("Failed to queue due-bill request")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to queue request"})
	}

	c.metrics.IncEnqueued("accepted")
	return ctx.JSON(http.StatusAccepted, dto.DueBillResponse{RequestID: requestID})
}

package queue

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-bills-due/app/metrics"
	"github.com/vibast-solutions/ms-go-bills-due/app/provider"
	"github.com/vibast-solutions/ms-go-bills-due/app/service"
)

// Processor runs the due-bill pipeline for one decoded request.
type Processor interface {
	Process(ctx context.Context, userID string, horizonDays int) (service.Outcome, error)
}

type ConsumerConfig struct {
	PollWait          time.Duration
	ProcessTimeout    time.Duration
	ReceiveErrorDelay time.Duration
	// MaxReceiveCount enables dead-lettering of permanently failing messages
	// once they were delivered this many times. Zero disables it.
	MaxReceiveCount int
}

type DueBillConsumer struct {
	receiver   Receiver
	processor  Processor
	deadLetter Sender
	cfg        ConsumerConfig
	logger     logrus.FieldLogger
	metrics    *metrics.Metrics
}

// NewDueBillConsumer constructs the sequential queue consumer. deadLetter and
// m may be nil.
func NewDueBillConsumer(receiver Receiver, processor Processor, deadLetter Sender, cfg ConsumerConfig, logger logrus.FieldLogger, m *metrics.Metrics) *DueBillConsumer {
	return &DueBillConsumer{
		receiver:   receiver,
		processor:  processor,
		deadLetter: deadLetter,
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
	}
}

// Run polls the queue one message at a time and blocks until ctx is cancelled.
// A message being processed when ctx is cancelled is finished first.
func (c *DueBillConsumer) Run(ctx context.Context) error {
	c.logger.WithField("poll_wait", c.cfg.PollWait).Info("Due-bill consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Due-bill consumer shutting down")
			return nil
		default:
		}

		msg, err := c.receiver.Receive(ctx, c.cfg.PollWait)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Due-bill consumer shutting down")
				return nil
			}
			c.metrics.IncReceiveError()
			c.logger.WithError(err).WithFields(provider.ErrorFields(err)).Warn("Receive from queue failed")
			c.pause(ctx)
			continue
		}
		if msg == nil {
			continue
		}

		c.metrics.IncReceived()
		c.handle(ctx, *msg)
	}
}

func (c *DueBillConsumer) handle(ctx context.Context, msg Message) {
	start := time.Now()
	processCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ProcessTimeout)
	defer cancel()

	logger := c.logger.WithFields(logrus.Fields{
		"message_id":    msg.ID,
		"receive_count": msg.ReceiveCount,
	})

	req, err := ParseBillDueRequest(msg.Body)
	if err != nil {
		logger.WithError(err).Error("Malformed due-bill request")
		result := c.permanentFailure(processCtx, msg, logger)
		if result == metrics.ResultPermanentFailure {
			result = metrics.ResultMalformed
		}
		c.metrics.ObserveProcessed(result, time.Since(start))
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = msg.ID
	}
	logger = logger.WithFields(logrus.Fields{
		"request_id":   requestID,
		"user_id":      req.UserID,
		"horizon_days": req.Horizon(),
	})

	outcome, err := c.processor.Process(service.WithRequestID(processCtx, requestID), req.UserID, req.Horizon())
	if err != nil {
		var result string
		switch {
		case service.IsPermanent(err):
			logger.WithError(err).Error("Due-bill request failed permanently")
			result = c.permanentFailure(processCtx, msg, logger)
		case errors.Is(err, provider.ErrTopicNotFound):
			logger.WithError(err).WithFields(provider.ErrorFields(err)).WithField("configuration", "SNS_TOPIC").Error("Notification topic is not configured")
			result = metrics.ResultTransientFailure
		default:
			logger.WithError(err).WithFields(provider.ErrorFields(err)).Warn("Due-bill request failed, message left for redelivery")
			result = metrics.ResultTransientFailure
		}
		c.metrics.ObserveProcessed(result, time.Since(start))
		return
	}

	c.delete(processCtx, msg, logger)
	logger.WithField("outcome", outcome.String()).Info("Due-bill request processed")
	c.metrics.ObserveProcessed(resultFor(outcome), time.Since(start))
}

// permanentFailure forwards msg to the dead-letter queue once it exhausted its
// deliveries. Otherwise the message stays on the queue.
func (c *DueBillConsumer) permanentFailure(ctx context.Context, msg Message, logger logrus.FieldLogger) string {
	if c.deadLetter == nil || c.cfg.MaxReceiveCount <= 0 || msg.ReceiveCount < c.cfg.MaxReceiveCount {
		return metrics.ResultPermanentFailure
	}

	if err := c.deadLetter.Send(ctx, msg.Body); err != nil {
		logger.WithError(err).WithFields(provider.ErrorFields(err)).Error("Forward to dead-letter queue failed")
		return metrics.ResultPermanentFailure
	}
	logger.Warn("Message forwarded to dead-letter queue")
	c.delete(ctx, msg, logger)
	return metrics.ResultDeadLettered
}

func (c *DueBillConsumer) delete(ctx context.Context, msg Message, logger logrus.FieldLogger) {
	start := time.Now()
	err := c.receiver.Delete(ctx, msg)
	c.metrics.ObserveStage(metrics.StageDelete, time.Since(start))
	if err != nil {
		c.metrics.IncDeleteError()
		logger.WithError(err).WithFields(provider.ErrorFields(err)).Warn("Delete from queue failed, message will be redelivered")
	}
}

func (c *DueBillConsumer) pause(ctx context.Context) {
	if c.cfg.ReceiveErrorDelay <= 0 {
		return
	}
	timer := time.NewTimer(c.cfg.ReceiveErrorDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func resultFor(outcome service.Outcome) string {
	switch outcome {
	case service.OutcomeNothingDue:
		return metrics.ResultNothingDue
	case service.OutcomeAlreadyPublished:
		return metrics.ResultAlreadyPublished
	default:
		return metrics.ResultPublished
	}
}

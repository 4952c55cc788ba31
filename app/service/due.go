package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-bills-due/app/due"
	"github.com/vibast-solutions/ms-go-bills-due/app/entity"
	"github.com/vibast-solutions/ms-go-bills-due/app/lock"
	"github.com/vibast-solutions/ms-go-bills-due/app/metrics"
	"github.com/vibast-solutions/ms-go-bills-due/app/preparer"
	"github.com/vibast-solutions/ms-go-bills-due/app/provider"
	"github.com/vibast-solutions/ms-go-bills-due/app/repository"
)

const defaultLockTTL = 2 * time.Minute

type Outcome int

const (
	OutcomePublished Outcome = iota + 1
	OutcomeNothingDue
	OutcomeAlreadyPublished
)

func (o Outcome) String() string {
	switch o {
	case OutcomePublished:
		return "published"
	case OutcomeNothingDue:
		return "nothing_due"
	case OutcomeAlreadyPublished:
		return "already_published"
	default:
		return "unknown"
	}
}

type BillStore interface {
	ListByOwner(ctx context.Context, userID string) ([]entity.Bill, error)
}

type UserStore interface {
	GetEmail(ctx context.Context, userID string) (string, error)
}

type DueBillService struct {
	bills     BillStore
	users     UserStore
	history   *repository.NotificationHistoryRepository
	preparer  preparer.NotificationPreparer
	publisher provider.NotificationPublisher
	locker    lock.Locker
	clock     clockwork.Clock
	logger    logrus.FieldLogger
	metrics   *metrics.Metrics
	lockTTL   time.Duration
}

// NewDueBillService builds the due-bill service with dependencies.
func NewDueBillService(bills BillStore, users UserStore, history *repository.NotificationHistoryRepository, preparer preparer.NotificationPreparer, publisher provider.NotificationPublisher, locker lock.Locker, clock clockwork.Clock, logger logrus.FieldLogger) *DueBillService {
	return &DueBillService{
		bills:     bills,
		users:     users,
		history:   history,
		preparer:  preparer,
		publisher: publisher,
		locker:    locker,
		clock:     clock,
		logger:    logger,
		lockTTL:   defaultLockTTL,
	}
}

// WithMetrics enables per-stage latency metrics.
func (s *DueBillService) WithMetrics(m *metrics.Metrics) *DueBillService {
	s.metrics = m
	return s
}

// WithLockTTL sets how long a request lock may be held. Non-positive values
// keep the default.
func (s *DueBillService) WithLockTTL(ttl time.Duration) *DueBillService {
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

// Process selects the user's bills due within horizonDays and publishes one
// notification for them. The request ID is taken from ctx.
//
// A nil error means the request is finished and may be acknowledged. A
// request already published by an earlier delivery is not published again.
func (s *DueBillService) Process(ctx context.Context, userID string, horizonDays int) (Outcome, error) {
	requestID, ok := RequestIDFromContext(ctx)
	if !ok || requestID == "" {
		return 0, fmt.Errorf("%w: request_id is required in context", ErrInvalidRequest)
	}
	if userID == "" {
		return 0, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	if horizonDays < 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRequest, due.ErrNegativeHorizon)
	}

	lockKey := lock.RequestKey(requestID)
	if err := s.locker.Acquire(ctx, lockKey, s.lockTTL); err != nil {
		return 0, fmt.Errorf("acquire lock: %w", err)
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockKey); err != nil {
			s.logger.WithError(err).WithField("request_id", requestID).Warn("Failed to release request lock")
		}
	}()

	status, err := s.history.GetStatus(ctx, requestID)
	switch {
	case err == nil && status == entity.NotificationStatusPublished:
		return OutcomeAlreadyPublished, nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return 0, fmt.Errorf("read notification history: %w", err)
	}

	if err := s.history.Begin(ctx, requestID, userID, horizonDays, entity.NotificationStatusProcessing); err != nil {
		return 0, fmt.Errorf("record notification history: %w", err)
	}

	start := s.clock.Now()
	bills, err := s.bills.ListByOwner(ctx, userID)
	s.metrics.ObserveStage(metrics.StageListBills, s.clock.Since(start))
	if err != nil {
		return 0, s.fail(ctx, requestID, fmt.Errorf("list bills: %w", err))
	}

	selected, err := due.Select(bills, horizonDays, s.clock.Now())
	if err != nil && !errors.Is(err, due.ErrNoBills) {
		return 0, s.fail(ctx, requestID, fmt.Errorf("select due bills: %w", err))
	}
	if len(selected) == 0 {
		if err := s.history.UpdateStatus(ctx, requestID, entity.NotificationStatusNothingDue); err != nil {
			return 0, fmt.Errorf("update status to nothing due: %w", err)
		}
		return OutcomeNothingDue, nil
	}

	start = s.clock.Now()
	email, err := s.users.GetEmail(ctx, userID)
	s.metrics.ObserveStage(metrics.StageGetEmail, s.clock.Since(start))
	if err != nil {
		return 0, s.fail(ctx, requestID, fmt.Errorf("get user email: %w", err))
	}

	notification, err := s.preparer.Prepare(ctx, email, selected)
	if err != nil {
		return 0, s.fail(ctx, requestID, fmt.Errorf("%w: prepare notification: %v", ErrUnprocessable, err))
	}

	if err := s.history.UpdatePayload(ctx, requestID, notification.Body); err != nil {
		return 0, s.fail(ctx, requestID, fmt.Errorf("update notification history payload: %w", err))
	}

	start = s.clock.Now()
	err = s.publisher.Publish(ctx, notification)
	s.metrics.ObserveStage(metrics.StagePublish, s.clock.Since(start))
	if err != nil {
		return 0, s.fail(ctx, requestID, fmt.Errorf("publish notification: %w", err))
	}

	// The notification is out; a failed status write must not trigger a redelivery.
	if err := s.history.UpdateStatus(ctx, requestID, entity.NotificationStatusPublished); err != nil {
		s.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err,
		}).Warn("Published notification but failed to record status")
	}
	return OutcomePublished, nil
}

// fail marks the request as failed in history and returns err.
func (s *DueBillService) fail(ctx context.Context, requestID string, err error) error {
	if updateErr := s.history.UpdateStatus(ctx, requestID, entity.NotificationStatusFailed); updateErr != nil {
		return fmt.Errorf("%w; update status: %v", err, updateErr)
	}
	return err
}

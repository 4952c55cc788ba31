package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-bills-due/app/entity"
	"github.com/vibast-solutions/ms-go-bills-due/app/metrics"
	"github.com/vibast-solutions/ms-go-bills-due/app/preparer"
	"github.com/vibast-solutions/ms-go-bills-due/app/provider"
	"github.com/vibast-solutions/ms-go-bills-due/app/repository"
)

var now = time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)

type fakeLocker struct {
	acquireErr error
	acquired   []string
	released   []string
	ttls       []time.Duration
}

func (l *fakeLocker) Acquire(_ context.Context, key string, ttl time.Duration) error {
	if l.acquireErr != nil {
		return l.acquireErr
	}
	l.acquired = append(l.acquired, key)
	l.ttls = append(l.ttls, ttl)
	return nil
}

func (l *fakeLocker) Release(_ context.Context, key string) error {
	l.released = append(l.released, key)
	return nil
}

type fakeBills struct {
	bills []entity.Bill
	err   error
}

func (f fakeBills) ListByOwner(_ context.Context, _ string) ([]entity.Bill, error) {
	return f.bills, f.err
}

type fakeUsers struct {
	email string
	err   error
	calls int
}

func (f *fakeUsers) GetEmail(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.email, f.err
}

type fakePublisher struct {
	err       error
	published []preparer.Notification
}

func (p *fakePublisher) Publish(_ context.Context, n preparer.Notification) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, n)
	return nil
}

type fixture struct {
	svc       *DueBillService
	mock      sqlmock.Sqlmock
	users     *fakeUsers
	publisher *fakePublisher
	locker    *fakeLocker
}

func newFixture(t *testing.T, bills fakeBills) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &fixture{
		mock:      mock,
		users:     &fakeUsers{email: "a@b.com"},
		publisher: &fakePublisher{},
		locker:    &fakeLocker{},
	}
	f.svc = NewDueBillService(
		bills,
		f.users,
		repository.NewNotificationHistoryRepository(db),
		preparer.NewDuePreparer("http://bills"),
		f.publisher,
		f.locker,
		clockwork.NewFakeClockAt(now),
		logger,
	)
	return f
}

func billsDueIn(days ...int) []entity.Bill {
	var bills []entity.Bill
	for _, d := range days {
		bills = append(bills, entity.Bill{ID: fmt.Sprintf("b%d", d), OwnerID: "user-1", DueDate: now.AddDate(0, 0, d)})
	}
	return bills
}

func (f *fixture) expectFreshRequest(requestID string, horizon int) {
	f.mock.ExpectQuery("SELECT status FROM notification_history").
		WithArgs(requestID).
		WillReturnError(sql.ErrNoRows)
	f.mock.ExpectExec("INSERT INTO notification_history").
		WithArgs(requestID, "user-1", horizon, entity.NotificationStatusProcessing).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func (f *fixture) expectStatus(requestID string, status int16) {
	f.mock.ExpectExec("UPDATE notification_history SET status").
		WithArgs(status, requestID).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestProcessPublishesBillsWithinHorizon(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeBills{bills: billsDueIn(2, 5, 10)})
	body := "a@b.com, http://bills/v1/bill/b2, http://bills/v1/bill/b5"

	f.expectFreshRequest("req-1", 5)
	f.mock.ExpectExec("UPDATE notification_history SET payload").
		WithArgs(body, "req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.expectStatus("req-1", entity.NotificationStatusPublished)

	outcome, err := f.svc.Process(WithRequestID(context.Background(), "req-1"), "user-1", 5)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome != OutcomePublished {
		t.Fatalf("expected published, got %s", outcome)
	}
	if len(f.publisher.published) != 1 || f.publisher.published[0].Body != body {
		t.Fatalf("unexpected published notifications %+v", f.publisher.published)
	}
	if len(f.locker.acquired) != 1 || len(f.locker.released) != 1 {
		t.Fatalf("expected lock acquire/release, got acquired=%v released=%v", f.locker.acquired, f.locker.released)
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProcessNoBillsSkipsPublish(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeBills{})
	f.expectFreshRequest("req-2", 3)
	f.expectStatus("req-2", entity.NotificationStatusNothingDue)

	outcome, err := f.svc.Process(WithRequestID(context.Background(), "req-2"), "user-1", 3)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome != OutcomeNothingDue {
		t.Fatalf("expected nothing due, got %s", outcome)
	}
	if len(f.publisher.published) != 0 || f.users.calls != 0 {
		t.Fatalf("expected no publish and no email lookup")
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProcessOnlyOverdueSkipsPublish(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeBills{bills: billsDueIn(-3, 40)})
	f.expectFreshRequest("req-3", 7)
	f.expectStatus("req-3", entity.NotificationStatusNothingDue)

	outcome, err := f.svc.Process(WithRequestID(context.Background(), "req-3"), "user-1", 7)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome != OutcomeNothingDue {
		t.Fatalf("expected nothing due, got %s", outcome)
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProcessAlreadyPublishedIsNotRepublished(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeBills{bills: billsDueIn(1)})
	f.mock.ExpectQuery("SELECT status FROM notification_history").
		WithArgs("req-4").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(entity.NotificationStatusPublished))

	outcome, err := f.svc.Process(WithRequestID(context.Background(), "req-4"), "user-1", 5)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome != OutcomeAlreadyPublished {
		t.Fatalf("expected already published, got %s", outcome)
	}
	if len(f.publisher.published) != 0 {
		t.Fatalf("expected no publish")
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProcessPublishFailureIsTransient(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeBills{bills: billsDueIn(1)})
	f.publisher.err = errors.New("throttled")

	f.expectFreshRequest("req-5", 5)
	f.mock.ExpectExec("UPDATE notification_history SET payload").
		WithArgs("a@b.com, http://bills/v1/bill/b1", "req-5").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.expectStatus("req-5", entity.NotificationStatusFailed)

	_, err := f.svc.Process(WithRequestID(context.Background(), "req-5"), "user-1", 5)
	if err == nil {
		t.Fatalf("expected error")
	}
	if IsPermanent(err) {
		t.Fatalf("expected transient error, got %v", err)
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProcessTopicNotFoundIsSurfaced(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeBills{bills: billsDueIn(0)})
	f.publisher.err = fmt.Errorf("%w: no topic ends with %q", provider.ErrTopicNotFound, "bills-due")

	f.expectFreshRequest("req-6", 0)
	f.mock.ExpectExec("UPDATE notification_history SET payload").
		WithArgs("a@b.com, http://bills/v1/bill/b0", "req-6").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.expectStatus("req-6", entity.NotificationStatusFailed)

	_, err := f.svc.Process(WithRequestID(context.Background(), "req-6"), "user-1", 0)
	if !errors.Is(err, provider.ErrTopicNotFound) {
		t.Fatalf("expected ErrTopicNotFound, got %v", err)
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProcessUnknownUserIsPermanent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeBills{bills: billsDueIn(1)})
	f.users.err = fmt.Errorf("user user-1: %w", repository.ErrNotFound)

	f.expectFreshRequest("req-7", 5)
	f.expectStatus("req-7", entity.NotificationStatusFailed)

	_, err := f.svc.Process(WithRequestID(context.Background(), "req-7"), "user-1", 5)
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProcessPublishedStatusFailureStillSucceeds(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeBills{bills: billsDueIn(1)})
	f.expectFreshRequest("req-8", 5)
	f.mock.ExpectExec("UPDATE notification_history SET payload").
		WithArgs("a@b.com, http://bills/v1/bill/b1", "req-8").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE notification_history SET status").
		WithArgs(entity.NotificationStatusPublished, "req-8").
		WillReturnError(errors.New("db gone"))

	outcome, err := f.svc.Process(WithRequestID(context.Background(), "req-8"), "user-1", 5)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome != OutcomePublished {
		t.Fatalf("expected published, got %s", outcome)
	}
}

func TestProcessValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeBills{})

	if _, err := f.svc.Process(context.Background(), "user-1", 5); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for missing request_id, got %v", err)
	}
	ctx := WithRequestID(context.Background(), "req-9")
	if _, err := f.svc.Process(ctx, "", 5); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for missing user, got %v", err)
	}
	if _, err := f.svc.Process(ctx, "user-1", -1); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for negative horizon, got %v", err)
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProcessLockFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeBills{bills: billsDueIn(1)})
	f.locker.acquireErr = errors.New("lock failed")

	if _, err := f.svc.Process(WithRequestID(context.Background(), "req-10"), "user-1", 5); err == nil {
		t.Fatalf("expected error")
	}
	if len(f.publisher.published) != 0 {
		t.Fatalf("expected no publish")
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProcessRecordsStageLatencyAndLockTTL(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeBills{bills: billsDueIn(1)})
	m := metrics.New(prometheus.NewRegistry())
	f.svc.WithMetrics(m).WithLockTTL(5 * time.Minute)

	f.expectFreshRequest("req-9", 3)
	f.mock.ExpectExec("UPDATE notification_history SET payload").
		WithArgs("a@b.com, http://bills/v1/bill/b1", "req-9").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.expectStatus("req-9", entity.NotificationStatusPublished)

	if _, err := f.svc.Process(WithRequestID(context.Background(), "req-9"), "user-1", 3); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(f.locker.ttls) != 1 || f.locker.ttls[0] != 5*time.Minute {
		t.Fatalf("expected lock ttl 5m, got %v", f.locker.ttls)
	}
	if got := testutil.CollectAndCount(m.StageLatency); got != 3 {
		t.Fatalf("expected list_bills, get_email and publish series, got %d", got)
	}
}

func TestProcessDefaultLockTTL(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeBills{})
	f.svc.WithLockTTL(0)
	f.expectFreshRequest("req-10", 3)
	f.expectStatus("req-10", entity.NotificationStatusNothingDue)

	if _, err := f.svc.Process(WithRequestID(context.Background(), "req-10"), "user-1", 3); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(f.locker.ttls) != 1 || f.locker.ttls[0] != defaultLockTTL {
		t.Fatalf("expected default lock ttl, got %v", f.locker.ttls)
	}
}

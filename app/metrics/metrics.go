package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for processed messages.
const (
	ResultPublished        = "published"
	ResultNothingDue       = "nothing_due"
	ResultAlreadyPublished = "already_published"
	ResultMalformed        = "malformed"
	ResultPermanentFailure = "permanent_failure"
	ResultTransientFailure = "transient_failure"
	ResultDeadLettered     = "dead_lettered"
)

// Stage labels for per-stage latency.
const (
	StageListBills = "list_bills"
	StageGetEmail  = "get_email"
	StagePublish   = "publish"
	StageDelete    = "delete"
	StageEnqueue   = "enqueue"
)

// Metrics groups the Prometheus instruments of the due-bill pipeline.
type Metrics struct {
	MessagesReceived  prometheus.Counter
	MessagesProcessed *prometheus.CounterVec
	ReceiveErrors     prometheus.Counter
	DeleteErrors      prometheus.Counter
	ProcessingLatency prometheus.Histogram
	RequestsEnqueued  *prometheus.CounterVec
	StageLatency      *prometheus.HistogramVec
}

// New registers all instruments with reg. Pass a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bills_due_messages_received_total",
			Help: "Queue messages received by the due-bill consumer.",
		}),
		MessagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bills_due_messages_processed_total",
			Help: "Queue messages processed, by result.",
		}, []string{"result"}),
		ReceiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bills_due_receive_errors_total",
			Help: "Failed receive calls against the work queue.",
		}),
		DeleteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bills_due_delete_errors_total",
			Help: "Failed acknowledge (delete) calls against the work queue.",
		}),
		ProcessingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bills_due_processing_seconds",
			Help:    "Time from receive to acknowledge decision for one message.",
			Buckets: prometheus.DefBuckets,
		}),
		RequestsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bills_due_requests_enqueued_total",
			Help: "Due-bill requests enqueued through the API, by outcome.",
		}, []string{"outcome"}),
		StageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bills_due_stage_seconds",
			Help:    "Latency of one pipeline stage, by stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}

	reg.MustRegister(
		m.MessagesReceived,
		m.MessagesProcessed,
		m.ReceiveErrors,
		m.DeleteErrors,
		m.ProcessingLatency,
		m.RequestsEnqueued,
		m.StageLatency,
	)

	return m
}

// ObserveProcessed records the result and latency of one message.
func (m *Metrics) ObserveProcessed(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.MessagesProcessed.WithLabelValues(result).Inc()
	m.ProcessingLatency.Observe(took.Seconds())
}

// IncReceived counts one received message.
func (m *Metrics) IncReceived() {
	if m == nil {
		return
	}
	m.MessagesReceived.Inc()
}

// IncReceiveError counts one failed receive call.
func (m *Metrics) IncReceiveError() {
	if m == nil {
		return
	}
	m.ReceiveErrors.Inc()
}

// IncDeleteError counts one failed delete call.
func (m *Metrics) IncDeleteError() {
	if m == nil {
		return
	}
	m.DeleteErrors.Inc()
}

// IncEnqueued counts one enqueue attempt by outcome.
func (m *Metrics) IncEnqueued(outcome string) {
	if m == nil {
		return
	}
	m.RequestsEnqueued.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long one stage took.
func (m *Metrics) ObserveStage(stage string, took time.Duration) {
	if m == nil {
		return
	}
	m.StageLatency.WithLabelValues(stage).Observe(took.Seconds())
}

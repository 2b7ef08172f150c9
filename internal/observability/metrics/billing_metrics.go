package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	CreationOutcomeSucceeded = "succeeded"
	CreationOutcomeFailed    = "failed"
	CreationOutcomeNoop      = "noop"
	CreationOutcomeConflict  = "conflict"
	CreationOutcomeExhausted = "exhausted"
)

const (
	AllocationSourceSequence = "sequence"
	AllocationSourceFallback = "fallback"
)

const (
	PaymentOperationRecord  = "record"
	PaymentOperationDelete  = "delete"
	PaymentOperationOverdue = "overdue_refresh"
)

// BillingMetrics exposes billing engine signals on the prometheus registry.
type BillingMetrics struct {
	creationAttempts   *prometheus.CounterVec
	creationDuration   prometheus.Histogram
	sequenceAllocation *prometheus.CounterVec
	paymentMutations   *prometheus.CounterVec
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the singleton billing metrics registered on the default registerer.
func Billing() *BillingMetrics {
	return BillingWithConfig(Config{})
}

// BillingWithConfig returns the singleton billing metrics using config labels.
func BillingWithConfig(cfg Config) *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = NewBillingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingMetrics
}

// ResetBillingMetricsForTest resets the billing metrics singleton for tests.
func ResetBillingMetricsForTest() {
	billingMetricsOnce = sync.Once{}
	billingMetrics = nil
}

// NewBillingMetrics registers a fresh set of collectors on registerer.
func NewBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	creationAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "rentbill_invoice_creation_attempts_total",
		Help:        "Invoice creation attempts by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	creationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "rentbill_invoice_creation_duration_seconds",
		Help:        "Wall time of a createInvoiceForOrder call including backoff.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		ConstLabels: constLabels,
	})
	sequenceAllocation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "rentbill_sequence_allocations_total",
		Help:        "Issued document codes by entity type and source.",
		ConstLabels: constLabels,
	}, []string{"entity_type", "source"})
	paymentMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "rentbill_payment_mutations_total",
		Help:        "Payment ledger mutations by operation.",
		ConstLabels: constLabels,
	}, []string{"operation"})

	registerer.MustRegister(creationAttempts, creationDuration, sequenceAllocation, paymentMutations)

	return &BillingMetrics{
		creationAttempts:   creationAttempts,
		creationDuration:   creationDuration,
		sequenceAllocation: sequenceAllocation,
		paymentMutations:   paymentMutations,
	}
}

func (m *BillingMetrics) IncCreationAttempt(outcome string) {
	if m == nil {
		return
	}
	m.creationAttempts.WithLabelValues(outcome).Inc()
}

func (m *BillingMetrics) ObserveCreationDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.creationDuration.Observe(d.Seconds())
}

func (m *BillingMetrics) IncSequenceAllocation(entityType, source string) {
	if m == nil {
		return
	}
	m.sequenceAllocation.WithLabelValues(strings.TrimSpace(entityType), source).Inc()
}

func (m *BillingMetrics) AddPaymentMutations(operation string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.paymentMutations.WithLabelValues(operation).Add(float64(n))
}

func constLabelsFor(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "rentbill"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

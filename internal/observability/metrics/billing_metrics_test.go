package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillingMetricsCountsOutcomes(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewBillingMetrics(registry, Config{ServiceName: "rentbill", Environment: "test"})

	m.IncCreationAttempt(CreationOutcomeFailed)
	m.IncCreationAttempt(CreationOutcomeFailed)
	m.IncCreationAttempt(CreationOutcomeSucceeded)
	m.IncSequenceAllocation("invoice", AllocationSourceFallback)
	m.AddPaymentMutations(PaymentOperationRecord, 1)
	m.ObserveCreationDuration(2 * time.Second)

	families, err := registry.Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, family := range families {
		byName[family.GetName()] = family
	}

	attempts := byName["rentbill_invoice_creation_attempts_total"]
	require.NotNil(t, attempts)
	counts := map[string]float64{}
	for _, metric := range attempts.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "outcome" {
				counts[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, counts[CreationOutcomeFailed])
	assert.Equal(t, 1.0, counts[CreationOutcomeSucceeded])

	duration := byName["rentbill_invoice_creation_duration_seconds"]
	require.NotNil(t, duration)
	assert.Equal(t, uint64(1), duration.GetMetric()[0].GetHistogram().GetSampleCount())

	require.NotNil(t, byName["rentbill_sequence_allocations_total"])
	require.NotNil(t, byName["rentbill_payment_mutations_total"])
}

func TestNilBillingMetricsIsSafe(t *testing.T) {
	var m *BillingMetrics
	assert.NotPanics(t, func() {
		m.IncCreationAttempt(CreationOutcomeNoop)
		m.IncSequenceAllocation("payment", AllocationSourceSequence)
		m.AddPaymentMutations(PaymentOperationDelete, 1)
		m.ObserveCreationDuration(time.Millisecond)
	})
}

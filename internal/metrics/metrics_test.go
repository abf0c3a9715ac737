package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartTick_RecordsDuration(t *testing.T) {
	r := NewRegistryOn(prometheus.NewRegistry())
	timer := r.StartTick()
	timer.Stop()

	m := &dto.Metric{}
	require.NoError(t, r.TickDuration.Write(m))
	assert.EqualValues(t, 1, m.GetHistogram().GetSampleCount())
}

func TestOrdersExecuted_IncrementsByActionType(t *testing.T) {
	r := NewRegistryOn(prometheus.NewRegistry())
	r.OrdersExecuted.WithLabelValues("supply").Inc()
	r.OrdersExecuted.WithLabelValues("supply").Inc()
	r.OrdersExecuted.WithLabelValues("borrow").Inc()

	supplyCounter, err := r.OrdersExecuted.GetMetricWithLabelValues("supply")
	require.NoError(t, err)
	m := &dto.Metric{}
	require.NoError(t, supplyCounter.Write(m))
	assert.Equal(t, float64(2), m.GetCounter().GetValue())
}

func TestReconciliationFailures_Counts(t *testing.T) {
	r := NewRegistryOn(prometheus.NewRegistry())
	r.ReconciliationFailures.Inc()
	r.ReconciliationFailures.Inc()

	m := &dto.Metric{}
	require.NoError(t, r.ReconciliationFailures.Write(m))
	assert.Equal(t, float64(2), m.GetCounter().GetValue())
}

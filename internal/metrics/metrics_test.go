package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestMetrics_Counters increments every counter once.
func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Scheduled("daily")
	m.Scheduled("daily")
	m.ScheduleFailed("one_shot")
	m.Cancelled()
	m.Fired("daily")
	m.DeliveryFailed()
	m.RearmFailed()

	require.InEpsilon(t, 2.0, testutil.ToFloat64(m.scheduled.WithLabelValues("daily")), 1e-9)
	require.InEpsilon(t, 1.0, testutil.ToFloat64(m.scheduleFailures.WithLabelValues("one_shot")), 1e-9)
	require.InEpsilon(t, 1.0, testutil.ToFloat64(m.cancelled), 1e-9)
	require.Zero(t, testutil.ToFloat64(m.cancelFailures))
	require.InEpsilon(t, 1.0, testutil.ToFloat64(m.deliveryFailures), 1e-9)
	require.InEpsilon(t, 1.0, testutil.ToFloat64(m.rearmFailures), 1e-9)

	// Registering twice on the same registry fails.
	_, err = New(reg)
	require.Error(t, err)
}

// TestMetrics_NilIsNoop lets components run without metrics.
func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics

	require.NotPanics(t, func() {
		m.Scheduled("daily")
		m.Fired("one_shot")
		m.DeliveryFailed()
		m.RearmFailed()
		m.Cancelled()
		m.CancelFailed()
		m.ScheduleFailed("daily")
	})
}

// TestRegisterPending reads the gauge through the callback.
func TestRegisterPending(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterPending(reg, func() int { return 3 }))

	count, err := testutil.GatherAndCount(reg, "alarm_pending")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := New(reg)
	require.NoError(t, err)

	m.WebhookEvent("applied")
	m.WebhookEvent("applied")
	m.RateWritten("default")
	m.Limited("webhook")
	m.Notification("sent")
	m.Quote(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.webhookEvents.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateWrites.WithLabelValues("default")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotes.WithLabelValues("yes")))

	// Second registration of the same collectors fails.
	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.WebhookEvent("applied")
		m.RateWritten("cbr")
		m.Limited("rates")
		m.Notification("failed")
		m.Quote(false)
	})
}

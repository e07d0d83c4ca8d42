// Package metrics exposes prometheus counters for the pricing and
// payment flows. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shop"

type Metrics struct {
	webhookEvents   *prometheus.CounterVec
	rateWrites      *prometheus.CounterVec
	limiterRejected *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	quotes          *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "webhook_events_total",
			Help:      "Payment webhook deliveries by outcome.",
		}, []string{"outcome"}),
		rateWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "rate_writes_total",
			Help:      "Exchange rate writes by source.",
		}, []string{"source"}),
		limiterRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the fixed window limiter.",
		}, []string{"scope"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Payment confirmation notifications by result.",
		}, []string{"result"}),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "quotes_total",
			Help:      "Computed order quotes by duty applicability.",
		}, []string{"duty"}),
	}

	for _, c := range []prometheus.Collector{
		m.webhookEvents, m.rateWrites, m.limiterRejected, m.notifications, m.quotes,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) WebhookEvent(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RateWritten(source string) {
	if m == nil {
		return
	}
	m.rateWrites.WithLabelValues(source).Inc()
}

func (m *Metrics) Limited(scope string) {
	if m == nil {
		return
	}
	m.limiterRejected.WithLabelValues(scope).Inc()
}

func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) Quote(dutyApplies bool) {
	if m == nil {
		return
	}
	label := "no"
	if dutyApplies {
		label = "yes"
	}
	m.quotes.WithLabelValues(label).Inc()
}

// Handler serves the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

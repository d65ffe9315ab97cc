package esplora

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeFailure  = "failure"
)

type metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coinline",
		Subsystem: "esplora",
		Name:      "requests_total",
		Help:      "Number of requests sent to the esplora API by route and outcome.",
	}, []string{"route", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "coinline",
		Subsystem: "esplora",
		Name:      "request_duration_seconds",
		Help:      "Latency of the requests sent to the esplora API by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	if reg == nil {
		return &metrics{requests, latency}, nil
	}

	if err := reg.Register(requests); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		requests = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(latency); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		latency = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return &metrics{requests, latency}, nil
}

func (m *metrics) observe(route string, start time.Time, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
		if isRejection(err) {
			outcome = outcomeRejected
		}
	}
	m.requests.WithLabelValues(route, outcome).Inc()
	m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

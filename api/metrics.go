// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const namespace = "alpaca"

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Number of HTTP requests served, by route and status code",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time spent serving HTTP requests, by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests being served",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.requests),
		registerer.Register(m.duration),
		registerer.Register(m.inFlight),
	)
	return m, errs.Err
}

type trackerMetrics struct {
	notifications prometheus.Counter
	fetchFailures prometheus.Counter
	head          prometheus.Gauge
}

func newTrackerMetrics(registerer prometheus.Registerer) (*trackerMetrics, error) {
	m := &trackerMetrics{
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_notifications_total",
			Help:      "Number of new-block notifications sent to the host",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_fetch_failures_total",
			Help:      "Number of notifications that carried an error instead of a block",
		}),
		head: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observed_head",
			Help:      "Latest block number observed by the change tracker",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.notifications),
		registerer.Register(m.fetchFailures),
		registerer.Register(m.head),
	)
	return m, errs.Err
}

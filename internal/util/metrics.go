package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchSearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "barter_match_searches_total",
		Help: "Total number of match searches",
	}, []string{"kind"})

	MatchSearchesTruncated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "barter_match_searches_truncated_total",
		Help: "Total number of searches truncated by the search budget",
	})

	CyclesFoundTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "barter_cycles_found_total",
		Help: "Total number of exchange cycles discovered",
	})

	MatchSearchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "barter_match_search_latency_seconds",
		Help:    "Latency of match search invocations",
		Buckets: prometheus.DefBuckets,
	})

	ChainsProposedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "barter_chains_proposed_total",
		Help: "Total number of chains proposed",
	})

	ChainsActivatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "barter_chains_activated_total",
		Help: "Total number of chains fully accepted",
	})

	ChainsCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "barter_chains_cancelled_total",
		Help: "Total number of cancelled chains",
	}, []string{"reason"})

	ChainsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "barter_chains_expired_total",
		Help: "Total number of chains expired by the sweep",
	})

	ChainsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "barter_chains_completed_total",
		Help: "Total number of chains confirmed by settlement",
	})

	ReservationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "barter_reservation_failures_total",
		Help: "Total number of failed item reservations",
	}, []string{"reason"})

	ReservationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "barter_reservation_latency_seconds",
		Help:    "Latency of item reservation operations",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

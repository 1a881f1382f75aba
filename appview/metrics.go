package appview

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "feedview_request_duration_seconds",
	Help:    "Duration of feed and thread requests, by algorithm.",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
}, []string{"algo"})

var itemsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feedview_feed_items_dropped_total",
	Help: "Feed items dropped after hydration, by the part that failed to resolve.",
}, []string{"part"})

var requestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feedview_request_errors_total",
	Help: "XRPC error responses, by error name.",
}, []string{"error"})

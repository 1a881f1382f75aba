package feeds

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "feedview_candidate_query_duration_seconds",
	Help:    "Duration of candidate queries, by algorithm.",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
}, []string{"algo"})

var candidatesReturned = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feedview_candidates_returned_total",
	Help: "Total number of candidate rows returned, by algorithm.",
}, []string{"algo"})

var timelineFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feedview_timeline_window_fallbacks_total",
	Help: "Number of timeline sub-stream queries re-run without a window.",
}, []string{"stream"})

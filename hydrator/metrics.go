package hydrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var hydrationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "feedview_hydration_duration_seconds",
	Help:    "Duration of batched hydration lookups, by stage.",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
}, []string{"stage"})

var placeholdersRendered = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feedview_placeholders_rendered_total",
	Help: "Number of posts rendered as placeholders, by kind.",
}, []string{"kind"})

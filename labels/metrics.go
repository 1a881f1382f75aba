package labels

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var labelLookups = promauto.NewCounter(prometheus.CounterOpts{
	Name: "feedview_label_lookups_total",
	Help: "Total number of batched label lookups.",
})

var labelsReturned = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feedview_labels_returned_total",
	Help: "Total number of labels returned from lookups, by source.",
}, []string{"src"})

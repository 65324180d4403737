package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(memoryIndexed, memorySearch) }

var memoryIndexed = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "memory_indexed_total",
		Help: "Entries written to the similarity index after job completion.",
	},
)

var memorySearch = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "memory_search_duration_seconds",
		Help:    "Latency of similarity searches, embedding call included.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"success"},
)

func IncMemoryIndexed() { memoryIndexed.Inc() }

func ObserveMemorySearch(d time.Duration, success bool) {
	memorySearch.WithLabelValues(strconv.FormatBool(success)).Observe(d.Seconds())
}

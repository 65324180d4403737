package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(jobsTotal, jobDuration, jobsClaimed) }

var jobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobs_total",
		Help: "Jobs reaching a terminal status, by kind and status.",
	},
	[]string{"kind", "status"},
)

var jobDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Wall time from claim to terminal status.",
		Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
	},
	[]string{"kind"},
)

var jobsClaimed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobs_claimed_total",
		Help: "Jobs claimed by the worker pool, by kind.",
	},
	[]string{"kind"},
)

func IncJobFinished(kind, status string) { jobsTotal.WithLabelValues(kind, status).Inc() }

func ObserveJobDuration(kind string, d time.Duration) {
	jobDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func IncJobClaimed(kind string) { jobsClaimed.WithLabelValues(kind).Inc() }

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(vendorCallDuration, vendorCallTotal) }

var vendorCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "vendor_call_duration_seconds",
		Help:    "Latency of outbound generation vendor calls.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
	},
	[]string{"kind", "model"},
)

var vendorCallTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vendor_call_total",
		Help: "Outbound vendor calls by kind, model and outcome.",
	},
	[]string{"kind", "model", "success"},
)

func ObserveVendorCall(kind, model string, d time.Duration, success bool) {
	vendorCallDuration.WithLabelValues(kind, model).Observe(d.Seconds())
	vendorCallTotal.WithLabelValues(kind, model, strconv.FormatBool(success)).Inc()
}

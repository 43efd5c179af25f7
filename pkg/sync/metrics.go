package sync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

// Metrics mirror the teacher's own stagedsync Prometheus instrumentation
// (per-stage marker gauges, iteration duration histograms) generalized
// from "stage" to "marker kind".
var (
	markerGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "papyrus",
		Subsystem: "sync",
		Name:      "marker",
		Help:      "Next-expected block number per marker kind.",
	}, []string{"kind"})

	iterationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "papyrus",
		Subsystem: "sync",
		Name:      "iteration_duration_seconds",
		Help:      "Wall-clock duration of one sync loop iteration.",
		Buckets:   prometheus.DefBuckets,
	})

	revertsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "papyrus",
		Subsystem: "sync",
		Name:      "reverts_total",
		Help:      "Number of chain reverts handled by the sync loop.",
	})
)

func init() {
	prometheus.MustRegister(markerGauge, iterationDuration, revertsTotal)
}

func observeMarker(kind starknet.MarkerKind, n starknet.BlockNumber) {
	markerGauge.WithLabelValues(kind.String()).Set(float64(n))
}

func observeIteration(start time.Time) {
	iterationDuration.Observe(time.Since(start).Seconds())
}

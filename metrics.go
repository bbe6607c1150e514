package fab

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	allocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fab_allocations_total",
		Help: "Number of fab buffers allocated",
	})

	freesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fab_frees_total",
		Help: "Number of fab buffers released",
	})

	allocationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fab_allocation_failures_total",
		Help: "Number of fab buffer allocations that failed",
	})

	residentBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fab_resident_bytes",
		Help: "Bytes currently held by live fab buffers",
	})

	normEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fab_norm_evaluations_total",
		Help: "Number of norm reductions by kind",
	}, []string{"kind"}) // max, sum, lp, error
)

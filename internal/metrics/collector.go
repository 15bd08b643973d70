// Package metrics exports filesaga metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/hupe1980/filesaga/fault"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label names.
const (
	LabelResult = "result"
)

// Result label values.
const (
	ResultOK        = "ok"
	ResultArgument  = "argument"
	ResultForbidden = "forbidden"
	ResultConflict  = "conflict"
	ResultNotFound  = "not_found"
	ResultTransient = "transient"
	ResultError     = "error"
)

// Collector is the Prometheus implementation of filesaga.MetricsCollector.
type Collector struct {
	createTotal       *prometheus.CounterVec
	createDuration    prometheus.Histogram
	compensationTotal *prometheus.CounterVec
}

// NewCollector registers the filesaga metrics with reg.
// A nil reg falls back to prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &Collector{
		createTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesaga_create_total",
				Help: "Total number of create-file calls by result",
			},
			[]string{LabelResult},
		),
		createDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "filesaga_create_duration_milliseconds",
				Help: "Duration of create-file calls in milliseconds",
				Buckets: []float64{
					5,    // 5ms - conditional write only
					10,   // 10ms
					25,   // 25ms
					50,   // 50ms - both stores
					100,  // 100ms
					250,  // 250ms - compensation with cleanup
					500,  // 500ms
					1000, // 1s
					5000, // 5s
				},
			},
		),
		compensationTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesaga_compensation_total",
				Help: "Total number of master entry compensations by result",
			},
			[]string{LabelResult},
		),
	}
}

// RecordCreate implements filesaga.MetricsCollector.
func (c *Collector) RecordCreate(duration time.Duration, err error) {
	c.createTotal.WithLabelValues(resultOf(err)).Inc()
	c.createDuration.Observe(float64(duration) / float64(time.Millisecond))
}

// RecordCompensation implements filesaga.MetricsCollector.
func (c *Collector) RecordCompensation(err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	c.compensationTotal.WithLabelValues(result).Inc()
}

func resultOf(err error) string {
	if err == nil {
		return ResultOK
	}

	if fault.IsTransient(err) {
		return ResultTransient
	}

	switch fault.KindOf(err) {
	case fault.KindArgument:
		return ResultArgument
	case fault.KindForbidden:
		return ResultForbidden
	case fault.KindConflict:
		return ResultConflict
	case fault.KindNotFound:
		return ResultNotFound
	default:
		return ResultError
	}
}

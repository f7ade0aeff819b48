// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the compositing pipeline.
package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the pipeline's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	Scenes           *prometheus.CounterVec
	StepDurations    *prometheus.HistogramVec
	ExternalOps      *prometheus.CounterVec
	ExternalDuration *prometheus.HistogramVec
	QueueDepth       prometheus.Gauge
}

// NewMetrics registers the pipeline metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	scenes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timelapse_scenes_total",
		Help: "Scenes taken through the pipeline, labeled by year and result.",
	}, []string{"year", "result"}), "timelapse_scenes_total")
	if err != nil {
		return nil, err
	}

	steps, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timelapse_step_duration_seconds",
		Help:    "Duration of pipeline steps in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"step"}), "timelapse_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	ops, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timelapse_external_operations_total",
		Help: "External tool invocations, labeled by operation and result.",
	}, []string{"operation", "result"}), "timelapse_external_operations_total")
	if err != nil {
		return nil, err
	}

	opDurations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timelapse_external_operation_duration_seconds",
		Help:    "External tool latency in seconds.",
		Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300, 900},
	}, []string{"operation"}), "timelapse_external_operation_duration_seconds")
	if err != nil {
		return nil, err
	}

	queue, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timelapse_queue_depth",
		Help: "Scenes waiting in the worker pool queue.",
	}), "timelapse_queue_depth")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:         gatherer,
		Scenes:           scenes,
		StepDurations:    steps,
		ExternalOps:      ops,
		ExternalDuration: opDurations,
		QueueDepth:       queue,
	}, nil
}

// ObserveScene counts one finished scene.
func (m *Metrics) ObserveScene(year int, err error) {
	if m == nil {
		return
	}
	m.Scenes.WithLabelValues(fmt.Sprint(year), result(err)).Inc()
}

// ObserveStep records the duration of one pipeline step.
func (m *Metrics) ObserveStep(step string, start time.Time) {
	if m == nil {
		return
	}
	m.StepDurations.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

// ObserveExternal records one external tool invocation.
func (m *Metrics) ObserveExternal(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.ExternalOps.WithLabelValues(operation, result(err)).Inc()
	m.ExternalDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// SetQueueDepth sets the number of scenes waiting for a worker.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		gatherer = m.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

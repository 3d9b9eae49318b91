// Package metrics exposes pipeline counters on a dedicated Prometheus registry.
// Every method is safe to call on a nil *Registry so components can run
// without metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "securenet"

// Delivery results.
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
	ResultDropped   = "dropped"
)

// Registry holds the collectors.
type Registry struct {
	reg *prometheus.Registry

	ingest             *prometheus.CounterVec
	classifierFailures prometheus.Counter
	alertsEnqueued     prometheus.Counter
	queueDepth         prometheus.Gauge
	deliveries         *prometheus.CounterVec
	deliverySeconds    prometheus.Histogram
	callbackActions    *prometheus.CounterVec
}

// New creates a registry with all collectors registered, including the Go
// runtime and process collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		ingest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_total",
			Help:      "Ingested snapshots by outcome status.",
		}, []string{"status"}),
		classifierFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_failures_total",
			Help:      "Classifier errors downgraded to no_faces.",
		}),
		alertsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_enqueued_total",
			Help:      "Alert jobs enqueued.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_queue_depth",
			Help:      "Alert jobs waiting for delivery.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_deliveries_total",
			Help:      "Alert delivery attempts by result.",
		}, []string{"result"}),
		deliverySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alert_delivery_seconds",
			Help:      "Time spent delivering one alert.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		callbackActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_actions_total",
			Help:      "Human callback actions by action and result.",
		}, []string{"action", "result"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.ingest,
		r.classifierFailures,
		r.alertsEnqueued,
		r.queueDepth,
		r.deliveries,
		r.deliverySeconds,
		r.callbackActions,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

func (r *Registry) IngestOutcome(status string) {
	if r == nil {
		return
	}
	r.ingest.WithLabelValues(status).Inc()
}

func (r *Registry) ClassifierFailure() {
	if r == nil {
		return
	}
	r.classifierFailures.Inc()
}

func (r *Registry) AlertEnqueued() {
	if r == nil {
		return
	}
	r.alertsEnqueued.Inc()
}

// SetQueueDepth records the current number of waiting jobs.
func (r *Registry) SetQueueDepth(n int) {
	if r == nil {
		return
	}
	r.queueDepth.Set(float64(n))
}

// AlertDelivery records one delivery attempt and how long it took.
func (r *Registry) AlertDelivery(result string, took time.Duration) {
	if r == nil {
		return
	}
	r.deliveries.WithLabelValues(result).Inc()
	r.deliverySeconds.Observe(took.Seconds())
}

func (r *Registry) CallbackAction(action string, ok bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.callbackActions.WithLabelValues(action, result).Inc()
}

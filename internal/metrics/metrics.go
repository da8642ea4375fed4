package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one Arbor process.
type Metrics struct {
	registry *prometheus.Registry

	autosaves        *prometheus.CounterVec
	autosaveAttempts prometheus.Counter
	storeDuration    *prometheus.HistogramVec
	storeErrors      *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	availability     *prometheus.HistogramVec
	employeeSyncs    *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		autosaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_autosave_total",
				Help: "Autosave outcomes by result",
			},
			[]string{"result"},
		),
		autosaveAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbor_autosave_attempts_total",
			Help: "Individual save attempts, including retries",
		}),
		storeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbor_store_operation_duration_seconds",
				Help:    "Duration of form store operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		storeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_store_errors_total",
				Help: "Failed form store operations",
			},
			[]string{"op"},
		),
		providerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_provider_requests_total",
				Help: "Requests sent to the schedule provider by endpoint and status code",
			},
			[]string{"endpoint", "code"},
		),
		availability: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbor_availability_duration_seconds",
				Help:    "Duration of availability computations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		employeeSyncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_employee_sync_total",
				Help: "Employee synchronisation runs by result",
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(
		m.autosaves,
		m.autosaveAttempts,
		m.storeDuration,
		m.storeErrors,
		m.providerRequests,
		m.availability,
		m.employeeSyncs,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStoreOp records one form store call.
func (m *Metrics) ObserveStoreOp(op string, elapsed time.Duration, err error) {
	m.storeDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if err != nil {
		m.storeErrors.WithLabelValues(op).Inc()
	}
}

// ObserveProviderRequest records one HTTP call to the schedule provider.
func (m *Metrics) ObserveProviderRequest(endpoint string, code int) {
	m.providerRequests.WithLabelValues(endpoint, codeLabel(code)).Inc()
}

// ObserveAvailability records one availability computation.
func (m *Metrics) ObserveAvailability(elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.availability.WithLabelValues(result).Observe(elapsed.Seconds())
}

// ObserveEmployeeSync records one employee sync run.
func (m *Metrics) ObserveEmployeeSync(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.employeeSyncs.WithLabelValues(result).Inc()
}

// SaveHooks returns autosave hooks that feed the autosave collectors,
// chained in front of next.
func (m *Metrics) SaveHooks(next domain.SaveHooks) domain.SaveHooks {
	return domain.SaveHooks{
		OnSaveStart: func(ctx context.Context, e *domain.SaveEvent) {
			m.autosaveAttempts.Inc()
			if next.OnSaveStart != nil {
				next.OnSaveStart(ctx, e)
			}
		},
		OnSaved: func(ctx context.Context, e *domain.SaveEvent, data domain.BookingFlowData) {
			m.autosaves.WithLabelValues("saved").Inc()
			if next.OnSaved != nil {
				next.OnSaved(ctx, e, data)
			}
		},
		OnSaveFailed: func(ctx context.Context, e *domain.SaveEvent) {
			m.autosaves.WithLabelValues("failed").Inc()
			if next.OnSaveFailed != nil {
				next.OnSaveFailed(ctx, e)
			}
		},
	}
}

func codeLabel(code int) string {
	if code == 0 {
		return "error"
	}
	return strconv.Itoa(code)
}

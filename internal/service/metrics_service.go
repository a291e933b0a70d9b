package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic
// and timetable generation runs.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	generationDuration prometheus.Histogram
	groupsScheduled    prometheus.Counter
	groupsFailed       prometheus.Counter
	subjectsPlaced     prometheus.Counter
	subjectsUnplaced   prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	generationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_generation_duration_seconds",
		Help:    "Duration of timetable generation batches",
		Buckets: prometheus.DefBuckets,
	})

	groupsScheduled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_groups_scheduled_total",
		Help: "Groups that received a usable timetable",
	})

	groupsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_groups_failed_total",
		Help: "Groups that could not be scheduled",
	})

	subjectsPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_subjects_placed_total",
		Help: "Subjects placed into grid cells",
	})

	subjectsUnplaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_subjects_unplaced_total",
		Help: "Subjects the engine could not place",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, generationDuration, groupsScheduled, groupsFailed, subjectsPlaced, subjectsUnplaced, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		generationDuration: generationDuration,
		groupsScheduled:    groupsScheduled,
		groupsFailed:       groupsFailed,
		subjectsPlaced:     subjectsPlaced,
		subjectsUnplaced:   subjectsUnplaced,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveGeneration records the outcome of one generation batch.
func (m *MetricsService) ObserveGeneration(succeeded, failed, placed, unplaced int, duration time.Duration) {
	if m == nil {
		return
	}
	m.generationDuration.Observe(duration.Seconds())
	m.groupsScheduled.Add(float64(succeeded))
	m.groupsFailed.Add(float64(failed))
	m.subjectsPlaced.Add(float64(placed))
	m.subjectsUnplaced.Add(float64(unplaced))
}

package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIMetrics carries the HTTP server metrics plus the conversational
// counters recorded per turn.
type APIMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	chatTurnsTotal    *prometheus.CounterVec
	chatIterations    *prometheus.HistogramVec
	toolCallsTotal    *prometheus.CounterVec
	llmTokensTotal    *prometheus.CounterVec
	retrievedChunks   *prometheus.HistogramVec
	compressionsTotal *prometheus.CounterVec
}

func NewAPIMetrics(service string) *APIMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ctxa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ctxa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ctxa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chatTurnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ctxa",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total completed chat turns by status.",
		},
		[]string{"service", "status"},
	)
	chatIterations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ctxa",
			Subsystem: "chat",
			Name:      "iterations",
			Help:      "Distribution of tool loop iterations per turn.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
		[]string{"service"},
	)
	toolCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ctxa",
			Subsystem: "chat",
			Name:      "tool_calls_total",
			Help:      "Total tool calls performed across turns.",
		},
		[]string{"service"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ctxa",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Token usage reported by the model, by direction.",
		},
		[]string{"service", "direction"},
	)
	retrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ctxa",
			Subsystem: "rag",
			Name:      "retrieved_chunks",
			Help:      "Distribution of context chunks injected per turn.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)
	compressionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ctxa",
			Subsystem: "chat",
			Name:      "history_compressions_total",
			Help:      "Total history compressions performed.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		chatTurnsTotal,
		chatIterations,
		toolCallsTotal,
		llmTokensTotal,
		retrievedChunks,
		compressionsTotal,
	)

	return &APIMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		chatTurnsTotal:    chatTurnsTotal,
		chatIterations:    chatIterations,
		toolCallsTotal:    toolCallsTotal,
		llmTokensTotal:    llmTokensTotal,
		retrievedChunks:   retrievedChunks,
		compressionsTotal: compressionsTotal,
	}
}

func (m *APIMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *APIMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *APIMetrics) RecordTurn(service, status string, iterations, toolCalls, contextChunks int) {
	if status == "" {
		status = "unknown"
	}
	m.chatTurnsTotal.WithLabelValues(service, status).Inc()
	if iterations > 0 {
		m.chatIterations.WithLabelValues(service).Observe(float64(iterations))
	}
	if toolCalls > 0 {
		m.toolCallsTotal.WithLabelValues(service).Add(float64(toolCalls))
	}
	m.retrievedChunks.WithLabelValues(service).Observe(float64(contextChunks))
}

func (m *APIMetrics) RecordTokenUsage(service string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, "in").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, "out").Add(float64(completionTokens))
	}
}

func (m *APIMetrics) RecordCompression(service string) {
	m.compressionsTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kalambet/dialbook/internal/phonebook"
)

// Metrics exposes counters for save outcomes, the saved-number gauge and
// HTTP request latency. A nil *Metrics is valid and records nothing.
type Metrics struct {
	saves    *prometheus.CounterVec
	saved    prometheus.Gauge
	requests *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dialbook",
			Subsystem: "phonebook",
			Name:      "saves_total",
			Help:      "Save attempts by outcome",
		}, []string{"outcome"}),
		saved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dialbook",
			Subsystem: "phonebook",
			Name:      "saved",
			Help:      "Phone numbers currently saved",
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dialbook",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.saves, m.saved, m.requests)
	return m
}

// SaveOutcome maps a phonebook.Store.Save result to a metric label.
func SaveOutcome(err error) string {
	switch {
	case err == nil:
		return "saved"
	case errors.Is(err, phonebook.ErrEmptyInput):
		return "empty"
	case errors.Is(err, phonebook.ErrInvalidFormat):
		return "invalid"
	case errors.Is(err, phonebook.ErrDuplicateNumber):
		return "duplicate"
	default:
		return "error"
	}
}

func (m *Metrics) ObserveSave(err error) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(SaveOutcome(err)).Inc()
}

// ObserveBook keeps the saved gauge in step with book until the returned
// function is called.
func (m *Metrics) ObserveBook(book *phonebook.Store) (cancel func()) {
	if m == nil {
		return func() {}
	}
	m.saved.Set(float64(book.Len()))
	return book.Subscribe(func(phones []phonebook.SavedPhone) {
		m.saved.Set(float64(len(phones)))
	})
}

// Middleware records request latency labelled by the matched chi route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Realtime metrics
	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskflow_ws_connections",
			Help: "Number of live websocket connections",
		},
	)

	WSRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskflow_ws_rooms",
			Help: "Number of rooms with at least one subscriber",
		},
	)

	WSEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_ws_events_total",
			Help: "Inbound websocket events by event name and outcome",
		},
		[]string{"event", "outcome"},
	)

	WSEventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskflow_ws_event_duration_seconds",
			Help:    "Time spent handling an inbound websocket event",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event"},
	)

	WSAuthRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_ws_auth_rejections_total",
			Help: "Rejected websocket handshakes by reason code",
		},
		[]string{"reason"},
	)

	// Notification metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_notifications_total",
			Help: "Stored notifications by delivery path (live or stored)",
		},
		[]string{"delivery"},
	)

	// API metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskflow_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(WSConnections)
	prometheus.MustRegister(WSRooms)
	prometheus.MustRegister(WSEventsTotal)
	prometheus.MustRegister(WSEventDuration)
	prometheus.MustRegister(WSAuthRejections)
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveEvent records one handled websocket event.
func ObserveEvent(event, outcome string, started time.Time) {
	WSEventsTotal.WithLabelValues(event, outcome).Inc()
	WSEventDuration.WithLabelValues(event).Observe(time.Since(started).Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Instrument wraps h, counting requests and latency under route.
func Instrument(route string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

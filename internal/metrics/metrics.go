package metrics

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session metrics
var (
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aibidi_sessions_active",
			Help: "Number of live terminal sessions",
		},
	)

	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibidi_sessions_total",
			Help: "Total terminal sessions by outcome",
		},
		[]string{"reason"},
	)

	SessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aibidi_session_duration_seconds",
			Help:    "Lifetime of terminal sessions",
			Buckets: []float64{1, 10, 60, 300, 900, 3600, 14400},
		},
	)

	SpawnErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aibidi_spawn_errors_total",
			Help: "Shell processes that failed to start",
		},
	)

	FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibidi_frames_total",
			Help: "Inbound WebSocket frames by kind",
		},
		[]string{"kind"},
	)

	RelayBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibidi_relay_bytes_total",
			Help: "Bytes relayed between clients and shells",
		},
		[]string{"direction"},
	)

	ShutdownTimersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibidi_shutdown_timers_total",
			Help: "Idle shutdown timers armed, cancelled and fired",
		},
		[]string{"event"},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibidi_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibidi_uploads_total",
			Help: "File uploads by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsActive,
		SessionsTotal,
		SessionDuration,
		SpawnErrorsTotal,
		FramesTotal,
		RelayBytesTotal,
		ShutdownTimersTotal,
		HTTPRequestsTotal,
		UploadsTotal,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// EchoMiddleware returns Echo middleware that counts HTTP requests.
func EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			HTTPRequestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				strconv.Itoa(status),
			).Inc()
			return err
		}
	}
}

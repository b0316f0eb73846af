package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	SessionsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_sessions_opened_total",
			Help: "Quiz sessions that reached the open (lockdown) state",
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiz_sessions_active",
			Help: "Quiz sessions currently registered on this instance",
		},
	)

	SessionOutcomeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_session_outcomes_total",
			Help: "Terminal quiz session phases by trigger",
		},
		[]string{"phase", "trigger"},
	)

	ViolationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockdown_violations_total",
			Help: "Accepted lockdown violations by signal",
		},
		[]string{"signal"},
	)

	BlockedEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockdown_blocked_events_total",
			Help: "Suppressed copy/context-menu/selection/shortcut events",
		},
		[]string{"signal"},
	)

	SubmissionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_submissions_total",
			Help: "Outbound quiz submissions by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	SubmitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quiz_submission_duration_seconds",
			Help:    "Latency of submitQuiz calls to the platform",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"trigger"},
	)

	LockdownClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lockdown_ws_clients",
			Help: "Connected lockdown websocket clients",
		},
	)

	WSMessageCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockdown_ws_messages_total",
			Help: "Lockdown websocket messages by type and direction",
		},
		[]string{"type", "direction"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(SessionsOpened)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(SessionOutcomeCounter)
	prometheus.MustRegister(ViolationCounter)
	prometheus.MustRegister(BlockedEventCounter)
	prometheus.MustRegister(SubmissionCounter)
	prometheus.MustRegister(SubmitDuration)
	prometheus.MustRegister(LockdownClients)
	prometheus.MustRegister(WSMessageCounter)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

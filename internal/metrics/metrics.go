package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitBlocked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jutjubic_rate_limit_blocked_total",
		Help: "Requests rejected because the subject exhausted its window",
	}, []string{"limiter"})
	RateLimitStoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jutjubic_rate_limit_store_errors_total",
		Help: "Counter store calls that failed and fell back to the failure policy",
	}, []string{"limiter"})
	WatchPartyRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jutjubic_watch_party_rooms",
		Help: "Watch party rooms currently held in memory",
	})
	WatchPartySubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jutjubic_watch_party_subscribers",
		Help: "Open playback sync websocket subscriptions",
	})
	PlayEventsRelayed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jutjubic_watch_party_play_events_total",
		Help: "Playback events relayed to room subscribers",
	})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		RateLimitBlocked,
		RateLimitStoreErrors,
		WatchPartyRooms,
		WatchPartySubscribers,
		PlayEventsRelayed,
		HttpRequestsTotal,
		HttpRequestDuration,
	)
}

func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}

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

	// ProcessingSessionsTotal 按终态统计课程采集会话
	ProcessingSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "course_processing_sessions_total",
			Help: "Course processing sessions by terminal status",
		},
		[]string{"status"},
	)

	// ModuleExtractionDuration 单模块提取耗时
	ModuleExtractionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "module_extraction_duration_seconds",
			Help:    "Duration of single module content extraction",
			Buckets: []float64{1, 5, 15, 30, 60, 120},
		},
	)

	// GenerationRetries 出题与判卷的限流重试次数
	GenerationRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "generation_retries_total",
			Help: "Throttle retries against the generation service",
		},
	)

	// ActiveTrainingSessions 进行中的训练会话数量
	ActiveTrainingSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_training_sessions",
			Help: "Currently active training sessions",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ProcessingSessionsTotal)
	prometheus.MustRegister(ModuleExtractionDuration)
	prometheus.MustRegister(GenerationRetries)
	prometheus.MustRegister(ActiveTrainingSessions)
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

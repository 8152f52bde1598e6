package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artfolio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "artfolio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "artfolio_http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	// Gallery metrics
	ImagesUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artfolio_images_uploaded_total",
			Help: "Total number of gallery images uploaded",
		},
		[]string{"status"},
	)

	ImagesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artfolio_images_deleted_total",
			Help: "Total number of gallery images deleted",
		},
	)

	UploadSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "artfolio_upload_sessions_active",
			Help: "Current number of active upload sessions",
		},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artfolio_upload_bytes_total",
			Help: "Total bytes accepted through uploads",
		},
	)

	// Authentication metrics
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artfolio_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"status"},
	)

	RegisterAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artfolio_register_attempts_total",
			Help: "Total number of registration attempts",
		},
		[]string{"status"},
	)

	PasswordResetRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artfolio_password_reset_requests_total",
			Help: "Total number of password reset requests",
		},
		[]string{"outcome"},
	)

	// Notification metrics
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artfolio_notifications_created_total",
			Help: "Total number of notifications created",
		},
		[]string{"type"},
	)
)

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := httpStatusToString(status)
	HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

func httpStatusToString(code int) string {
	if code >= 200 && code < 300 {
		return "2xx"
	} else if code >= 300 && code < 400 {
		return "3xx"
	} else if code >= 400 && code < 500 {
		return "4xx"
	} else if code >= 500 {
		return "5xx"
	}
	return "unknown"
}

// RecordImageUpload increments the upload counter
func RecordImageUpload(success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	ImagesUploaded.WithLabelValues(status).Inc()
}

// RecordLogin increments login attempt counter
func RecordLogin(success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	LoginAttempts.WithLabelValues(status).Inc()
}

// RecordRegistration increments registration attempt counter
func RecordRegistration(success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	RegisterAttempts.WithLabelValues(status).Inc()
}

// RecordPasswordResetRequest records the outcome of a reset request.
// Outcome is one of "sent", "unknown_account", "rate_limited".
func RecordPasswordResetRequest(outcome string) {
	PasswordResetRequests.WithLabelValues(outcome).Inc()
}

// RecordNotification increments the notification counter for a type
func RecordNotification(notificationType string) {
	NotificationsCreated.WithLabelValues(notificationType).Inc()
}

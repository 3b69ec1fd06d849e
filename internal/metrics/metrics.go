package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	StoreRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sbcntr_booking_store_requests_total",
			Help: "Total number of booking store requests",
		},
		[]string{"operation", "result"},
	)

	StoreRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sbcntr_booking_store_request_duration_seconds",
			Help:    "Booking store request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ValidationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sbcntr_booking_validation_errors_total",
			Help: "Total number of rejected booking queries",
		},
		[]string{"operation"},
	)

	ActivityNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sbcntr_booking_activity_notifications_total",
			Help: "Total number of check-in and check-out notifications built by the activity batch",
		},
		[]string{"type"},
	)
)

func RecordStoreRequest(operation string, err error, duration float64) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	StoreRequestsTotal.WithLabelValues(operation, result).Inc()
	StoreRequestDuration.WithLabelValues(operation).Observe(duration)
}

func RecordValidationError(operation string) {
	ValidationErrorsTotal.WithLabelValues(operation).Inc()
}

func RecordActivityNotification(notificationType string) {
	ActivityNotificationsTotal.WithLabelValues(notificationType).Inc()
}

// Push はバッチの終了時にメトリクスをPushgatewayへ送信します
func Push(url, job string) error {
	return push.New(url, job).
		Collector(StoreRequestsTotal).
		Collector(StoreRequestDuration).
		Collector(ValidationErrorsTotal).
		Collector(ActivityNotificationsTotal).
		Push()
}

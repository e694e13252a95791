package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "connection_requests_sent_total",
			Help: "Connection requests successfully created",
		},
	)
	RequestsSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_requests_settled_total",
			Help: "Connection requests moved out of pending, by resulting status",
		},
		[]string{"status"},
	)
	RequestRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_request_rejections_total",
			Help: "Lifecycle operations refused, by error code",
		},
		[]string{"operation", "code"},
	)
	NotificationDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Notification delivery attempts by sink and result",
		},
		[]string{"sink", "result"},
	)
	NotificationQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_queue_depth",
			Help: "Jobs waiting in the notification dispatcher queue",
		},
	)
	QuotaRowsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_rows_pruned_total",
			Help: "Expired daily quota rows removed by the cleanup worker",
		},
	)
)

// Register adds the domain collectors to reg. Call once from main.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		RequestsSent,
		RequestsSettled,
		RequestRejections,
		NotificationDeliveries,
		NotificationQueueDepth,
		QuotaRowsPruned,
	)
}

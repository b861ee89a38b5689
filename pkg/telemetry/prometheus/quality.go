package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	qualityChangeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "publisher",
		Name:      "quality_changes",
		Help:      "SFU quality change requests by outcome (success, skipped, error).",
	}, []string{"status"})

	publishedTracksGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "publisher",
		Name:      "transceivers",
		Help:      "Send transceivers currently registered.",
	})

	subscriptionUpdateCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "subscriber",
		Name:      "subscription_updates",
		Help:      "Subscription list updates by outcome (success, skipped, error).",
	}, []string{"status"})

	subscribedTracksGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "subscriber",
		Name:      "subscriptions",
		Help:      "Remote tracks in the current subscription list.",
	})
)

func RecordQualityChange(status string) {
	qualityChangeCounter.WithLabelValues(status).Inc()
}

func SetPublishedTransceivers(n int) {
	publishedTracksGauge.Set(float64(n))
}

func RecordSubscriptionUpdate(status string, subscriptions int) {
	subscriptionUpdateCounter.WithLabelValues(status).Inc()
	if status == StatusSuccess {
		subscribedTracksGauge.Set(float64(subscriptions))
	}
}

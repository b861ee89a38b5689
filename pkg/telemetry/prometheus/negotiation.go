package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	negotiationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "negotiation",
		Name:      "operations",
		Help:      "SDP operations by leg, operation and outcome.",
	}, []string{"peer", "op", "status"})

	negotiationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "negotiation",
		Name:      "duration_ms",
		Help:      "Full offer/answer round trip duration.",
		Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"peer"})

	iceCandidateCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ice",
		Name:      "remote_candidates",
		Help:      "Remote ICE candidates by leg and outcome (applied, buffered, failed).",
	}, []string{"peer", "status"})

	connectionStateCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ice",
		Name:      "state_changes",
		Help:      "Connection state transitions by leg, kind and new state.",
	}, []string{"peer", "kind", "state"})
)

func RecordNegotiationOp(peer string, op string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	negotiationCounter.WithLabelValues(peer, op, status).Inc()
}

func RecordNegotiationDuration(peer string, d time.Duration) {
	negotiationDuration.WithLabelValues(peer).Observe(float64(d.Milliseconds()))
}

func RecordICECandidate(peer string, status string) {
	iceCandidateCounter.WithLabelValues(peer, status).Inc()
}

func RecordConnectionState(peer string, kind string, state string) {
	connectionStateCounter.WithLabelValues(peer, kind, state).Inc()
}

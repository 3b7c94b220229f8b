// SPDX-License-Identifier: Apache-2.0

package sdstats

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yuu-ri/vsomeip/sdmsg"
)

// PrometheusRecorder records SM activity as prometheus counters registered
// against a shared registry, and keeps a parallel set of plain atomic
// counters so a debug snapshot can be logged without scraping /metrics.
type PrometheusRecorder struct {
	role string

	sendTotal   *prometheus.CounterVec
	recvTotal   *prometheus.CounterVec
	transitions prometheus.Counter
	ttlExpiries prometheus.Counter

	transitionsSnapshot atomic.Int64
	ttlExpiriesSnapshot atomic.Int64
}

// NewPrometheusRecorder creates a PrometheusRecorder for the given role
// ("provider", "consumer" or "eventgroup") and registers its collectors
// against reg.
func NewPrometheusRecorder(reg *prometheus.Registry, role string) *PrometheusRecorder {
	r := &PrometheusRecorder{
		role: role,
		sendTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "someip_sd",
			Subsystem:   role,
			Name:        "messages_sent_total",
			Help:        "SD control messages sent, by tag.",
			ConstLabels: nil,
		}, []string{"message"}),
		recvTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "someip_sd",
			Subsystem: role,
			Name:      "messages_received_total",
			Help:      "SD control messages received, by tag.",
		}, []string{"message"}),
		transitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "someip_sd",
			Subsystem: role,
			Name:      "transitions_total",
			Help:      "State transitions taken.",
		}),
		ttlExpiries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "someip_sd",
			Subsystem: role,
			Name:      "ttl_expiries_total",
			Help:      "TTL or subscription lease expiries observed.",
		}),
	}
	reg.MustRegister(r.sendTotal, r.recvTotal, r.transitions, r.ttlExpiries)
	return r
}

// IncSend implements Recorder.
func (r *PrometheusRecorder) IncSend(msg sdmsg.Message) {
	r.sendTotal.WithLabelValues(msg.String()).Inc()
}

// IncRecv implements Recorder.
func (r *PrometheusRecorder) IncRecv(msg sdmsg.Message) {
	r.recvTotal.WithLabelValues(msg.String()).Inc()
}

// IncTransition implements Recorder.
func (r *PrometheusRecorder) IncTransition() {
	r.transitions.Inc()
	r.transitionsSnapshot.Add(1)
}

// IncTTLExpiry implements Recorder.
func (r *PrometheusRecorder) IncTTLExpiry() {
	r.ttlExpiries.Inc()
	r.ttlExpiriesSnapshot.Add(1)
}

// Snapshot is a JSON-friendly point-in-time view of the counters that can be
// read without scraping prometheus.
type Snapshot struct {
	Role        string `json:"role"`
	Transitions int64  `json:"transitions"`
	TTLExpiries int64  `json:"ttl_expiries"`
}

// Snapshot returns the current counter values.
func (r *PrometheusRecorder) Snapshot() Snapshot {
	return Snapshot{
		Role:        r.role,
		Transitions: r.transitionsSnapshot.Load(),
		TTLExpiries: r.ttlExpiriesSnapshot.Load(),
	}
}

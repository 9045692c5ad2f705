// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maniplink",
			Subsystem: "link",
			Name:      "commands_total",
			Help:      "Commands written to the controller.",
		},
		[]string{"verb", "mode"},
	)
	commandTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maniplink",
			Subsystem: "link",
			Name:      "command_timeouts_total",
			Help:      "Sync commands that produced a synthetic timeout reply.",
		},
		[]string{"verb"},
	)
	commandRoundtrip = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "maniplink",
			Subsystem: "link",
			Name:      "command_roundtrip_seconds",
			Help:      "Sync command round trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"verb"},
	)
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maniplink",
			Subsystem: "link",
			Name:      "messages_total",
			Help:      "Inbound frames by classified kind.",
		},
		[]string{"kind"},
	)
	reconnectAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "maniplink",
			Subsystem: "link",
			Name:      "reconnect_attempts_total",
			Help:      "Dial attempts made after an initial connect failure.",
		},
	)
	connectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "maniplink",
			Subsystem: "link",
			Name:      "connection_state",
			Help:      "Connection state: 0 disconnected, 1 connecting, 2 connected.",
		},
	)
	heartbeatFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "maniplink",
			Subsystem: "heartbeat",
			Name:      "failures_total",
			Help:      "Liveness probes that failed.",
		},
	)
	plansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "maniplink",
			Subsystem: "trajectory",
			Name:      "plans_total",
			Help:      "Trajectory plans produced.",
		},
	)
	planPoints = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "maniplink",
			Subsystem: "trajectory",
			Name:      "plan_points",
			Help:      "Points per plan after downsampling.",
			Buckets:   prometheus.ExponentialBuckets(2, 2, 8),
		},
	)
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maniplink",
			Subsystem: "trajectory",
			Name:      "executions_total",
			Help:      "Trajectory executions by terminal result.",
		},
		[]string{"result"},
	)
)

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			commandsTotal, commandTimeouts, commandRoundtrip, messagesTotal,
			reconnectAttempts, connectionState,
			heartbeatFailures,
			plansTotal, planPoints, executionsTotal,
		)
	})
}

func RecordCommand(verb, mode string) {
	Register()
	commandsTotal.WithLabelValues(verb, mode).Inc()
}

func RecordTimeout(verb string) {
	Register()
	commandTimeouts.WithLabelValues(verb).Inc()
}

func RecordRoundtrip(verb string, duration time.Duration) {
	Register()
	commandRoundtrip.WithLabelValues(verb).Observe(duration.Seconds())
}

func RecordMessage(kind string) {
	Register()
	messagesTotal.WithLabelValues(kind).Inc()
}

func RecordReconnectAttempt() {
	Register()
	reconnectAttempts.Inc()
}

func SetConnectionState(state float64) {
	Register()
	connectionState.Set(state)
}

func RecordHeartbeatFailure() {
	Register()
	heartbeatFailures.Inc()
}

func RecordPlan(points int) {
	Register()
	plansTotal.Inc()
	planPoints.Observe(float64(points))
}

func RecordExecution(result string) {
	Register()
	executionsTotal.WithLabelValues(result).Inc()
}

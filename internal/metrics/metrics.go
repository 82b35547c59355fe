// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters
	Actions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energy2mqtt_modbus_actions_total",
		Help: "Field-bus connect and read attempts by outcome",
	}, []string{"action", "status"})

	DecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "energy2mqtt_decode_errors_total",
		Help: "Read cycles whose register block did not fit the register map",
	})

	Publishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energy2mqtt_mqtt_publishes_total",
		Help: "Broker publish cycles by outcome",
	}, []string{"status"})

	SkippedTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "energy2mqtt_skipped_ticks_total",
		Help: "Ticks that found an action still in flight",
	})

	// Gauges
	SessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "energy2mqtt_session_state",
		Help: "1 for the current field-bus session state, absent otherwise",
	}, []string{"state"})

	Health = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "energy2mqtt_health",
		Help: "0 unknown, 1 ok, 2 error",
	})
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// IncAction counts one connect or read outcome.
func IncAction(action string, ok bool) {
	Actions.WithLabelValues(action, statusLabel(ok)).Inc()
}

// IncPublish counts one publish cycle outcome.
func IncPublish(ok bool) {
	Publishes.WithLabelValues(statusLabel(ok)).Inc()
}

// SetState marks state as the only active session state.
func SetState(state string) {
	SessionState.Reset()
	SessionState.WithLabelValues(state).Set(1)
}

// SetHealth records the status health code.
func SetHealth(code uint16) {
	Health.Set(float64(code))
}

func statusLabel(ok bool) string {
	if ok {
		return StatusSuccess
	}
	return StatusFailed
}

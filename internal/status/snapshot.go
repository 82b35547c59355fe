// internal/status/snapshot.go
package status

import "time"

// Snapshot is the human-facing view of the field-bus session.
// It never feeds back into the state machine.
type Snapshot struct {
	Health  uint16
	Message string

	// Since is when Health last changed.
	Since time.Time

	// Failures counts consecutive failed actions; reset on recovery.
	Failures uint32
}

// Initial returns the boot snapshot.
func Initial(now time.Time) Snapshot {
	return Snapshot{
		Health:  HealthUnknown,
		Message: MessageInitializing,
		Since:   now,
	}
}

// OK records a successful action.
// changed reports whether Health or Message moved.
func (s Snapshot) OK(msg string, now time.Time) (next Snapshot, changed bool) {
	next = s
	if next.Health != HealthOK {
		next.Health = HealthOK
		next.Since = now
		changed = true
	}
	// Reset failure streak on recovery.
	next.Failures = 0
	if next.Message != msg {
		next.Message = msg
		changed = true
	}
	return next, changed
}

// Failed records a failed action. The message is the error text.
func (s Snapshot) Failed(msg string, now time.Time) (next Snapshot, changed bool) {
	next = s
	if next.Health != HealthError {
		next.Health = HealthError
		next.Since = now
		changed = true
	}
	next.Failures++
	if next.Message != msg {
		next.Message = msg
		changed = true
	}
	return next, changed
}

// InError returns how long the session has been failing, zero if healthy.
func (s Snapshot) InError(now time.Time) time.Duration {
	if s.Health != HealthError {
		return 0
	}
	return now.Sub(s.Since)
}

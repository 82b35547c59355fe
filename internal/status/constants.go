// internal/status/constants.go
package status

// ---- HEALTH CODES ----

// HealthUnknown represents the boot state, before the first action resolves.
const HealthUnknown uint16 = 0

// HealthOK represents a device that answered the last action.
const HealthOK uint16 = 1

// HealthError represents a device whose last action failed.
const HealthError uint16 = 2

// ---- MESSAGES ----

const (
	MessageInitializing = "Initializing..."
	MessageConnected    = "Connected, wait for reading..."
	MessageReading      = "Reading"
)

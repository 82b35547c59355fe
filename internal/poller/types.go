// internal/poller/types.go
package poller

import (
	"context"

	"github.com/tamzrod/energy2mqtt/internal/registers"
)

// FieldBus is the session capability the poller drives.
// The poller never touches the underlying connection.
type FieldBus interface {
	// Connect closes any open session, then opens a new one.
	Connect(ctx context.Context) error
	// ReadBlock requires an open session.
	ReadBlock(ctx context.Context, start, count uint16) ([]byte, error)
	// Connected reports whether a session is currently open.
	Connected() bool
	Close() error
	// Endpoint is used for logging only.
	Endpoint() string
}

// Publisher delivers one cycle of measurements.
// Its failures never reach the session state.
type Publisher interface {
	Publish(ctx context.Context, ms []registers.Measurement) error
}

// outcome is the single completion event of a dispatched action.
type outcome struct {
	action       Action
	measurements []registers.Measurement
	err          error
}

// internal/poller/errors.go
package poller

import "fmt"

// ConnectError is a failure to open a field-bus session.
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ReadError is a failure during a block read.
type ReadError struct {
	Start uint16
	Count uint16
	Err   error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %d+%d: %v", e.Start, e.Count, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

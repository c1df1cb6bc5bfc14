package telemetry

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument marks a request that was malformed before it left the
// process (missing sensor, duration out of range) or that the service
// rejected as malformed.
var ErrInvalidArgument = errors.New("invalid argument")

// TransportError is a failure reaching the telemetry service: dial, network,
// deadline or serialization errors, and any non-argument service status.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a TransportError
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

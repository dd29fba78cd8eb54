package fetch

import (
	"fmt"
	"time"
)

// StatusError is returned when the server answers with anything but 200.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download %s: unexpected status %d", e.URL, e.Code)
}

// TransportError wraps a failure while connecting, reading the body or
// writing the destination file.
type TransportError struct {
	URL string
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("download %s: %s: %v", e.URL, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError means no data arrived for Idle.
type TimeoutError struct {
	URL  string
	Idle time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("download %s: no data received for %s", e.URL, e.Idle)
}

// UnsupportedSchemeError is returned before any file is created.
type UnsupportedSchemeError struct {
	URL    string
	Scheme string
}

func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("unsupported URL scheme %q in %s (want https or s3)", e.Scheme, e.URL)
}

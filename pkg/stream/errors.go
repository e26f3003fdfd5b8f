// ABOUTME: Error taxonomy for the streaming pipeline
// ABOUTME: Sentinel kinds plus an operation-tagged wrapper usable with errors.Is
package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable means no usable capture device exists.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrDriver covers capture open, start and read failures.
	ErrDriver = errors.New("audio driver error")
	// ErrConnection covers resolve, connect, send and receive failures.
	ErrConnection = errors.New("connection error")
	// ErrConfig is returned for invalid sizes and arguments.
	ErrConfig = errors.New("invalid configuration")

	// ErrStopped is returned by Initialize and Start once Stop has run.
	ErrStopped = errors.New("stream stopped")
)

// Error tags an underlying failure with its kind and the operation that
// produced it.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap returns err tagged with kind. If err already carries a kind from this
// taxonomy it is returned unchanged.
func Wrap(kind error, op string, err error) error {
	if err != nil && KindOf(err) != nil {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the taxonomy sentinel carried by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{ErrDeviceUnavailable, ErrDriver, ErrConnection, ErrConfig} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

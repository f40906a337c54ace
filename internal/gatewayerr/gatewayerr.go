// Package gatewayerr classifies gateway failures into the handling kinds
// the Supervisor needs to decide between a logged-and-continue event and a
// fatal teardown.
package gatewayerr

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway error for Supervisor handling.
type Kind int

const (
	// KindUnknown is the zero value; treated as fatal by the Supervisor.
	KindUnknown Kind = iota

	// KindProtocolDecode indicates a malformed wire record. Logged and the
	// offending connection is dropped; the gateway continues.
	KindProtocolDecode

	// KindResourceExhausted indicates a bounded resource (the shared
	// buffer) is full. Logged; the caller retries or drops per policy.
	KindResourceExhausted

	// KindStoreUnavailable indicates the relational store could not be
	// reached within the configured retry budget. Fatal.
	KindStoreUnavailable

	// KindFatal indicates an unrecoverable condition that must bring down
	// the whole gateway (e.g. the Log Channel pipe could not be created).
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindProtocolDecode:
		return "protocol_decode"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// gatewayError wraps an underlying error with a Kind for errors.As-based
// dispatch, and a component tag for logging.
type gatewayError struct {
	kind      Kind
	component string
	err       error
}

func (e *gatewayError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.component, e.kind, e.err)
}

func (e *gatewayError) Unwrap() error { return e.err }

// Wrap annotates err with kind and the emitting component. Returns nil if
// err is nil.
func Wrap(component string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &gatewayError{kind: kind, component: component, err: err}
}

// KindOf extracts the Kind carried by err, if any was attached via Wrap.
// Returns KindUnknown if err does not carry a Kind.
func KindOf(err error) Kind {
	var ge *gatewayError
	if errors.As(err, &ge) {
		return ge.kind
	}
	return KindUnknown
}

// Fatal reports whether err should trigger Supervisor teardown.
func Fatal(err error) bool {
	switch KindOf(err) {
	case KindStoreUnavailable, KindFatal, KindUnknown:
		return err != nil
	default:
		return false
	}
}

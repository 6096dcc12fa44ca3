package orvibo

import "errors"

// Domain errors for the Orvibo bridge package.
//
// Soft outcomes (subscribe ignored, learn timeout, wrong device kind) are
// deliberately not errors; they are reported through return values. See the
// package documentation for the failure model.
var (
	// ErrTransport is returned when the UDP socket reports a fault during
	// send or receive. Fatal to the current operation, never retried.
	ErrTransport = errors.New("orvibo: transport failure")

	// ErrDeviceNotFound is returned when a requested address is absent
	// from a discovery pass.
	ErrDeviceNotFound = errors.New("orvibo: device not found")

	// ErrMalformedFrame is returned when raw bytes cannot be parsed as a
	// protocol frame (short, wrong magic, or length-field mismatch).
	ErrMalformedFrame = errors.New("orvibo: malformed frame")

	// ErrInvalidIdentity is returned when an identity string cannot be
	// parsed as 6 hex-encoded bytes.
	ErrInvalidIdentity = errors.New("orvibo: invalid identity")

	// ErrSubscribeFailed is returned when enabling keep-connection mode
	// and the mandatory subscription gets no response.
	ErrSubscribeFailed = errors.New("orvibo: subscription failed")

	// ErrNoRepository is returned when an operation needs the signal
	// repository but none was configured on the Device.
	ErrNoRepository = errors.New("orvibo: no signal repository configured")
)

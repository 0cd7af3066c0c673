// Package subdsp turns graphs into callables: a wrapping adapter, a strict
// signature adapter, a compiled pipe and a batch runner.
package subdsp

import "errors"

var (
	// ErrUnreachableOutput is returned when a dispatch ends without some of
	// the requested outputs.
	ErrUnreachableOutput = errors.New("unreachable output")
	// ErrArguments is returned for calls that do not match the signature.
	ErrArguments = errors.New("invalid arguments")
	// ErrRouteChanged is returned by a pipe replay when a domain the compiled
	// route relies on rejects the live inputs.
	ErrRouteChanged = errors.New("compiled route no longer holds")
	// ErrFingerprintMismatch is returned when a persisted route is loaded
	// against a graph whose structure changed.
	ErrFingerprintMismatch = errors.New("graph fingerprint mismatch")
)

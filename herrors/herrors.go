// Package herrors defines the typed error taxonomy the rest of this
// module raises: ConfigError, ResourceError, TopologyError, and
// TransportError, each wrapping an underlying cause.
package herrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind discriminates the four error categories named by the
// specification's error handling design.
type Kind int

const (
	Config Kind = iota
	Resource
	Topology
	Transport
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "ConfigError"
	case Resource:
		return "ResourceError"
	case Topology:
		return "TopologyError"
	case Transport:
		return "TransportError"
	default:
		return "UnknownError"
	}
}

// Error is a typed, wrapped error carrying one of the four kinds.
type Error struct {
	kind  Kind
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.kind, e.cause)
}

// Unwrap lets errors.Is / errors.As see through to the cause.
func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error's category.
func (e *Error) Kind() Kind { return e.kind }

func wrap(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, cause: errors.Errorf(format, args...)}
}

func wrapErr(kind Kind, cause error, msg string) *Error {
	return &Error{kind: kind, cause: errors.Wrap(cause, msg)}
}

// NewConfigError reports an invalid construction-time argument:
// nRanks < 1, nGpus < 1, radius < 1, a size component < 1, or
// register_data called after realize.
func NewConfigError(format string, args ...interface{}) *Error {
	return wrap(Config, format, args...)
}

// NewResourceError reports accelerator allocation failure or an
// unclassified peer-access enable error.
func NewResourceError(cause error, msg string) *Error {
	return wrapErr(Resource, cause, msg)
}

// NewTopologyError reports a partitioner placement that would yield a
// zero-sized subdomain.
func NewTopologyError(format string, args ...interface{}) *Error {
	return wrap(Topology, format, args...)
}

// NewTransportError reports a failure inside messaging send/recv/wait.
func NewTransportError(cause error, msg string) *Error {
	return wrapErr(Transport, cause, msg)
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.kind == kind
}

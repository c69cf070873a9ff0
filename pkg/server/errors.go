package server

import (
	"errors"
	"fmt"
)

// Kind classifies a startup failure. Every kind is fatal.
type Kind int

const (
	KindDirectoryUnavailable Kind = iota + 1
	KindRecoveryFailure
	KindInvalidAddressConfiguration
	KindAddressBindFailure
	KindListenerRuntimeFailure
	KindExecutorUnavailable
)

var (
	ErrDirectoryUnavailable        = errors.New("database directory unavailable")
	ErrRecoveryFailure             = errors.New("database recovery failed")
	ErrInvalidAddressConfiguration = errors.New("invalid listener address")
	ErrAddressBindFailure          = errors.New("listener bind failed")
	ErrListenerRuntimeFailure      = errors.New("listener terminated")
	ErrExecutorUnavailable         = errors.New("query executor unavailable")
)

func (k Kind) String() string {
	switch k {
	case KindDirectoryUnavailable:
		return "DirectoryUnavailable"
	case KindRecoveryFailure:
		return "RecoveryFailure"
	case KindInvalidAddressConfiguration:
		return "InvalidAddressConfiguration"
	case KindAddressBindFailure:
		return "AddressBindFailure"
	case KindListenerRuntimeFailure:
		return "ListenerRuntimeFailure"
	case KindExecutorUnavailable:
		return "ExecutorUnavailable"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindDirectoryUnavailable:
		return ErrDirectoryUnavailable
	case KindRecoveryFailure:
		return ErrRecoveryFailure
	case KindInvalidAddressConfiguration:
		return ErrInvalidAddressConfiguration
	case KindAddressBindFailure:
		return ErrAddressBindFailure
	case KindListenerRuntimeFailure:
		return ErrListenerRuntimeFailure
	case KindExecutorUnavailable:
		return ErrExecutorUnavailable
	default:
		return nil
	}
}

// StartupError is returned by Run for every fatal failure.
// errors.Is matches both the kind's sentinel and the wrapped cause.
type StartupError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

func (e *StartupError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func startupError(kind Kind, op string, err error) *StartupError {
	return &StartupError{Kind: kind, Op: op, Err: err}
}

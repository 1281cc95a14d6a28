package tree

import (
	"errors"
	"fmt"

	"github.com/bpmctl/paramtree/pkg/value"
)

// Node errors.
var (
	// ErrStaleHandle is returned by every operation on a destroyed node.
	ErrStaleHandle = errors.New("node gone")

	// ErrKindMismatch is returned when a value of the wrong kind is read or
	// written.
	ErrKindMismatch = value.ErrKindMismatch

	// ErrSizeOutOfRange is returned for positions or counts beyond an array.
	ErrSizeOutOfRange = value.ErrOutOfRange

	ErrNotReadable      = errors.New("node is not readable")
	ErrNotWritable      = errors.New("node is not writable")
	ErrNotExecutable    = errors.New("node is not executable")
	ErrValidationFailed = errors.New("validation failed")

	// ErrDisconnected is returned when subscribing a client the emitter does
	// not know or has marked broken.
	ErrDisconnected = errors.New("client disconnected")

	// ErrRemoteFailure wraps transport and peer-side failures of mounted
	// subtrees.
	ErrRemoteFailure = errors.New("remote failure")

	ErrDuplicateName = errors.New("duplicate child name")
	ErrNotFound      = errors.New("node not found")
	ErrInvalidName   = errors.New("invalid node name")
	ErrNotDetached   = errors.New("node is already attached")
	ErrNotAttached   = errors.New("node is not attached")
	ErrRootNode      = errors.New("operation not permitted on root node")
	ErrNotPersistent = errors.New("node is not persistent")
	ErrNotMountable  = errors.New("operation not supported below a mount")
	ErrCycle         = errors.New("node would become its own ancestor")
)

// ValidationError is returned when a candidate value is rejected. It
// unwraps to ErrValidationFailed.
type ValidationError struct {
	// Expression is the textual form of the rejecting constraint.
	Expression string

	// Value is the rejected candidate.
	Value value.Value
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s rejected by %s", e.Value, e.Expression)
}

// Unwrap returns ErrValidationFailed.
func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// RemoteError wraps an underlying transport or peer error as a
// ErrRemoteFailure while keeping the cause reachable with errors.Is/As.
func RemoteError(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrRemoteFailure, op, cause)
}

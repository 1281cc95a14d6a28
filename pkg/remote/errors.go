package remote

import (
	"errors"
	"fmt"

	"github.com/bpmctl/paramtree/pkg/tree"
	"github.com/bpmctl/paramtree/pkg/value"
	"github.com/bpmctl/paramtree/pkg/version"
	"github.com/bpmctl/paramtree/pkg/wire"
)

// Remote protocol errors.
var (
	// ErrNotAuthorized is returned when the server rejects the handshake.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrBusy is returned when the server rate limited a request.
	ErrBusy = errors.New("server busy")

	// ErrTimeout is returned when no response arrived in time. It is
	// always wrapped as tree.ErrRemoteFailure.
	ErrTimeout = errors.New("request timed out")

	// ErrClosed is returned for calls on a closed client.
	ErrClosed = errors.New("client closed")

	// ErrInvalidRequest is returned when a request payload does not decode.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnsupported is returned for operations the peer does not implement.
	ErrUnsupported = errors.New("unsupported operation")
)

var statusErrors = []struct {
	status wire.Status
	err    error
}{
	{wire.StatusNodeGone, tree.ErrStaleHandle},
	{wire.StatusNotFound, tree.ErrNotFound},
	{wire.StatusValidationFailed, tree.ErrValidationFailed},
	{wire.StatusKindMismatch, tree.ErrKindMismatch},
	{wire.StatusOutOfRange, tree.ErrSizeOutOfRange},
	{wire.StatusNotReadable, tree.ErrNotReadable},
	{wire.StatusNotWritable, tree.ErrNotWritable},
	{wire.StatusNotExecutable, tree.ErrNotExecutable},
	{wire.StatusDisconnected, tree.ErrDisconnected},
	{wire.StatusNotAuthorized, ErrNotAuthorized},
	{wire.StatusBusy, ErrBusy},
	{wire.StatusUnsupported, ErrUnsupported},
	{wire.StatusUnsupported, tree.ErrNotMountable},
	{wire.StatusInvalidRequest, ErrInvalidRequest},
	{wire.StatusInvalidRequest, tree.ErrInvalidName},
}

// statusFor maps an error from a local handle to a response status and
// error payload.
func statusFor(err error) (wire.Status, *wire.ErrorPayload) {
	payload := &wire.ErrorPayload{Message: err.Error()}

	var verr *tree.ValidationError
	if errors.As(err, &verr) {
		tv := wire.FromValue(verr.Value)
		payload.Expression = verr.Expression
		payload.Value = &tv
		return wire.StatusValidationFailed, payload
	}
	if errors.Is(err, version.ErrIncompatible) {
		return wire.StatusUnsupported, payload
	}
	for _, se := range statusErrors {
		if errors.Is(err, se.err) {
			return se.status, payload
		}
	}
	return wire.StatusInternal, payload
}

// errorFor rebuilds the error a failed response stands for. A status
// shared by several errors decodes to the first one listed. Statuses
// without a local counterpart become tree.ErrRemoteFailure.
func errorFor(resp *wire.Response) error {
	msg := resp.Status.String()
	if resp.Error != nil && resp.Error.Message != "" {
		msg = resp.Error.Message
	}

	if resp.Status == wire.StatusValidationFailed && resp.Error != nil {
		verr := &tree.ValidationError{Expression: resp.Error.Expression}
		if resp.Error.Value != nil {
			verr.Value, _ = resp.Error.Value.Value()
		}
		return verr
	}
	for _, se := range statusErrors {
		if se.status == resp.Status {
			return fmt.Errorf("%w: %s", se.err, msg)
		}
	}
	return tree.RemoteError("peer", fmt.Errorf("%s: %s", resp.Status, msg))
}

// kindOf validates a kind received from the peer.
func kindOf(k uint8) (value.Kind, error) {
	kind := value.Kind(k)
	if k != 0 && !kind.IsValid() {
		return 0, fmt.Errorf("%w: %d", value.ErrInvalidKind, k)
	}
	return kind, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, tree.ErrNotFound)
}

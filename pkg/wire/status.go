package wire

// Status is a response status code.
type Status uint8

const (
	// StatusSuccess indicates the operation completed successfully.
	StatusSuccess Status = 0

	// StatusNodeGone indicates the addressed node was destroyed.
	StatusNodeGone Status = 1

	// StatusNotFound indicates no node exists at the path.
	StatusNotFound Status = 2

	// StatusKindMismatch indicates the value kind does not match the node.
	StatusKindMismatch Status = 3

	// StatusNotReadable indicates a read of a write-only node.
	StatusNotReadable Status = 4

	// StatusNotWritable indicates a write to a read-only or constant node.
	StatusNotWritable Status = 5

	// StatusNotExecutable indicates Execute on a non-command node.
	StatusNotExecutable Status = 6

	// StatusValidationFailed indicates the constraint rejected the value.
	StatusValidationFailed Status = 7

	// StatusOutOfRange indicates a position or count beyond the array.
	StatusOutOfRange Status = 8

	// StatusDisconnected indicates the subscriber is unknown or broken.
	StatusDisconnected Status = 9

	// StatusNotAuthorized indicates a missing or failed handshake.
	StatusNotAuthorized Status = 10

	// StatusBusy indicates the request was rate limited; try again later.
	StatusBusy Status = 11

	// StatusUnsupported indicates the operation is not supported here.
	StatusUnsupported Status = 12

	// StatusInvalidRequest indicates a malformed request.
	StatusInvalidRequest Status = 13

	// StatusInternal indicates any other failure on the server.
	StatusInternal Status = 14
)

var statusNames = map[Status]string{
	StatusSuccess:          "SUCCESS",
	StatusNodeGone:         "NODE_GONE",
	StatusNotFound:         "NOT_FOUND",
	StatusKindMismatch:     "KIND_MISMATCH",
	StatusNotReadable:      "NOT_READABLE",
	StatusNotWritable:      "NOT_WRITABLE",
	StatusNotExecutable:    "NOT_EXECUTABLE",
	StatusValidationFailed: "VALIDATION_FAILED",
	StatusOutOfRange:       "OUT_OF_RANGE",
	StatusDisconnected:     "DISCONNECTED",
	StatusNotAuthorized:    "NOT_AUTHORIZED",
	StatusBusy:             "BUSY",
	StatusUnsupported:      "UNSUPPORTED",
	StatusInvalidRequest:   "INVALID_REQUEST",
	StatusInternal:         "INTERNAL",
}

// String returns the status name.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// IsError returns true if the status indicates an error.
func (s Status) IsError() bool {
	return s != StatusSuccess
}

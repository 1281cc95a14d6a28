package wire

// Operation is a remote tree operation.
type Operation uint8

const (
	// OpHello negotiates the protocol version and returns the
	// authentication challenge.
	OpHello Operation = 1

	// OpAuthenticate answers the challenge with a keyed MAC.
	OpAuthenticate Operation = 2

	// OpGetName returns the node name.
	OpGetName Operation = 3

	// OpGetNodes returns the visible child names in order.
	OpGetNodes Operation = 4

	// OpGetNodeCount returns the number of visible children.
	OpGetNodeCount Operation = 5

	// OpIsLeaf reports whether the node has no children.
	OpIsLeaf Operation = 6

	// OpGetValueType returns the primitive kind and array flag.
	OpGetValueType Operation = 7

	// OpGetValue reads Count elements at Pos.
	OpGetValue Operation = 8

	// OpSetValue writes a value at Pos.
	OpSetValue Operation = 9

	// OpExecute runs a command node.
	OpExecute Operation = 10

	// OpGetSize returns the element count.
	OpGetSize Operation = 11

	// OpGetFlags returns the capability bitmask.
	OpGetFlags Operation = 12

	// OpGetDomainValues returns the enum domain entries.
	OpGetDomainValues Operation = 13

	// OpGetValidatorExpression returns the constraint text.
	OpGetValidatorExpression Operation = 14

	// OpSubscribe subscribes the connection to the node.
	OpSubscribe Operation = 15

	// OpUnsubscribe removes the subscription.
	OpUnsubscribe Operation = 16

	// OpResize changes the length of an array node.
	OpResize Operation = 17

	// OpGetInfo returns all metadata of a node in one round trip.
	OpGetInfo Operation = 18
)

var operationNames = map[Operation]string{
	OpHello:                  "Hello",
	OpAuthenticate:           "Authenticate",
	OpGetName:                "GetName",
	OpGetNodes:               "GetNodes",
	OpGetNodeCount:           "GetNodeCount",
	OpIsLeaf:                 "IsLeaf",
	OpGetValueType:           "GetValueType",
	OpGetValue:               "GetValue",
	OpSetValue:               "SetValue",
	OpExecute:                "Execute",
	OpGetSize:                "GetSize",
	OpGetFlags:               "GetFlags",
	OpGetDomainValues:        "GetDomainValues",
	OpGetValidatorExpression: "GetValidatorExpression",
	OpSubscribe:              "Subscribe",
	OpUnsubscribe:            "Unsubscribe",
	OpResize:                 "Resize",
	OpGetInfo:                "GetInfo",
}

// String returns the operation name.
func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return "Unknown"
}

// IsValid returns true if the operation is known.
func (o Operation) IsValid() bool {
	return o >= OpHello && o <= OpGetInfo
}

// NeedsAuth returns true for operations that require a completed
// handshake when the server has a pre-shared key.
func (o Operation) NeedsAuth() bool {
	return o != OpHello && o != OpAuthenticate
}

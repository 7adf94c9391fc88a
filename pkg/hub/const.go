package hub

// RecordSeparator terminates every JSON record on the wire.
const RecordSeparator = byte(0x1e)

// MessageType identifies the kind of a hub protocol record.
type MessageType int

const (
	InvocationMessage       MessageType = 1
	StreamItemMessage       MessageType = 2
	CompletionMessage       MessageType = 3
	StreamInvocationMessage MessageType = 4
	CancelInvocationMessage MessageType = 5
	PingMessage             MessageType = 6
	CloseMessage            MessageType = 7
)

const (
	ProtocolName    = "json"
	ProtocolVersion = 1
)

func (t MessageType) String() string {
	switch t {
	case InvocationMessage:
		return "Invocation"
	case StreamItemMessage:
		return "StreamItem"
	case CompletionMessage:
		return "Completion"
	case StreamInvocationMessage:
		return "StreamInvocation"
	case CancelInvocationMessage:
		return "CancelInvocation"
	case PingMessage:
		return "Ping"
	case CloseMessage:
		return "Close"
	}
	return "Unknown"
}

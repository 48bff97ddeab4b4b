package hwi

import (
	"fmt"
	"log/slog"
)

// Request priorities. Lower values are written first.
const (
	// MonitoringPriority is used for the monitoring-enable commands so they are written before any queued command.
	MonitoringPriority = 1
	// DefaultPriority is used for ordinary commands.
	DefaultPriority = 20
)

// RequestKind identifies what the session writer does with a RequestMessage.
type RequestKind uint8

const (
	// SendDataRequest writes the payload as a raw line.
	SendDataRequest RequestKind = iota + 1
	// SendCommandRequest writes the payload as a formatted command line.
	SendCommandRequest
	// DisconnectRequest closes the session once every request before it was written.
	DisconnectRequest
)

func (k RequestKind) String() string {
	switch k {
	case SendDataRequest:
		return "send-data"
	case SendCommandRequest:
		return "send-command"
	case DisconnectRequest:
		return "disconnect"
	default:
		return "unknown"
	}
}

// RequestMessage is an outbound request handed to the connection by the domain layer.
//
// The payload is written verbatim followed by the line terminator; it is not validated.
type RequestMessage struct {
	Kind     RequestKind
	Payload  string
	Priority int
}

// NewCommandRequest creates a SendCommandRequest at DefaultPriority from a command name and its arguments.
func NewCommandRequest(name string, args ...string) RequestMessage {
	return RequestMessage{Kind: SendCommandRequest, Payload: FormatCommand(name, args...), Priority: DefaultPriority}
}

// NewDataRequest creates a SendDataRequest with the given priority.
func NewDataRequest(payload string, priority int) RequestMessage {
	return RequestMessage{Kind: SendDataRequest, Payload: payload, Priority: priority}
}

// NewDisconnectRequest creates a DisconnectRequest at DefaultPriority.
func NewDisconnectRequest() RequestMessage {
	return RequestMessage{Kind: DisconnectRequest, Priority: DefaultPriority}
}

// WithPriority returns a copy of the request with a different priority.
func (r RequestMessage) WithPriority(priority int) RequestMessage {
	r.Priority = priority
	return r
}

// Validate reports whether the request can be written to the wire.
func (r RequestMessage) Validate() error {
	switch r.Kind {
	case SendDataRequest, SendCommandRequest:
		if r.Payload == "" {
			return fmt.Errorf("%w: empty payload", ErrInvalidRequest)
		}
		if containsLineBreak(r.Payload) {
			return fmt.Errorf("%w: payload contains a line break", ErrInvalidRequest)
		}
	case DisconnectRequest:
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidRequest, r.Kind)
	}

	return nil
}

func (r RequestMessage) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", r.Kind.String()),
		slog.String("payload", r.Payload),
		slog.Int("priority", r.Priority),
	)
}

// ResponseKind identifies the content of a ResponseMessage.
type ResponseKind uint8

const (
	// StateUpdateResponse carries a connection state transition in State.
	StateUpdateResponse ResponseKind = iota + 1
	// ServerResponseDataResponse carries an opaque processor line in Data.
	ServerResponseDataResponse
)

func (k ResponseKind) String() string {
	switch k {
	case StateUpdateResponse:
		return "state-update"
	case ServerResponseDataResponse:
		return "server-response-data"
	default:
		return "unknown"
	}
}

// ResponseMessage is an inbound message produced from processor output.
type ResponseMessage struct {
	Kind  ResponseKind
	State ConnState
	Data  string
	// Err is set only on the terminal message that reports why the connection gave up.
	Err error
}

// NewStateUpdate creates a StateUpdateResponse.
func NewStateUpdate(state ConnState) ResponseMessage {
	return ResponseMessage{Kind: StateUpdateResponse, State: state}
}

// NewResponseData creates a ServerResponseDataResponse.
func NewResponseData(data string) ResponseMessage {
	return ResponseMessage{Kind: ServerResponseDataResponse, Data: data}
}

// IsStateUpdate returns true if the message carries a state transition.
func (m ResponseMessage) IsStateUpdate() bool { return m.Kind == StateUpdateResponse }

// IsData returns true if the message carries a processor line.
func (m ResponseMessage) IsData() bool { return m.Kind == ServerResponseDataResponse }

// IsState returns true if the message is a state update to state.
func (m ResponseMessage) IsState(state ConnState) bool {
	return m.Kind == StateUpdateResponse && m.State == state
}

// IsFatal returns true if the message reports the terminal failure of the connection.
func (m ResponseMessage) IsFatal() bool { return m.Err != nil }

func (m ResponseMessage) String() string {
	switch {
	case m.Err != nil:
		return fmt.Sprintf("%s(%s): %v", m.Kind, m.State, m.Err)
	case m.Kind == StateUpdateResponse:
		return fmt.Sprintf("%s(%s)", m.Kind, m.State)
	default:
		return fmt.Sprintf("%s(%q)", m.Kind, m.Data)
	}
}

func (m ResponseMessage) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("kind", m.Kind.String())}
	if m.Kind == StateUpdateResponse {
		attrs = append(attrs, slog.String("state", m.State.String()))
	} else {
		attrs = append(attrs, slog.String("data", m.Data))
	}
	if m.Err != nil {
		attrs = append(attrs, slog.String("error", m.Err.Error()))
	}

	return slog.GroupValue(attrs...)
}

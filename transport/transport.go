// Package transport is the boundary between the lobby core and the network.
//
// A Host never calls back into its user. Connections, messages and
// disconnections are queued by the host's own goroutines and handed out in
// delivery order by Poll, which never blocks. Delivery on a connection is
// reliable and ordered.
package transport

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrUnknownHandle    = errors.New("transport: unknown handle")
	ErrClosed           = errors.New("transport: host closed")
	ErrAlreadyListening = errors.New("transport: already listening")
	ErrAddrInUse        = errors.New("transport: address in use")
	ErrUnreachable      = errors.New("transport: host unreachable")
	ErrSendBufferFull   = errors.New("transport: send buffer full")
	ErrMessageTooLarge  = errors.New("transport: message too large")
)

// MaxMessageSize is the largest message every Host delivers. It matches
// the default SCTP message limit of WebRTC data channels.
const MaxMessageSize = 64 * 1024

// Handle addresses one connection. Its value means nothing to the caller.
type Handle string

// NewHandle returns a fresh, unique handle.
func NewHandle() Handle {
	return Handle(uuid.NewString())
}

type EventKind uint8

const (
	EventConnect EventKind = iota
	EventMessage
	EventDisconnect
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventMessage:
		return "message"
	case EventDisconnect:
		return "disconnect"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Event is one thing that happened on a connection. Data is only set for
// EventMessage and is owned by the receiver.
type Event struct {
	Kind   EventKind
	Handle Handle
	Data   []byte
}

// Host is a reliable, ordered, message-oriented endpoint.
//
// Disconnect tears a connection down without producing a local
// EventDisconnect; the remote side gets one.
type Host interface {
	// Listen starts accepting connections on port.
	Listen(port int) error

	// Dial opens a connection to address:port. The EventConnect for the
	// returned handle is queued once the connection is usable.
	Dial(address string, port int) (Handle, error)

	// Poll returns every pending event without blocking.
	Poll() []Event

	Send(h Handle, data []byte) error
	Disconnect(h Handle) error
	Close() error
}

// NetError describes a failed network operation.
type NetError struct {
	Op   string // "listen", "dial", "send"
	Addr string
	Err  error
}

func (e *NetError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *NetError) Unwrap() error { return e.Err }

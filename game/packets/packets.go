package gamepackets

import "fmt"

// ProtocolVersion is sent in ConnectRequest; hosts drop peers that disagree.
const ProtocolVersion uint16 = 3

// HostPacketType identifies packets the lobby host receives from players.
type HostPacketType uint8

const (
	ConnectRequest HostPacketType = iota + 1
	KartClaim
	Ready
	NameUpdate
)

func (pt HostPacketType) String() string {
	switch pt {
	case ConnectRequest:
		return "ConnectRequest"
	case KartClaim:
		return "KartClaim"
	case Ready:
		return "Ready"
	case NameUpdate:
		return "NameUpdate"
	default:
		return fmt.Sprintf("Unknown(%d)", pt)
	}
}

// PlayerPacketType identifies packets the host sends to players. The range
// starts above the host range so a misrouted packet never decodes.
type PlayerPacketType uint8

const (
	Welcome PlayerPacketType = iota + 0x80
	SelectionOpen
	KartAccepted
	KartRejected
	Roster
	RemovePlayer
	Kick
	Start
)

func (pt PlayerPacketType) String() string {
	switch pt {
	case Welcome:
		return "Welcome"
	case SelectionOpen:
		return "SelectionOpen"
	case KartAccepted:
		return "KartAccepted"
	case KartRejected:
		return "KartRejected"
	case Roster:
		return "Roster"
	case RemovePlayer:
		return "RemovePlayer"
	case Kick:
		return "Kick"
	case Start:
		return "Start"
	default:
		return fmt.Sprintf("Unknown(%d)", pt)
	}
}

// RejectReason tells a player why its kart claim was refused.
type RejectReason uint8

const (
	RejectTaken RejectReason = iota
	RejectUnknownKart
	RejectInvalid
)

func (r RejectReason) String() string {
	switch r {
	case RejectTaken:
		return "taken"
	case RejectUnknownKart:
		return "unknown kart"
	case RejectInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("Unknown(%d)", r)
	}
}

// PlayerPacket is implemented by every host -> player packet.
type PlayerPacket interface {
	Type() PlayerPacketType
	Marshal() ([]byte, error)
}

// HostPacket is implemented by every player -> host packet.
type HostPacket interface {
	Type() HostPacketType
	Marshal() ([]byte, error)
}

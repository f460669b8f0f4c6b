package gamepackets

import (
	"fmt"
)

// PacketFactory decodes received bytes into the closed packet set.
type PacketFactory struct{}

// FromBytes decodes a packet sent by a player to the host.
func (f *PacketFactory) FromBytes(data []byte) (HostPacket, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPacket
	}

	packetType := HostPacketType(data[0])
	r := &reader{data: data, off: 1}

	var packet HostPacket
	var err error

	switch packetType {
	case ConnectRequest:
		var p ConnectRequestPacket
		err = p.unmarshal(r)
		packet = p
	case KartClaim:
		var p KartClaimPacket
		err = p.unmarshal(r)
		packet = p
	case Ready:
		packet = ReadyPacket{}
	case NameUpdate:
		var p NameUpdatePacket
		err = p.unmarshal(r)
		packet = p
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, packetType)
	}

	if err == nil {
		err = r.done()
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", packetType, err)
	}
	return packet, nil
}

// PlayerFromBytes decodes a packet sent by the host to a player.
func (f *PacketFactory) PlayerFromBytes(data []byte) (PlayerPacket, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPacket
	}

	packetType := PlayerPacketType(data[0])
	r := &reader{data: data, off: 1}

	var packet PlayerPacket
	var err error

	switch packetType {
	case Welcome:
		var p WelcomePacket
		err = p.unmarshal(r)
		packet = p
	case SelectionOpen:
		packet = SelectionOpenPacket{}
	case KartAccepted:
		var p KartAcceptedPacket
		err = p.unmarshal(r)
		packet = p
	case KartRejected:
		var p KartRejectedPacket
		err = p.unmarshal(r)
		packet = p
	case Roster:
		var p RosterPacket
		err = p.unmarshal(r)
		packet = p
	case RemovePlayer:
		var p RemovePlayerPacket
		err = p.unmarshal(r)
		packet = p
	case Kick:
		packet = KickPlayerPacket{}
	case Start:
		packet = StartPacket{}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, packetType)
	}

	if err == nil {
		err = r.done()
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", packetType, err)
	}
	return packet, nil
}

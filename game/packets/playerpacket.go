package gamepackets

import (
	"github.com/google/uuid"
)

// WelcomePacket answers a ConnectRequest with the identity the host assigned.
type WelcomePacket struct {
	ID        uint8
	SessionID uuid.UUID
	Capacity  uint8
}

func (p WelcomePacket) Type() PlayerPacketType {
	return Welcome
}

func (p WelcomePacket) Marshal() ([]byte, error) {
	// Format: [type][id][session id (16 bytes)][capacity]
	buf := make([]byte, 0, 19)
	buf = append(buf, byte(p.Type()), p.ID)
	buf = append(buf, p.SessionID[:]...)
	buf = append(buf, p.Capacity)
	return buf, nil
}

func (p *WelcomePacket) unmarshal(r *reader) (err error) {
	if p.ID, err = r.u8(); err != nil {
		return err
	}
	raw, err := r.bytes(16)
	if err != nil {
		return err
	}
	if p.SessionID, err = uuid.FromBytes(raw); err != nil {
		return err
	}
	p.Capacity, err = r.u8()
	return err
}

type KartAcceptedPacket struct {
	Slot uint8
	Kart string
}

func (p KartAcceptedPacket) Type() PlayerPacketType {
	return KartAccepted
}

func (p KartAcceptedPacket) Marshal() ([]byte, error) {
	return appendString([]byte{byte(p.Type()), p.Slot}, p.Kart)
}

func (p *KartAcceptedPacket) unmarshal(r *reader) (err error) {
	if p.Slot, err = r.u8(); err != nil {
		return err
	}
	p.Kart, err = r.string()
	return err
}

type KartRejectedPacket struct {
	Slot   uint8
	Kart   string
	Reason RejectReason
}

func (p KartRejectedPacket) Type() PlayerPacketType {
	return KartRejected
}

func (p KartRejectedPacket) Marshal() ([]byte, error) {
	buf, err := appendString([]byte{byte(p.Type()), p.Slot}, p.Kart)
	if err != nil {
		return nil, err
	}
	return append(buf, byte(p.Reason)), nil
}

func (p *KartRejectedPacket) unmarshal(r *reader) (err error) {
	if p.Slot, err = r.u8(); err != nil {
		return err
	}
	if p.Kart, err = r.string(); err != nil {
		return err
	}
	reason, err := r.u8()
	p.Reason = RejectReason(reason)
	return err
}

type RemovePlayerPacket struct {
	ID       uint8
	IsKicked bool
}

func (p RemovePlayerPacket) Type() PlayerPacketType {
	return RemovePlayer
}

func (p RemovePlayerPacket) Marshal() ([]byte, error) {
	buf := []byte{byte(p.Type()), p.ID}
	return appendBool(buf, p.IsKicked), nil
}

func (p *RemovePlayerPacket) unmarshal(r *reader) (err error) {
	if p.ID, err = r.u8(); err != nil {
		return err
	}
	p.IsKicked, err = r.bool()
	return err
}

type KickPlayerPacket struct{}

func (p KickPlayerPacket) Type() PlayerPacketType {
	return Kick
}

func (p KickPlayerPacket) Marshal() ([]byte, error) {
	return []byte{byte(p.Type())}, nil
}

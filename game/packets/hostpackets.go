package gamepackets

import "encoding/binary"

// ConnectRequestPacket opens the handshake after the transport connects.
type ConnectRequestPacket struct {
	Version  uint16
	Nickname string
}

func (p ConnectRequestPacket) Type() HostPacketType {
	return ConnectRequest
}

func (p ConnectRequestPacket) Marshal() ([]byte, error) {
	// Format: [type][version (2 bytes little-endian)][nickname]
	buf := []byte{byte(p.Type())}
	buf = binary.LittleEndian.AppendUint16(buf, p.Version)
	return appendString(buf, p.Nickname)
}

func (p *ConnectRequestPacket) unmarshal(r *reader) (err error) {
	if p.Version, err = r.u16(); err != nil {
		return err
	}
	p.Nickname, err = r.string()
	return err
}

// KartClaimPacket asks the host to reserve a kart for one local player slot.
type KartClaimPacket struct {
	Slot     uint8
	Kart     string
	KartName string // optional display override
}

func (p KartClaimPacket) Type() HostPacketType {
	return KartClaim
}

func (p KartClaimPacket) Marshal() ([]byte, error) {
	buf := []byte{byte(p.Type()), p.Slot}
	buf, err := appendString(buf, p.Kart)
	if err != nil {
		return nil, err
	}
	return appendString(buf, p.KartName)
}

func (p *KartClaimPacket) unmarshal(r *reader) (err error) {
	if p.Slot, err = r.u8(); err != nil {
		return err
	}
	if p.Kart, err = r.string(); err != nil {
		return err
	}
	p.KartName, err = r.string()
	return err
}

type ReadyPacket struct{}

func (p ReadyPacket) Type() HostPacketType {
	return Ready
}

func (p ReadyPacket) Marshal() ([]byte, error) {
	return []byte{byte(p.Type())}, nil
}

type NameUpdatePacket struct {
	Nickname string
}

func (p NameUpdatePacket) Type() HostPacketType {
	return NameUpdate
}

func (p NameUpdatePacket) Marshal() ([]byte, error) {
	return appendString([]byte{byte(p.Type())}, p.Nickname)
}

func (p *NameUpdatePacket) unmarshal(r *reader) (err error) {
	p.Nickname, err = r.string()
	return err
}

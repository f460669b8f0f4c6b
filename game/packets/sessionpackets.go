package gamepackets

import (
	"fmt"
)

// SelectionOpenPacket tells every player the lobby is closed and kart
// claims are now accepted.
type SelectionOpenPacket struct{}

func (p SelectionOpenPacket) Type() PlayerPacketType {
	return SelectionOpen
}

func (p SelectionOpenPacket) Marshal() ([]byte, error) {
	return []byte{byte(p.Type())}, nil
}

// RosterEntry is one racer in the race data broadcast.
type RosterEntry struct {
	ID       uint8
	Nickname string
	Kart     string
	KartName string
}

// RosterPacket carries the race data: track, laps and every racer.
type RosterPacket struct {
	Track   string
	Laps    uint8
	Entries []RosterEntry
}

func (p RosterPacket) Type() PlayerPacketType {
	return Roster
}

func (p RosterPacket) Marshal() ([]byte, error) {
	if len(p.Entries) > MaxRosterEntries {
		return nil, fmt.Errorf("%w: %d", ErrTooManyEntries, len(p.Entries))
	}

	// Format: [type][track][laps][count] then per entry [id][nickname][kart][kart name]
	buf := []byte{byte(p.Type())}
	buf, err := appendString(buf, p.Track)
	if err != nil {
		return nil, err
	}
	buf = append(buf, p.Laps, byte(len(p.Entries)))

	for _, e := range p.Entries {
		buf = append(buf, e.ID)
		for _, s := range []string{e.Nickname, e.Kart, e.KartName} {
			if buf, err = appendString(buf, s); err != nil {
				return nil, fmt.Errorf("roster entry %d: %w", e.ID, err)
			}
		}
	}
	return buf, nil
}

func (p *RosterPacket) unmarshal(r *reader) (err error) {
	if p.Track, err = r.string(); err != nil {
		return err
	}
	if p.Laps, err = r.u8(); err != nil {
		return err
	}
	count, err := r.u8()
	if err != nil {
		return err
	}

	p.Entries = make([]RosterEntry, 0, count)
	for i := 0; i < int(count); i++ {
		var e RosterEntry
		if e.ID, err = r.u8(); err != nil {
			return err
		}
		if e.Nickname, err = r.string(); err != nil {
			return err
		}
		if e.Kart, err = r.string(); err != nil {
			return err
		}
		if e.KartName, err = r.string(); err != nil {
			return err
		}
		p.Entries = append(p.Entries, e)
	}
	return nil
}

// StartPacket ends the ready-set-go barrier on every player.
type StartPacket struct{}

func (p StartPacket) Type() PlayerPacketType {
	return Start
}

func (p StartPacket) Marshal() ([]byte, error) {
	return []byte{byte(p.Type())}, nil
}

package game

import (
	"strconv"
	"unicode/utf8"

	gamepackets "kartlobby/game/packets"
	"kartlobby/transport"
)

// Identity names a participant within one session.
type Identity uint8

// ServerIdentity is the host's own identity. Remote peers are numbered
// from zero.
const ServerIdentity Identity = 0xFF

// MaxPeers is the number of identities available to remote peers.
const MaxPeers = int(ServerIdentity)

// MaxCapacity is the largest lobby a host runs. It leaves room for the
// host's own roster entry.
const MaxCapacity = MaxPeers - 1

func (id Identity) String() string {
	if id == ServerIdentity {
		return "server"
	}
	return strconv.Itoa(int(id))
}

// Selection is a claimed kart. An empty Vehicle means nothing is claimed.
type Selection struct {
	Vehicle     string `json:"vehicle,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

func (s Selection) IsSet() bool { return s.Vehicle != "" }

// clampName cuts s to gamepackets.MaxNameLength bytes without splitting a
// UTF-8 sequence.
func clampName(s string) string {
	if len(s) <= gamepackets.MaxNameLength {
		return s
	}
	n := gamepackets.MaxNameLength
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Player is one participant as seen by this process.
type Player struct {
	ID        Identity
	Nickname  string
	Selection Selection
	Handle    transport.Handle // empty for local and roster-only entries
	Local     bool             // this process
	Ready     bool             // ready signal seen while in CharacterSelect
}

// players is the peer registry. Iteration follows join order.
type players struct {
	byID     map[Identity]*Player
	byHandle map[transport.Handle]Identity
	order    []Identity
}

func newPlayers() *players {
	return &players{
		byID:     make(map[Identity]*Player),
		byHandle: make(map[transport.Handle]Identity),
	}
}

// assign allocates the smallest identity not held by a present peer and
// binds it to handle.
func (r *players) assign(h transport.Handle) (*Player, error) {
	if _, bound := r.byHandle[h]; bound {
		return nil, ErrHandleBound
	}
	for i := 0; i < MaxPeers; i++ {
		id := Identity(i)
		if _, taken := r.byID[id]; taken {
			continue
		}
		p := &Player{ID: id, Handle: h}
		r.insert(p)
		return p, nil
	}
	return nil, ErrLobbyFull
}

// add inserts a record with a known identity. An identity already bound
// to a different handle is refused rather than overwritten.
func (r *players) add(p *Player) error {
	if existing, ok := r.byID[p.ID]; ok {
		if existing.Handle != p.Handle {
			return ErrIdentityBound
		}
		*existing = *p
		return nil
	}
	if p.Handle != "" {
		if _, bound := r.byHandle[p.Handle]; bound {
			return ErrHandleBound
		}
	}
	r.insert(p)
	return nil
}

func (r *players) insert(p *Player) {
	r.byID[p.ID] = p
	if p.Handle != "" {
		r.byHandle[p.Handle] = p.ID
	}
	r.order = append(r.order, p.ID)
}

func (r *players) get(id Identity) (*Player, bool) {
	p, ok := r.byID[id]
	return p, ok
}

func (r *players) lookup(h transport.Handle) (*Player, bool) {
	id, ok := r.byHandle[h]
	if !ok {
		return nil, false
	}
	return r.byID[id], true
}

// remove deletes id's record. Removing an absent identity is a no-op.
func (r *players) remove(id Identity) (*Player, bool) {
	p, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	if p.Handle != "" {
		delete(r.byHandle, p.Handle)
	}
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return p, true
}

// holder returns the identity that currently holds vehicle.
func (r *players) holder(vehicle string) (Identity, bool) {
	for _, id := range r.order {
		if r.byID[id].Selection.Vehicle == vehicle {
			return id, true
		}
	}
	return 0, false
}

// claim records sel for id unless another identity already holds the
// vehicle.
func (r *players) claim(id Identity, sel Selection) error {
	p, ok := r.byID[id]
	if !ok {
		return ErrUnknownPeer
	}
	if !sel.IsSet() {
		return ErrInvalidSelection
	}
	if owner, taken := r.holder(sel.Vehicle); taken && owner != id {
		return ErrVehicleTaken
	}
	p.Selection = sel
	return nil
}

// list returns every record in join order.
func (r *players) list() []*Player {
	out := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// remotes returns the records that belong to connected peers.
func (r *players) remotes() []*Player {
	out := make([]*Player, 0, len(r.byHandle))
	for _, id := range r.order {
		if p := r.byID[id]; p.Handle != "" {
			out = append(out, p)
		}
	}
	return out
}

// count is the number of racers other than the host entry.
func (r *players) count() int {
	n := len(r.byID)
	if _, ok := r.byID[ServerIdentity]; ok {
		n--
	}
	return n
}

func (r *players) clear() {
	r.byID = make(map[Identity]*Player)
	r.byHandle = make(map[transport.Handle]Identity)
	r.order = nil
}

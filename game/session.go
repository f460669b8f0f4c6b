package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	gamepackets "kartlobby/game/packets"
	"kartlobby/transport"
)

// MaxLocalPlayers is the number of player slots one process can fill.
const MaxLocalPlayers = 1

// Catalog reports which karts exist. A nil Catalog accepts every kart.
type Catalog interface {
	Contains(kart string) bool
}

// Options are the values a Session consumes as opaque parameters.
type Options struct {
	Nickname string
	Address  string // server address, client only
	Port     int
	Capacity int // peers that close the lobby on their own; 0 means MaxCapacity
	Track    string
	Laps     int
	Catalog  Catalog
	Metrics  *Metrics
	Logger   zerolog.Logger
}

// RaceInfo is the race data distributed with the roster.
type RaceInfo struct {
	Track string `json:"track"`
	Laps  int    `json:"laps"`
}

// Session is the lobby state machine. It is owned by a single goroutine:
// nothing in it is safe for concurrent use, and all network input arrives
// through Update.
type Session struct {
	opts    Options
	host    transport.Host
	logger  zerolog.Logger
	metrics *Metrics
	factory gamepackets.PacketFactory

	id       uuid.UUID
	role     roleState
	phase    Phase
	localID  Identity
	hasID    bool
	nickname string
	local    [MaxLocalPlayers]Selection
	race     RaceInfo
	players  *players

	barrier *Barrier
	armedAt time.Duration

	started bool
	frame   uint64
	clock   time.Duration
	err     error
}

// roleState is the role-specific half of a session: *serverRole or
// *clientRole.
type roleState interface {
	kind() Role
}

// NewSession builds an idle session on top of host. Call SetRole and then
// BeginNetworking before driving it with Update, and Close when done.
func NewSession(host transport.Host, opts Options) *Session {
	if opts.Capacity <= 0 || opts.Capacity > MaxCapacity {
		opts.Capacity = MaxCapacity
	}
	opts.Nickname = clampName(opts.Nickname)
	return &Session{
		opts:     opts,
		host:     host,
		logger:   opts.Logger.With().Str("component", "lobby").Logger(),
		metrics:  opts.Metrics,
		id:       uuid.New(),
		nickname: opts.Nickname,
		race:     RaceInfo{Track: opts.Track, Laps: opts.Laps},
		players:  newPlayers(),
	}
}

// SetRole picks server or client behaviour. It cannot change once
// networking has started.
func (s *Session) SetRole(role Role) error {
	if s.started {
		return ErrRoleLocked
	}

	s.players.clear()
	s.hasID = false
	switch role {
	case RoleServer:
		s.role = &serverRole{pending: make(map[transport.Handle]struct{})}
		s.localID, s.hasID = ServerIdentity, true
		s.players.add(&Player{
			ID:        ServerIdentity,
			Nickname:  s.nickname,
			Selection: s.local[0],
			Local:     true,
		})
	case RoleClient:
		s.role = &clientRole{}
	default:
		s.role = nil
	}
	s.logger = s.opts.Logger.With().Str("component", "lobby").Stringer("role", role).Logger()
	return nil
}

func (s *Session) Role() Role {
	if s.role == nil {
		return RoleNone
	}
	return s.role.kind()
}

func (s *Session) Phase() Phase { return s.phase }

// SetPhase forces the phase without checking the transition graph. Any
// armed barrier is discarded when the phase changes.
func (s *Session) SetPhase(p Phase) {
	if p == s.phase {
		return
	}
	s.logger.Warn().Stringer("from", s.phase).Stringer("to", p).Msg("forced phase change")
	s.metrics.transition(s.phase, p)
	s.phase = p
	s.barrier = nil
}

// LocalIdentity is this process's identity. It is meaningless until
// Joined reports true.
func (s *Session) LocalIdentity() Identity { return s.localID }

// Joined reports whether this process has an identity in the session.
func (s *Session) Joined() bool { return s.hasID }

func (s *Session) SessionID() uuid.UUID { return s.id }

// PeerCount is the number of racers known to this process, not counting
// the host's own entry.
func (s *Session) PeerCount() int { return s.players.count() }

func (s *Session) PeerDisplayName(id Identity) (string, bool) {
	p, ok := s.players.get(id)
	if !ok {
		return "", false
	}
	return p.Nickname, true
}

// Selection returns the kart held by id.
func (s *Session) Selection(id Identity) (Selection, bool) {
	p, ok := s.players.get(id)
	if !ok {
		return Selection{}, false
	}
	return p.Selection, true
}

func (s *Session) Race() RaceInfo { return s.race }

// SetRace changes the track and lap count the host announces with the
// roster. It has no effect once the roster has gone out.
func (s *Session) SetRace(race RaceInfo) error {
	if _, ok := s.role.(*serverRole); !ok {
		return ErrWrongRole
	}
	switch s.phase {
	case PhaseIdle, PhaseAcceptingConnections, PhaseKartInfoBarrier:
	default:
		return ErrWrongPhase
	}
	if race.Track == "" || len(race.Track) > 255 || race.Laps < 1 || race.Laps > 255 {
		return ErrInvalidRace
	}
	s.race = race
	s.logger.Info().Str("track", race.Track).Int("laps", race.Laps).Msg("race settings changed")
	return nil
}

// Err is the terminal error of an aborted session.
func (s *Session) Err() error { return s.err }

// SetPlayerName changes this process's display name and tells the host.
func (s *Session) SetPlayerName(name string) error {
	name = clampName(name)
	s.nickname = name
	if p, ok := s.players.get(s.localID); ok && s.hasID {
		p.Nickname = name
	}

	switch r := s.role.(type) {
	case *serverRole:
		if s.phase == PhaseCharacterSelect {
			r.broadcastRoster(s)
		}
	case *clientRole:
		if r.welcomed {
			s.send(r.server, gamepackets.NameUpdatePacket{Nickname: name})
		}
	}
	return nil
}

// SetLocalVehicleSelection claims a kart for one of this process's player
// slots. On a client this submits the claim as soon as the host accepts
// claims; after a rejection, calling it again is how a client retries.
func (s *Session) SetLocalVehicleSelection(slot int, vehicle, displayName string) error {
	if slot < 0 || slot >= MaxLocalPlayers {
		return ErrInvalidSlot
	}
	sel := Selection{Vehicle: vehicle, DisplayName: clampName(displayName)}

	switch r := s.role.(type) {
	case *serverRole:
		return r.claimLocal(s, slot, sel)
	case *clientRole:
		return r.claimLocal(s, slot, sel)
	default:
		s.local[slot] = sel
		return nil
	}
}

// SetVehicleSelection assigns a kart to identity id. For the local
// identity it is SetLocalVehicleSelection; only the host may assign karts
// to other peers.
func (s *Session) SetVehicleSelection(id Identity, slot int, vehicle, displayName string) error {
	if s.hasID && id == s.localID {
		return s.SetLocalVehicleSelection(slot, vehicle, displayName)
	}
	r, ok := s.role.(*serverRole)
	if !ok {
		return ErrWrongRole
	}
	return r.assignVehicle(s, id, slot, Selection{Vehicle: vehicle, DisplayName: displayName})
}

// BeginNetworking starts listening (server) or connecting (client). A
// failure leaves the session unstarted; retrying is up to the caller.
func (s *Session) BeginNetworking() error {
	if s.started {
		return ErrAlreadyStarted
	}

	var err error
	switch r := s.role.(type) {
	case *serverRole:
		err = r.begin(s)
	case *clientRole:
		err = r.begin(s)
	default:
		err = ErrNoRole
	}
	if err != nil {
		return err
	}
	s.started = true
	return nil
}

// Update drains the transport and runs every handler to completion. It
// returns the session's terminal error once it has one.
func (s *Session) Update(dt time.Duration) error {
	if s.err != nil {
		return s.err
	}
	if !s.started {
		return nil
	}
	s.frame++
	s.clock += dt

	switch r := s.role.(type) {
	case *serverRole:
		for _, ev := range s.host.Poll() {
			r.handle(s, ev)
		}
	case *clientRole:
		r.tick(s)
		for _, ev := range s.host.Poll() {
			if s.err != nil {
				break
			}
			r.handle(s, ev)
		}
	default:
		return ErrNoRole
	}
	return s.err
}

// RequestCharacterSelectPhase closes the lobby and opens kart selection.
func (s *Session) RequestCharacterSelectPhase() error {
	switch r := s.role.(type) {
	case *serverRole:
		return r.closeLobby(s)
	case *clientRole:
		return ErrWrongRole
	default:
		return ErrNoRole
	}
}

// RequestReadySetGoPhase moves from character select to the ready-set-go
// barrier. The host waits for every peer; a client signals it is ready.
func (s *Session) RequestReadySetGoPhase() error {
	switch r := s.role.(type) {
	case *serverRole:
		return r.readySetGo(s)
	case *clientRole:
		return r.readySetGo(s)
	default:
		return ErrNoRole
	}
}

// RequestRaceDataSync re-sends the roster (host) or starts waiting for it
// (client).
func (s *Session) RequestRaceDataSync() error {
	switch r := s.role.(type) {
	case *serverRole:
		return r.raceDataSync(s)
	case *clientRole:
		return r.raceDataSync(s)
	default:
		return ErrNoRole
	}
}

// Kick removes a peer from the session. Host only.
func (s *Session) Kick(id Identity) error {
	r, ok := s.role.(*serverRole)
	if !ok {
		return ErrWrongRole
	}
	return r.kick(s, id)
}

// Close tears the session down and releases the transport.
func (s *Session) Close() error {
	if s.err == nil {
		s.err = ErrClosed
	}
	if s.phase != PhaseAborted {
		s.transition(PhaseAborted)
	}
	s.barrier = nil
	s.players.clear()
	s.metrics.setPeers(0)
	return s.host.Close()
}

// transition moves along the phase graph. Illegal moves are logged and
// refused.
func (s *Session) transition(to Phase) bool {
	from := s.phase
	if !canTransition(from, to) {
		s.logger.Error().Stringer("from", from).Stringer("to", to).Msg("illegal phase transition")
		return false
	}
	s.phase = to
	s.metrics.transition(from, to)
	s.logger.Info().Stringer("from", from).Stringer("to", to).Msg("phase")
	return true
}

// fail ends the session with err.
func (s *Session) fail(err error) {
	s.err = err
	s.barrier = nil
	s.logger.Error().Err(err).Stringer("phase", s.phase).Msg("session aborted")
	s.transition(PhaseAborted)
}

func (s *Session) arm(target int) {
	s.barrier = NewBarrier(target)
	s.armedAt = s.clock
	s.logger.Debug().Int("target", target).Stringer("phase", s.phase).Msg("barrier armed")
}

// recordClaim validates sel and stores it for id.
func (s *Session) recordClaim(id Identity, slot int, sel Selection) error {
	if slot < 0 || slot >= MaxLocalPlayers {
		return ErrInvalidSlot
	}
	if !sel.IsSet() || len(sel.Vehicle) > gamepackets.MaxNameLength {
		return ErrInvalidSelection
	}
	sel.DisplayName = clampName(sel.DisplayName)
	if s.opts.Catalog != nil && !s.opts.Catalog.Contains(sel.Vehicle) {
		return ErrUnknownVehicle
	}
	return s.players.claim(id, sel)
}

type marshaler interface {
	Marshal() ([]byte, error)
}

func (s *Session) send(h transport.Handle, packet marshaler) {
	data, err := packet.Marshal()
	if err != nil {
		s.logger.Error().Err(err).Msgf("failed to marshal %T", packet)
		return
	}
	if err := s.host.Send(h, data); err != nil {
		s.logger.Warn().Err(err).Str("handle", string(h)).Msgf("failed to send %T", packet)
	}
}

// violation drops a malformed or out-of-phase message.
func (s *Session) violation(h transport.Handle, reason string, err error) {
	s.metrics.violation(reason)
	s.logger.Warn().
		Err(err).
		Str("handle", string(h)).
		Str("reason", reason).
		Stringer("phase", s.phase).
		Msg("protocol violation, message dropped")
}

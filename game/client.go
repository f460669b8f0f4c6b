package game

import (
	"errors"
	"fmt"

	gamepackets "kartlobby/game/packets"
	"kartlobby/transport"
)

// clientRole is the joining half of a session. It follows the host's lead
// and only ever talks to the one connection it dialled.
type clientRole struct {
	server    transport.Handle
	connected bool
	welcomed  bool

	// open is set once the host accepts kart claims.
	open bool
	// submitted is set while a claim awaits the host's answer.
	submitted bool

	// confirmedFrame is the frame in which the claim was accepted.
	confirmedFrame uint64
}

func (r *clientRole) kind() Role { return RoleClient }

func (r *clientRole) begin(s *Session) error {
	h, err := s.host.Dial(s.opts.Address, s.opts.Port)
	if err != nil {
		return fmt.Errorf("connect to %s:%d: %w", s.opts.Address, s.opts.Port, err)
	}
	r.server = h
	s.logger.Info().Str("address", s.opts.Address).Int("port", s.opts.Port).Msg("connecting to host")
	return nil
}

// tick runs at the start of every frame, before any input.
func (r *clientRole) tick(s *Session) {
	if s.phase == PhaseCharacterConfirmed && s.frame > r.confirmedFrame {
		s.transition(PhaseWaitingForRaceData)
	}
}

func (r *clientRole) handle(s *Session, ev transport.Event) {
	if ev.Handle != r.server {
		s.violation(ev.Handle, "unknown_connection", fmt.Errorf("%s from a connection the client did not open", ev.Kind))
		return
	}

	switch ev.Kind {
	case transport.EventConnect:
		r.connected = true
		s.send(r.server, gamepackets.ConnectRequestPacket{
			Version:  gamepackets.ProtocolVersion,
			Nickname: s.nickname,
		})
	case transport.EventMessage:
		r.onMessage(s, ev.Data)
	case transport.EventDisconnect:
		s.fail(ErrServerLost)
	}
}

func (r *clientRole) onMessage(s *Session, data []byte) {
	packet, err := s.factory.PlayerFromBytes(data)
	if err != nil {
		s.violation(r.server, "malformed", err)
		return
	}

	if _, ok := packet.(gamepackets.WelcomePacket); !ok && !r.welcomed {
		if _, kicked := packet.(gamepackets.KickPlayerPacket); !kicked {
			s.violation(r.server, "unregistered", fmt.Errorf("%s before welcome", packet.Type()))
			return
		}
	}

	switch pk := packet.(type) {
	case gamepackets.WelcomePacket:
		r.onWelcome(s, pk)
	case gamepackets.SelectionOpenPacket:
		r.open = true
		r.submit(s)
	case gamepackets.KartAcceptedPacket:
		r.onKartAccepted(s, pk)
	case gamepackets.KartRejectedPacket:
		r.onKartRejected(s, pk)
	case gamepackets.RosterPacket:
		r.onRoster(s, pk)
	case gamepackets.RemovePlayerPacket:
		r.onRemovePlayer(s, pk)
	case gamepackets.KickPlayerPacket:
		s.fail(ErrKicked)
	case gamepackets.StartPacket:
		if s.phase != PhaseReadySetGoBarrier {
			s.violation(r.server, "out_of_phase", fmt.Errorf("%s in %s", pk.Type(), s.phase))
			return
		}
		s.transition(PhaseRacing)
	default:
		s.violation(r.server, "unexpected", fmt.Errorf("unhandled %s", packet.Type()))
	}
}

func (r *clientRole) onWelcome(s *Session, pk gamepackets.WelcomePacket) {
	id := Identity(pk.ID)
	if r.welcomed {
		s.violation(r.server, "duplicate_handshake", ErrHandleBound)
		return
	}
	if id == ServerIdentity {
		s.violation(r.server, "malformed", fmt.Errorf("host assigned reserved identity %s", id))
		return
	}

	r.welcomed = true
	s.localID, s.hasID = id, true
	s.id = pk.SessionID
	s.players.add(&Player{ID: id, Nickname: s.nickname, Local: true})
	s.logger.Info().Stringer("id", id).Str("session", s.id.String()).Msg("joined lobby")
	r.submit(s)
}

// claimLocal stores the local kart and submits it when the host is ready
// for claims. A confirmed kart cannot be changed.
func (r *clientRole) claimLocal(s *Session, slot int, sel Selection) error {
	if !sel.IsSet() {
		return ErrInvalidSelection
	}
	if s.opts.Catalog != nil && !s.opts.Catalog.Contains(sel.Vehicle) {
		return ErrUnknownVehicle
	}
	if s.phase != PhaseIdle && s.phase != PhaseCharacterRejected {
		return ErrWrongPhase
	}
	if r.submitted {
		return ErrWrongPhase
	}
	s.local[slot] = sel
	r.submit(s)
	return nil
}

// submit sends the stored claim once the host has welcomed us and opened
// selection.
func (r *clientRole) submit(s *Session) {
	if !r.welcomed || !r.open || r.submitted {
		return
	}
	if s.phase != PhaseIdle && s.phase != PhaseCharacterRejected {
		return
	}
	sel := s.local[0]
	if !sel.IsSet() {
		return
	}
	s.send(r.server, gamepackets.KartClaimPacket{
		Slot:     0,
		Kart:     sel.Vehicle,
		KartName: sel.DisplayName,
	})
	r.submitted = true
}

func (r *clientRole) onKartAccepted(s *Session, pk gamepackets.KartAcceptedPacket) {
	if s.phase != PhaseIdle && s.phase != PhaseCharacterRejected {
		s.violation(r.server, "out_of_phase", fmt.Errorf("%s in %s", pk.Type(), s.phase))
		return
	}
	slot := int(pk.Slot)
	if slot >= MaxLocalPlayers {
		s.violation(r.server, "malformed", fmt.Errorf("%w: %d", ErrInvalidSlot, slot))
		return
	}

	// The host may confirm a kart we never asked for.
	sel := s.local[slot]
	if sel.Vehicle != pk.Kart {
		sel = Selection{Vehicle: pk.Kart}
		s.local[slot] = sel
	}
	if self, ok := s.players.get(s.localID); ok {
		self.Selection = sel
	}

	r.submitted = false
	if s.transition(PhaseCharacterConfirmed) {
		r.confirmedFrame = s.frame
		s.logger.Info().Str("kart", pk.Kart).Msg("kart confirmed")
	}
}

func (r *clientRole) onKartRejected(s *Session, pk gamepackets.KartRejectedPacket) {
	if !r.submitted {
		s.violation(r.server, "unsolicited", errors.New("rejection without a pending claim"))
		return
	}
	r.submitted = false
	s.logger.Warn().Str("kart", pk.Kart).Stringer("reason", pk.Reason).Msg("kart rejected")
	s.transition(PhaseCharacterRejected)
}

func (r *clientRole) onRoster(s *Session, pk gamepackets.RosterPacket) {
	switch s.phase {
	case PhaseCharacterConfirmed, PhaseWaitingForRaceData:
		r.applyRoster(s, pk)
		if s.phase == PhaseCharacterConfirmed {
			s.transition(PhaseWaitingForRaceData)
		}
		s.transition(PhaseCharacterSelect)
	case PhaseCharacterSelect, PhaseReadySetGoBarrier:
		r.applyRoster(s, pk)
	default:
		s.violation(r.server, "out_of_phase", fmt.Errorf("%s in %s", pk.Type(), s.phase))
	}
}

// applyRoster replaces every non-local record with the host's view.
func (r *clientRole) applyRoster(s *Session, pk gamepackets.RosterPacket) {
	s.race = RaceInfo{Track: pk.Track, Laps: int(pk.Laps)}

	self, _ := s.players.get(s.localID)
	s.players.clear()
	if self != nil {
		s.players.add(self)
	}

	for _, e := range pk.Entries {
		id := Identity(e.ID)
		sel := Selection{Vehicle: e.Kart, DisplayName: e.KartName}
		if id == s.localID && self != nil {
			self.Selection = sel
			continue
		}
		if err := s.players.add(&Player{ID: id, Nickname: e.Nickname, Selection: sel}); err != nil {
			s.violation(r.server, "malformed", fmt.Errorf("roster entry %s: %w", id, err))
		}
	}
}

func (r *clientRole) onRemovePlayer(s *Session, pk gamepackets.RemovePlayerPacket) {
	id := Identity(pk.ID)
	if id == s.localID {
		s.violation(r.server, "unexpected", errors.New("host removed the local player"))
		return
	}
	if _, ok := s.players.remove(id); ok {
		s.logger.Info().Stringer("id", id).Bool("kicked", pk.IsKicked).Msg("peer left")
	}
}

func (r *clientRole) readySetGo(s *Session) error {
	if s.phase != PhaseCharacterSelect {
		return ErrWrongPhase
	}
	s.transition(PhaseReadySetGoBarrier)
	s.send(r.server, gamepackets.ReadyPacket{})
	return nil
}

func (r *clientRole) raceDataSync(s *Session) error {
	if s.phase != PhaseCharacterConfirmed {
		return ErrWrongPhase
	}
	s.transition(PhaseWaitingForRaceData)
	return nil
}

package game

import (
	"errors"
	"fmt"

	gamepackets "kartlobby/game/packets"
	"kartlobby/transport"
)

// serverRole is the host half of a session. It owns the barriers and is
// the only authority on identities and kart claims.
type serverRole struct {
	// pending holds connections that have not completed the handshake.
	pending map[transport.Handle]struct{}
}

func (r *serverRole) kind() Role { return RoleServer }

func (r *serverRole) begin(s *Session) error {
	if err := s.host.Listen(s.opts.Port); err != nil {
		return fmt.Errorf("listen on port %d: %w", s.opts.Port, err)
	}
	s.transition(PhaseAcceptingConnections)
	s.logger.Info().
		Int("port", s.opts.Port).
		Int("capacity", s.opts.Capacity).
		Str("session", s.id.String()).
		Msg("lobby open")
	return nil
}

func (r *serverRole) handle(s *Session, ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnect:
		r.onConnect(s, ev.Handle)
	case transport.EventMessage:
		r.onMessage(s, ev.Handle, ev.Data)
	case transport.EventDisconnect:
		r.onDisconnect(s, ev.Handle)
	}
}

func (r *serverRole) onConnect(s *Session, h transport.Handle) {
	if s.phase != PhaseAcceptingConnections || s.players.count() >= s.opts.Capacity {
		s.logger.Info().Str("handle", string(h)).Stringer("phase", s.phase).Msg("refusing connection, lobby closed")
		s.host.Disconnect(h)
		return
	}
	r.pending[h] = struct{}{}
	s.logger.Debug().Str("handle", string(h)).Msg("connection awaiting handshake")
}

func (r *serverRole) onMessage(s *Session, h transport.Handle, data []byte) {
	packet, err := s.factory.FromBytes(data)
	if err != nil {
		s.violation(h, "malformed", err)
		return
	}

	if req, ok := packet.(gamepackets.ConnectRequestPacket); ok {
		r.onConnectRequest(s, h, req)
		return
	}

	p, ok := s.players.lookup(h)
	if !ok {
		s.violation(h, "unregistered", fmt.Errorf("%s before handshake", packet.Type()))
		return
	}

	switch pk := packet.(type) {
	case gamepackets.KartClaimPacket:
		r.onKartClaim(s, p, pk)
	case gamepackets.ReadyPacket:
		r.onReady(s, p)
	case gamepackets.NameUpdatePacket:
		r.onNameUpdate(s, p, pk)
	default:
		s.violation(h, "unexpected", fmt.Errorf("unhandled %s", packet.Type()))
	}
}

func (r *serverRole) onConnectRequest(s *Session, h transport.Handle, req gamepackets.ConnectRequestPacket) {
	if _, bound := s.players.lookup(h); bound {
		s.violation(h, "duplicate_handshake", ErrHandleBound)
		return
	}
	if _, ok := r.pending[h]; !ok {
		s.violation(h, "unknown_connection", errors.New("handshake without a connection"))
		return
	}
	delete(r.pending, h)

	if req.Version != gamepackets.ProtocolVersion {
		s.logger.Warn().
			Str("handle", string(h)).
			Uint16("version", req.Version).
			Uint16("want", gamepackets.ProtocolVersion).
			Msg("protocol version mismatch, dropping connection")
		s.host.Disconnect(h)
		return
	}
	if s.phase != PhaseAcceptingConnections || s.players.count() >= s.opts.Capacity {
		s.logger.Info().Str("handle", string(h)).Msg("lobby closed during handshake, dropping connection")
		s.host.Disconnect(h)
		return
	}

	p, err := s.players.assign(h)
	if err != nil {
		s.logger.Warn().Err(err).Str("handle", string(h)).Msg("cannot assign identity")
		s.host.Disconnect(h)
		return
	}
	p.Nickname = clampName(req.Nickname)
	s.metrics.setPeers(s.players.count())

	s.send(h, gamepackets.WelcomePacket{
		ID:        uint8(p.ID),
		SessionID: s.id,
		Capacity:  uint8(s.opts.Capacity),
	})
	s.logger.Info().
		Stringer("id", p.ID).
		Str("nickname", p.Nickname).
		Int("peers", s.players.count()).
		Msg("peer joined")

	if s.players.count() >= s.opts.Capacity {
		r.openSelection(s)
	}
}

// closeLobby stops accepting peers ahead of capacity.
func (r *serverRole) closeLobby(s *Session) error {
	if s.phase != PhaseAcceptingConnections {
		return ErrWrongPhase
	}
	r.openSelection(s)
	return nil
}

// openSelection closes the lobby and waits for one kart claim per peer.
func (r *serverRole) openSelection(s *Session) {
	if !s.transition(PhaseKartInfoBarrier) {
		return
	}
	for h := range r.pending {
		s.host.Disconnect(h)
		delete(r.pending, h)
	}

	r.broadcast(s, gamepackets.SelectionOpenPacket{})
	s.arm(len(s.players.remotes()))
	if s.barrier.Settle() {
		r.barrierDone(s)
	}
}

func (r *serverRole) onKartClaim(s *Session, p *Player, pk gamepackets.KartClaimPacket) {
	if s.phase != PhaseKartInfoBarrier && s.phase != PhaseCharacterSelect {
		s.violation(p.Handle, "out_of_phase", fmt.Errorf("%s in %s", pk.Type(), s.phase))
		return
	}

	sel := Selection{Vehicle: pk.Kart, DisplayName: pk.KartName}
	if err := s.recordClaim(p.ID, int(pk.Slot), sel); err != nil {
		reason := rejectReason(err)
		s.metrics.rejection(reason.String())
		s.logger.Info().
			Stringer("id", p.ID).
			Str("kart", pk.Kart).
			Stringer("reason", reason).
			Msg("kart claim rejected")
		s.send(p.Handle, gamepackets.KartRejectedPacket{Slot: pk.Slot, Kart: pk.Kart, Reason: reason})
		return
	}

	s.logger.Info().Stringer("id", p.ID).Str("kart", pk.Kart).Msg("kart claimed")
	s.send(p.Handle, gamepackets.KartAcceptedPacket{Slot: pk.Slot, Kart: pk.Kart})
	r.afterClaim(s, p.ID)
}

// afterClaim counts id towards the kart barrier, or refreshes everyone's
// roster once selection is already over.
func (r *serverRole) afterClaim(s *Session, id Identity) {
	switch s.phase {
	case PhaseKartInfoBarrier:
		if id != ServerIdentity {
			r.signal(s, id)
		}
	case PhaseCharacterSelect:
		r.broadcastRoster(s)
	}
}

func rejectReason(err error) gamepackets.RejectReason {
	switch {
	case errors.Is(err, ErrVehicleTaken):
		return gamepackets.RejectTaken
	case errors.Is(err, ErrUnknownVehicle):
		return gamepackets.RejectUnknownKart
	default:
		return gamepackets.RejectInvalid
	}
}

// claimLocal records the host's own kart.
func (r *serverRole) claimLocal(s *Session, slot int, sel Selection) error {
	switch s.phase {
	case PhaseIdle, PhaseAcceptingConnections, PhaseKartInfoBarrier, PhaseCharacterSelect:
	default:
		return ErrWrongPhase
	}
	if err := s.recordClaim(ServerIdentity, slot, sel); err != nil {
		return err
	}
	s.local[slot] = sel
	r.afterClaim(s, ServerIdentity)
	return nil
}

// assignVehicle forces a kart onto a remote peer as if it had claimed it.
func (r *serverRole) assignVehicle(s *Session, id Identity, slot int, sel Selection) error {
	if s.phase != PhaseKartInfoBarrier && s.phase != PhaseCharacterSelect {
		return ErrWrongPhase
	}
	p, ok := s.players.get(id)
	if !ok || p.Handle == "" {
		return ErrUnknownPeer
	}
	if err := s.recordClaim(id, slot, sel); err != nil {
		return err
	}
	s.send(p.Handle, gamepackets.KartAcceptedPacket{Slot: uint8(slot), Kart: sel.Vehicle})
	r.afterClaim(s, id)
	return nil
}

func (r *serverRole) onReady(s *Session, p *Player) {
	switch s.phase {
	case PhaseCharacterSelect:
		p.Ready = true
	case PhaseReadySetGoBarrier:
		p.Ready = true
		r.signal(s, p.ID)
	default:
		s.violation(p.Handle, "out_of_phase", fmt.Errorf("ready in %s", s.phase))
	}
}

func (r *serverRole) onNameUpdate(s *Session, p *Player, pk gamepackets.NameUpdatePacket) {
	if s.phase == PhaseRacing {
		s.violation(p.Handle, "out_of_phase", fmt.Errorf("%s in %s", pk.Type(), s.phase))
		return
	}
	p.Nickname = clampName(pk.Nickname)
	if s.phase == PhaseCharacterSelect || s.phase == PhaseReadySetGoBarrier {
		r.broadcastRoster(s)
	}
}

func (r *serverRole) onDisconnect(s *Session, h transport.Handle) {
	if _, ok := r.pending[h]; ok {
		delete(r.pending, h)
		return
	}
	p, ok := s.players.lookup(h)
	if !ok {
		return
	}
	s.logger.Info().Stringer("id", p.ID).Str("nickname", p.Nickname).Msg("peer left")
	r.removePeer(s, p.ID, false)
}

// removePeer forgets a peer everywhere. Removing an unknown identity does
// nothing.
func (r *serverRole) removePeer(s *Session, id Identity, kicked bool) {
	if _, ok := s.players.remove(id); !ok {
		return
	}
	s.metrics.setPeers(s.players.count())
	r.broadcast(s, gamepackets.RemovePlayerPacket{ID: uint8(id), IsKicked: kicked})

	if s.barrier != nil && s.barrier.Forget(id) {
		r.barrierDone(s)
	}
}

func (r *serverRole) kick(s *Session, id Identity) error {
	p, ok := s.players.get(id)
	if !ok || p.Handle == "" {
		return ErrUnknownPeer
	}
	s.send(p.Handle, gamepackets.KickPlayerPacket{})
	s.host.Disconnect(p.Handle)
	s.logger.Info().Stringer("id", id).Str("nickname", p.Nickname).Msg("peer kicked")
	r.removePeer(s, id, true)
	return nil
}

func (r *serverRole) readySetGo(s *Session) error {
	if s.phase != PhaseCharacterSelect {
		return ErrWrongPhase
	}
	s.transition(PhaseReadySetGoBarrier)
	s.arm(len(s.players.remotes()))

	// Ready signals that arrived during character select still count.
	for _, p := range s.players.remotes() {
		if p.Ready {
			r.signal(s, p.ID)
		}
	}
	if s.barrier != nil && s.barrier.Settle() {
		r.barrierDone(s)
	}
	return nil
}

func (r *serverRole) raceDataSync(s *Session) error {
	if s.phase != PhaseCharacterSelect && s.phase != PhaseReadySetGoBarrier {
		return ErrWrongPhase
	}
	r.broadcastRoster(s)
	return nil
}

func (r *serverRole) signal(s *Session, id Identity) {
	if s.barrier != nil && s.barrier.Signal(id) {
		r.barrierDone(s)
	}
}

// barrierDone runs once per armed barrier.
func (r *serverRole) barrierDone(s *Session) {
	phase := s.phase
	s.metrics.barrierDone(phase, s.clock-s.armedAt)
	s.barrier = nil
	s.logger.Info().Stringer("phase", phase).Msg("barrier complete")

	switch phase {
	case PhaseKartInfoBarrier:
		if s.transition(PhaseCharacterSelect) {
			r.broadcastRoster(s)
		}
	case PhaseReadySetGoBarrier:
		r.broadcast(s, gamepackets.StartPacket{})
		s.transition(PhaseRacing)
	}
}

// broadcastRoster sends the race data. The host appears in it only when it
// races.
func (r *serverRole) broadcastRoster(s *Session) {
	roster := gamepackets.RosterPacket{
		Track: s.race.Track,
		Laps:  uint8(s.race.Laps),
	}
	for _, p := range s.players.list() {
		if p.ID == ServerIdentity && !p.Selection.IsSet() {
			continue
		}
		roster.Entries = append(roster.Entries, gamepackets.RosterEntry{
			ID:       uint8(p.ID),
			Nickname: p.Nickname,
			Kart:     p.Selection.Vehicle,
			KartName: p.Selection.DisplayName,
		})
	}
	r.broadcast(s, roster)
}

func (r *serverRole) broadcast(s *Session, packet marshaler) {
	for _, p := range s.players.remotes() {
		s.send(p.Handle, packet)
	}
}

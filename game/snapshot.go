package game

// Snapshot is a read-only copy of a session's state, safe to hand to
// other goroutines.
type Snapshot struct {
	SessionID string       `json:"sessionId"`
	Role      Role         `json:"role"`
	Phase     Phase        `json:"phase"`
	Joined    bool         `json:"joined"`
	LocalID   Identity     `json:"localId"`
	Capacity  int          `json:"capacity"`
	Race      RaceInfo     `json:"race"`
	Players   []PlayerInfo `json:"players"`
	Barrier   *BarrierInfo `json:"barrier,omitempty"`
	Error     string       `json:"error,omitempty"`
}

type PlayerInfo struct {
	ID       Identity  `json:"id"`
	Nickname string    `json:"nickname"`
	Kart     Selection `json:"kart"`
	Local    bool      `json:"local"`
	Ready    bool      `json:"ready"`
}

type BarrierInfo struct {
	Target       int `json:"target"`
	Acknowledged int `json:"acknowledged"`
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID: s.id.String(),
		Role:      s.Role(),
		Phase:     s.phase,
		Joined:    s.hasID,
		LocalID:   s.localID,
		Capacity:  s.opts.Capacity,
		Race:      s.race,
		Players:   make([]PlayerInfo, 0, len(s.players.order)),
	}
	for _, p := range s.players.list() {
		snap.Players = append(snap.Players, PlayerInfo{
			ID:       p.ID,
			Nickname: p.Nickname,
			Kart:     p.Selection,
			Local:    p.Local,
			Ready:    p.Ready,
		})
	}
	if s.barrier != nil {
		snap.Barrier = &BarrierInfo{
			Target:       s.barrier.Target(),
			Acknowledged: s.barrier.Acknowledged(),
		}
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

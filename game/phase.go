package game

import (
	"fmt"
	"strings"
)

type Role uint8

const (
	RoleNone Role = iota
	RoleServer
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return fmt.Sprintf("Unknown(%d)", r)
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ParseRole accepts "server", "client" or "none" in any case.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "server", "host":
		return RoleServer, nil
	case "client":
		return RoleClient, nil
	case "", "none":
		return RoleNone, nil
	default:
		return RoleNone, fmt.Errorf("unknown role %q", s)
	}
}

// Phase is one stage of the lobby state machine.
type Phase uint8

const (
	// PhaseIdle is the state before networking starts, and the client's
	// state while its first kart claim is outstanding.
	PhaseIdle Phase = iota

	// Server only.
	PhaseAcceptingConnections
	PhaseKartInfoBarrier

	// Client only.
	PhaseCharacterConfirmed
	PhaseCharacterRejected
	PhaseWaitingForRaceData

	// Shared.
	PhaseCharacterSelect
	PhaseReadySetGoBarrier
	PhaseRacing

	// PhaseAborted is terminal: the session failed or was closed.
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseAcceptingConnections:
		return "AcceptingConnections"
	case PhaseKartInfoBarrier:
		return "KartInfoBarrier"
	case PhaseCharacterConfirmed:
		return "CharacterConfirmed"
	case PhaseCharacterRejected:
		return "CharacterRejected"
	case PhaseWaitingForRaceData:
		return "WaitingForRaceData"
	case PhaseCharacterSelect:
		return "CharacterSelect"
	case PhaseReadySetGoBarrier:
		return "ReadySetGoBarrier"
	case PhaseRacing:
		return "Racing"
	case PhaseAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// transitions is the phase graph. Every phase may additionally move to
// PhaseAborted.
var transitions = map[Phase][]Phase{
	PhaseIdle: {
		PhaseAcceptingConnections,
		PhaseCharacterConfirmed,
		PhaseCharacterRejected,
	},
	PhaseAcceptingConnections: {PhaseKartInfoBarrier},
	PhaseKartInfoBarrier:      {PhaseCharacterSelect},
	PhaseCharacterRejected: {
		PhaseCharacterConfirmed,
		PhaseCharacterRejected,
	},
	PhaseCharacterConfirmed: {PhaseWaitingForRaceData},
	PhaseWaitingForRaceData: {PhaseCharacterSelect},
	PhaseCharacterSelect:    {PhaseReadySetGoBarrier},
	PhaseReadySetGoBarrier:  {PhaseRacing},
}

func canTransition(from, to Phase) bool {
	if to == PhaseAborted {
		return from != PhaseAborted
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

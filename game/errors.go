package game

import "errors"

var (
	ErrNoRole           = errors.New("game: role not set")
	ErrRoleLocked       = errors.New("game: role is fixed once networking starts")
	ErrWrongRole        = errors.New("game: operation not valid for this role")
	ErrWrongPhase       = errors.New("game: operation not valid in this phase")
	ErrAlreadyStarted   = errors.New("game: networking already started")
	ErrNotStarted       = errors.New("game: networking not started")
	ErrHandleBound      = errors.New("game: connection already has an identity")
	ErrIdentityBound    = errors.New("game: identity bound to another connection")
	ErrLobbyFull        = errors.New("game: lobby full")
	ErrUnknownPeer      = errors.New("game: unknown peer")
	ErrVehicleTaken     = errors.New("game: vehicle already claimed")
	ErrUnknownVehicle   = errors.New("game: vehicle not in catalog")
	ErrInvalidSelection = errors.New("game: invalid vehicle selection")
	ErrInvalidSlot      = errors.New("game: invalid player slot")
	ErrInvalidRace      = errors.New("game: invalid race settings")

	// ErrServerLost and ErrKicked end a client session for good.
	ErrServerLost     = errors.New("game: connection to server lost")
	ErrKicked         = errors.New("game: kicked by server")
	ErrConnectTimeout = errors.New("game: timed out waiting for the host")
	ErrClosed         = errors.New("game: session closed")
)

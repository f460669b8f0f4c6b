package signaling

const (
	TypeJoinInvite = "joinInvite"
	TypeAcceptJoin = "acceptJoin"
	TypeError      = "error"
)

// WebsocketResponse is decoded first to route a message by its type.
type WebsocketResponse struct {
	Type string `json:"type"`
}

// JoinInvite carries a joining peer's complete SDP offer.
type JoinInvite struct {
	Type     string `json:"type"`
	Version  string `json:"version"`
	Session  string `json:"session"`
	Offer    string `json:"offer"`
	Nickname string `json:"nickname,omitempty"`
}

// AcceptJoinPacket carries the host's complete SDP answer.
type AcceptJoinPacket struct {
	Type    string `json:"type"`
	Version string `json:"version"`
	Session string `json:"session"`
	Answer  string `json:"answer"`
}

type ErrorPacket struct {
	Type    string `json:"type"`
	Session string `json:"session,omitempty"`
	Message string `json:"message"`
}

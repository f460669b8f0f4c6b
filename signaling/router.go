package signaling

import (
	"context"
	"encoding/json"
	"fmt"
)

func (s *Server) route(ctx context.Context, message []byte) []byte {
	var env WebsocketResponse
	if err := json.Unmarshal(message, &env); err != nil {
		s.logger.Warn().Err(err).Msg("invalid packet")
		return errorReply("", "invalid packet")
	}

	switch env.Type {
	case TypeJoinInvite:
		var packet JoinInvite
		if err := json.Unmarshal(message, &packet); err != nil {
			return errorReply("", "invalid joinInvite")
		}
		return s.handleJoinInvite(ctx, packet)
	default:
		s.logger.Warn().Str("type", env.Type).Msg("unknown packet type")
		return errorReply("", fmt.Sprintf("unknown type %q", env.Type))
	}
}

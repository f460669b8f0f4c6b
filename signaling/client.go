package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Join sends join to the Server at url and waits for its answer.
func Join(ctx context.Context, url string, join JoinInvite) (string, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return "", fmt.Errorf("dial signaling %s: %w", url, err)
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}

	join.Type = TypeJoinInvite
	data, err := json.Marshal(join)
	if err != nil {
		return "", err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return "", fmt.Errorf("send join: %w", err)
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("await answer: %w", err)
		}

		var env WebsocketResponse
		if err := json.Unmarshal(message, &env); err != nil {
			return "", fmt.Errorf("invalid packet: %w", err)
		}

		switch env.Type {
		case TypeAcceptJoin:
			var packet AcceptJoinPacket
			if err := json.Unmarshal(message, &packet); err != nil {
				return "", fmt.Errorf("invalid acceptJoin: %w", err)
			}
			if packet.Session != join.Session {
				continue
			}
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return packet.Answer, nil
		case TypeError:
			var packet ErrorPacket
			json.Unmarshal(message, &packet)
			return "", &RemoteError{Message: packet.Message}
		}
	}
}

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 30 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	sendBuffer = 256

	// LobbyPath is the HTTP path the websocket host upgrades on.
	LobbyPath = "/lobby"
)

// WebsocketHost implements Host over websocket connections: one binary
// websocket message per lobby message.
type WebsocketHost struct {
	queue  Queue
	logger zerolog.Logger

	DialTimeout time.Duration

	mu       sync.Mutex
	conns    map[Handle]*wsConn
	server   *http.Server
	listener net.Listener
	closed   bool
}

type wsConn struct {
	handle Handle
	conn   *websocket.Conn
	send   chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Lobby peers are game processes, not browsers.
		return true
	},
}

func NewWebsocketHost(logger zerolog.Logger) *WebsocketHost {
	return &WebsocketHost{
		logger:      logger.With().Str("transport", "websocket").Logger(),
		DialTimeout: 5 * time.Second,
		conns:       make(map[Handle]*wsConn),
	}
}

func (h *WebsocketHost) Listen(port int) error {
	addr := fmt.Sprintf(":%d", port)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return &NetError{Op: "listen", Addr: addr, Err: ErrClosed}
	}
	if h.listener != nil {
		return &NetError{Op: "listen", Addr: addr, Err: ErrAlreadyListening}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &NetError{Op: "listen", Addr: addr, Err: err}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(LobbyPath, h.serveWS)
	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	h.listener = ln

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error().Err(err).Msg("lobby listener stopped")
		}
	}()

	h.logger.Info().Str("addr", ln.Addr().String()).Msg("accepting lobby connections")
	return nil
}

// Addr returns the bound listen address, or nil before Listen.
func (h *WebsocketHost) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

func (h *WebsocketHost) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	if _, err := h.register(conn); err != nil {
		conn.Close()
	}
}

func (h *WebsocketHost) Dial(address string, port int) (Handle, error) {
	url := fmt.Sprintf("ws://%s%s", net.JoinHostPort(address, fmt.Sprint(port)), LobbyPath)

	ctx, cancel := context.WithTimeout(context.Background(), h.DialTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: h.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return "", &NetError{Op: "dial", Addr: url, Err: err}
	}

	handle, err := h.register(conn)
	if err != nil {
		conn.Close()
		return "", &NetError{Op: "dial", Addr: url, Err: err}
	}
	return handle, nil
}

func (h *WebsocketHost) register(conn *websocket.Conn) (Handle, error) {
	c := &wsConn{
		handle: NewHandle(),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return "", ErrClosed
	}
	h.conns[c.handle] = c
	// Queued under the lock so the connect event precedes any message.
	h.queue.Push(Event{Kind: EventConnect, Handle: c.handle})
	h.mu.Unlock()

	h.logger.Debug().Str("handle", string(c.handle)).Str("remote", conn.RemoteAddr().String()).Msg("connection open")

	go h.writePump(c)
	go h.readPump(c)
	return c.handle, nil
}

func (h *WebsocketHost) Poll() []Event {
	return h.queue.Drain()
}

func (h *WebsocketHost) Send(handle Handle, data []byte) error {
	if len(data) > MaxMessageSize {
		return &NetError{Op: "send", Addr: string(handle), Err: ErrMessageTooLarge}
	}
	msg := make([]byte, len(data))
	copy(msg, data)

	h.mu.Lock()
	c, ok := h.conns[handle]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownHandle
	}
	select {
	case c.send <- msg:
		h.mu.Unlock()
		return nil
	default:
	}
	h.mu.Unlock()

	// A peer that cannot keep up is dropped; it sees a disconnect.
	h.logger.Warn().Str("handle", string(handle)).Msg("send buffer full, dropping connection")
	if h.remove(handle) {
		h.queue.Push(Event{Kind: EventDisconnect, Handle: handle})
	}
	return &NetError{Op: "send", Addr: c.conn.RemoteAddr().String(), Err: ErrSendBufferFull}
}

func (h *WebsocketHost) Disconnect(handle Handle) error {
	if !h.remove(handle) {
		return ErrUnknownHandle
	}
	return nil
}

func (h *WebsocketHost) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	server := h.server
	handles := make([]Handle, 0, len(h.conns))
	for handle := range h.conns {
		handles = append(handles, handle)
	}
	h.mu.Unlock()

	for _, handle := range handles {
		h.remove(handle)
	}
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
	return nil
}

// remove forgets the connection and closes its send channel, which makes
// the write pump send a close frame. It reports whether the handle was
// still registered.
func (h *WebsocketHost) remove(handle Handle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[handle]
	if !ok {
		return false
	}
	delete(h.conns, handle)
	close(c.send)
	return true
}

// readPump pumps messages from the websocket connection into the queue.
func (h *WebsocketHost) readPump(c *wsConn) {
	defer func() {
		if h.remove(c.handle) {
			h.queue.Push(Event{Kind: EventDisconnect, Handle: c.handle})
			h.logger.Debug().Str("handle", string(c.handle)).Msg("connection lost")
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("handle", string(c.handle)).Msg("websocket read failed")
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		// Skip messages that raced a local Disconnect.
		h.mu.Lock()
		_, live := h.conns[c.handle]
		if live {
			h.queue.Push(Event{Kind: EventMessage, Handle: c.handle, Data: data})
		}
		h.mu.Unlock()
	}
}

// writePump pumps messages from the send channel to the websocket connection.
func (h *WebsocketHost) writePump(c *wsConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The host closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

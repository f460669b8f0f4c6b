// Package webrtc implements transport.Host over WebRTC data channels.
// Session descriptions are exchanged through the signaling package.
package webrtc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	gamepackets "kartlobby/game/packets"
	"kartlobby/signaling"
	"kartlobby/transport"
)

type Options struct {
	ICEServers []string

	// IncludeLoopback offers 127.0.0.1 candidates, for local games and
	// tests.
	IncludeLoopback bool

	Logger zerolog.Logger
}

// Host is a transport.Host whose connections are WebRTC data channels.
type Host struct {
	DialTimeout time.Duration

	api     *webrtc.API
	config  webrtc.Configuration
	version string
	logger  zerolog.Logger
	queue   transport.Queue

	mu       sync.Mutex
	sessions map[transport.Handle]*PeerSession
	listener net.Listener
	server   *http.Server
	closed   bool
}

func NewHost(opts Options) *Host {
	logger := opts.Logger.With().Str("component", "webrtc").Logger()

	se := webrtc.SettingEngine{LoggerFactory: newLoggerFactory(logger)}
	se.SetIncludeLoopbackCandidate(opts.IncludeLoopback)

	cfg := webrtc.Configuration{}
	if len(opts.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: opts.ICEServers}}
	}

	return &Host{
		DialTimeout: 15 * time.Second,
		api:         webrtc.NewAPI(webrtc.WithSettingEngine(se)),
		config:      cfg,
		version:     strconv.Itoa(int(gamepackets.ProtocolVersion)),
		logger:      logger,
		sessions:    make(map[transport.Handle]*PeerSession),
	}
}

// Listen serves signaling on port. Joining peers become connections once
// their data channel opens.
func (h *Host) Listen(port int) error {
	addr := fmt.Sprintf(":%d", port)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return &transport.NetError{Op: "listen", Addr: addr, Err: transport.ErrClosed}
	}
	if h.listener != nil {
		return &transport.NetError{Op: "listen", Addr: addr, Err: transport.ErrAlreadyListening}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &transport.NetError{Op: "listen", Addr: addr, Err: err}
	}

	mux := http.NewServeMux()
	mux.Handle(signaling.Path, signaling.NewServer(h.version, h.accept, h.logger))
	h.listener = ln
	h.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error().Err(err).Msg("signaling server stopped")
		}
	}()
	h.logger.Info().Str("addr", ln.Addr().String()).Msg("webrtc signaling listening")
	return nil
}

// Addr is the bound signaling address, or "" before Listen.
func (h *Host) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

func (h *Host) newSession(id string) (*PeerSession, error) {
	pc, err := h.api.NewPeerConnection(h.config)
	if err != nil {
		return nil, err
	}
	ps := &PeerSession{
		SessionID: id,
		Handle:    transport.NewHandle(),
		Peer:      pc,
		host:      h,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		pc.Close()
		return nil, transport.ErrClosed
	}
	h.sessions[ps.Handle] = ps
	h.mu.Unlock()

	ps.watchState()
	return ps, nil
}

func (h *Host) accept(ctx context.Context, join signaling.JoinInvite) (string, error) {
	ps, err := h.newSession(join.Session)
	if err != nil {
		return "", err
	}
	ps.Peer.OnDataChannel(ps.bind)

	ctx, cancel := context.WithTimeout(ctx, h.DialTimeout)
	defer cancel()
	answer, err := ps.handleOffer(ctx, join.Offer)
	if err != nil {
		h.drop(ps.Handle)
		return "", err
	}
	return answer, nil
}

// Dial runs the signaling exchange and returns once the answer is
// applied. EventConnect follows when the data channel opens.
func (h *Host) Dial(address string, port int) (transport.Handle, error) {
	addr := net.JoinHostPort(address, strconv.Itoa(port))

	ps, err := h.newSession(uuid.NewString())
	if err != nil {
		return "", &transport.NetError{Op: "dial", Addr: addr, Err: err}
	}
	ordered := true
	dc, err := ps.Peer.CreateDataChannel(ChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		h.drop(ps.Handle)
		return "", &transport.NetError{Op: "dial", Addr: addr, Err: err}
	}
	ps.bind(dc)

	ctx, cancel := context.WithTimeout(context.Background(), h.DialTimeout)
	defer cancel()

	fail := func(err error) (transport.Handle, error) {
		h.drop(ps.Handle)
		return "", &transport.NetError{Op: "dial", Addr: addr, Err: err}
	}

	offer, err := ps.createOffer(ctx)
	if err != nil {
		return fail(err)
	}
	answer, err := signaling.Join(ctx, "ws://"+addr+signaling.Path, signaling.JoinInvite{
		Version: h.version,
		Session: ps.SessionID,
		Offer:   offer,
	})
	if err != nil {
		return fail(err)
	}
	if err := ps.handleAnswer(answer); err != nil {
		return fail(err)
	}
	return ps.Handle, nil
}

func (h *Host) Poll() []transport.Event {
	return h.queue.Drain()
}

func (h *Host) Send(handle transport.Handle, data []byte) error {
	if len(data) > transport.MaxMessageSize {
		return &transport.NetError{Op: "send", Addr: string(handle), Err: transport.ErrMessageTooLarge}
	}
	h.mu.Lock()
	ps, ok := h.sessions[handle]
	open := ok && ps.open
	h.mu.Unlock()
	if !open {
		return transport.ErrUnknownHandle
	}
	if err := ps.send(data); err != nil {
		return &transport.NetError{Op: "send", Addr: ps.SessionID, Err: err}
	}
	return nil
}

func (h *Host) Disconnect(handle transport.Handle) error {
	ps := h.remove(handle)
	if ps == nil {
		return transport.ErrUnknownHandle
	}
	go ps.flushAndClose(flushTimeout)
	return nil
}

func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	sessions := h.sessions
	h.sessions = make(map[transport.Handle]*PeerSession)
	server := h.server
	h.mu.Unlock()

	for _, ps := range sessions {
		ps.close()
	}
	if server != nil {
		return server.Close()
	}
	return nil
}

func (h *Host) opened(ps *PeerSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[ps.Handle] != ps || ps.open {
		return
	}
	ps.open = true
	h.queue.Push(transport.Event{Kind: transport.EventConnect, Handle: ps.Handle})
	h.logger.Debug().Str("session", ps.SessionID).Msg("data channel open")
}

// lost reports the end of a connection the local side did not close.
func (h *Host) lost(ps *PeerSession) {
	h.mu.Lock()
	if h.sessions[ps.Handle] != ps {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, ps.Handle)
	if ps.open {
		h.queue.Push(transport.Event{Kind: transport.EventDisconnect, Handle: ps.Handle})
	}
	h.mu.Unlock()

	h.logger.Debug().Str("session", ps.SessionID).Msg("peer lost")
	go ps.close()
}

func (h *Host) remove(handle transport.Handle) *PeerSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps, ok := h.sessions[handle]
	if !ok {
		return nil
	}
	delete(h.sessions, handle)
	return ps
}

func (h *Host) drop(handle transport.Handle) {
	if ps := h.remove(handle); ps != nil {
		ps.close()
	}
}

package webrtc

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"

	"kartlobby/transport"
)

// ChannelLabel names the reliable, ordered data channel lobby traffic
// uses.
const ChannelLabel = "lobby"

// PeerSession is one peer connection and its lobby data channel.
type PeerSession struct {
	SessionID string
	Handle    transport.Handle
	Peer      *webrtc.PeerConnection

	host    *Host
	channel *webrtc.DataChannel
	open    bool // guarded by host.mu
}

func (ps *PeerSession) watchState() {
	ps.Peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		ps.host.logger.Debug().Str("session", ps.SessionID).Stringer("state", state).Msg("peer connection state")
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			ps.host.lost(ps)
		}
	})
}

// bind attaches the lobby channel. Connect is reported once it opens.
func (ps *PeerSession) bind(dc *webrtc.DataChannel) {
	if dc.Label() != ChannelLabel {
		ps.host.logger.Warn().Str("label", dc.Label()).Msg("ignoring unexpected data channel")
		return
	}
	ps.channel = dc

	dc.OnOpen(func() {
		ps.host.opened(ps)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		data := make([]byte, len(msg.Data))
		copy(data, msg.Data)
		ps.host.queue.Push(transport.Event{Kind: transport.EventMessage, Handle: ps.Handle, Data: data})
	})
	dc.OnClose(func() {
		ps.host.lost(ps)
	})
}

// handleOffer answers a remote offer. The answer is returned once ICE
// gathering has finished so that it carries every local candidate.
func (ps *PeerSession) handleOffer(ctx context.Context, offerSDP string) (string, error) {
	offer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerSDP,
	}
	if err := ps.Peer.SetRemoteDescription(offer); err != nil {
		return "", fmt.Errorf("set offer: %w", err)
	}

	answer, err := ps.Peer.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	return ps.setLocal(ctx, answer)
}

func (ps *PeerSession) createOffer(ctx context.Context) (string, error) {
	offer, err := ps.Peer.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	return ps.setLocal(ctx, offer)
}

func (ps *PeerSession) handleAnswer(answerSDP string) error {
	answer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answerSDP,
	}
	if err := ps.Peer.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set answer: %w", err)
	}
	return nil
}

func (ps *PeerSession) setLocal(ctx context.Context, desc webrtc.SessionDescription) (string, error) {
	gathered := webrtc.GatheringCompletePromise(ps.Peer)
	if err := ps.Peer.SetLocalDescription(desc); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return "", fmt.Errorf("gather candidates: %w", ctx.Err())
	}
	return ps.Peer.LocalDescription().SDP, nil
}

func (ps *PeerSession) send(data []byte) error {
	if ps.channel == nil {
		return transport.ErrUnknownHandle
	}
	return ps.channel.Send(data)
}

// flushTimeout bounds how long a disconnect waits for queued messages.
const flushTimeout = 2 * time.Second

// flushAndClose waits until the channel's queued messages are acknowledged
// by the remote, or timeout passes, then closes the connection.
func (ps *PeerSession) flushAndClose(timeout time.Duration) {
	if ps.channel != nil {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		deadline := time.After(timeout)
	wait:
		for ps.channel.BufferedAmount() > 0 {
			select {
			case <-ticker.C:
			case <-deadline:
				ps.host.logger.Debug().
					Str("session", ps.SessionID).
					Uint64("buffered", ps.channel.BufferedAmount()).
					Msg("closing with unsent data")
				break wait
			}
		}
	}
	ps.close()
}

func (ps *PeerSession) close() {
	if err := ps.Peer.Close(); err != nil {
		ps.host.logger.Debug().Err(err).Str("session", ps.SessionID).Msg("close peer connection")
	}
}

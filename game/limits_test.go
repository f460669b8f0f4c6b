package game

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gamepackets "kartlobby/game/packets"
	"kartlobby/transport"
)

func TestClampName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "ana", "ana"},
		{"exact", strings.Repeat("a", gamepackets.MaxNameLength), strings.Repeat("a", gamepackets.MaxNameLength)},
		{"long", strings.Repeat("b", 255), strings.Repeat("b", gamepackets.MaxNameLength)},
		// 31 ASCII bytes then a two-byte rune straddling the limit.
		{"rune boundary", strings.Repeat("c", 31) + "éz", strings.Repeat("c", 31)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampName(tt.in))
		})
	}
}

func maxRoster() gamepackets.RosterPacket {
	name := strings.Repeat("n", gamepackets.MaxNameLength)
	roster := gamepackets.RosterPacket{Track: strings.Repeat("t", 255), Laps: 255}
	for i := 0; i < gamepackets.MaxRosterEntries; i++ {
		roster.Entries = append(roster.Entries, gamepackets.RosterEntry{
			ID:       uint8(i),
			Nickname: name,
			Kart:     name,
			KartName: name,
		})
	}
	return roster
}

func TestLargestRosterCrossesWebsocket(t *testing.T) {
	data, err := maxRoster().Marshal()
	require.NoError(t, err)
	require.Len(t, data, gamepackets.MaxRosterSize)
	require.LessOrEqual(t, len(data), transport.MaxMessageSize)

	server := transport.NewWebsocketHost(zerolog.Nop())
	defer server.Close()
	require.NoError(t, server.Listen(0))
	client := transport.NewWebsocketHost(zerolog.Nop())
	defer client.Close()
	local, err := client.Dial("127.0.0.1", server.Addr().(*net.TCPAddr).Port)
	require.NoError(t, err)

	remote := waitEvent(t, server, transport.EventConnect).Handle
	require.NoError(t, server.Send(remote, data))

	msg := waitEvent(t, client, transport.EventMessage)
	assert.Equal(t, local, msg.Handle)

	var f gamepackets.PacketFactory
	pk, err := f.PlayerFromBytes(msg.Data)
	require.NoError(t, err)
	assert.Equal(t, maxRoster(), pk)
}

func waitEvent(t *testing.T, h transport.Host, kind transport.EventKind) transport.Event {
	t.Helper()
	var got transport.Event
	require.Eventually(t, func() bool {
		for _, ev := range h.Poll() {
			if ev.Kind == kind {
				got = ev
				return true
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)
	return got
}

func TestOverlongNamesAreClamped(t *testing.T) {
	nw := transport.NewNetwork()
	server := newTestServer(t, nw, Options{Capacity: 2})

	raw := dialRaw(t, nw, "verbose")
	pump(t, server)
	raw.send(t, gamepackets.ConnectRequestPacket{
		Version:  gamepackets.ProtocolVersion,
		Nickname: strings.Repeat("v", 255),
	})
	pump(t, server)
	require.Equal(t, 1, server.PeerCount())

	name, ok := server.PeerDisplayName(0)
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("v", gamepackets.MaxNameLength), name)

	raw.send(t, gamepackets.NameUpdatePacket{Nickname: strings.Repeat("w", 200)})
	pump(t, server)
	name, _ = server.PeerDisplayName(0)
	assert.Len(t, name, gamepackets.MaxNameLength)

	// Close the lobby so that claims are in phase.
	require.NoError(t, server.RequestCharacterSelectPhase())
	raw.host.Poll()

	raw.send(t, gamepackets.KartClaimPacket{Kart: strings.Repeat("k", gamepackets.MaxNameLength+1)})
	pump(t, server)
	sel, ok := server.Selection(0)
	require.True(t, ok)
	assert.False(t, sel.IsSet())
	assert.Contains(t, rawPackets(t, raw), gamepackets.PlayerPacket(gamepackets.KartRejectedPacket{
		Kart:   strings.Repeat("k", gamepackets.MaxNameLength+1),
		Reason: gamepackets.RejectInvalid,
	}))

	raw.send(t, gamepackets.KartClaimPacket{Kart: "tux", KartName: strings.Repeat("x", 100)})
	pump(t, server)
	sel, _ = server.Selection(0)
	assert.Equal(t, Selection{Vehicle: "tux", DisplayName: strings.Repeat("x", gamepackets.MaxNameLength)}, sel)
}

func rawPackets(t *testing.T, p *rawPeer) []gamepackets.PlayerPacket {
	t.Helper()
	var f gamepackets.PacketFactory
	var out []gamepackets.PlayerPacket
	for _, ev := range p.host.Poll() {
		if ev.Kind != transport.EventMessage {
			continue
		}
		pk, err := f.PlayerFromBytes(ev.Data)
		require.NoError(t, err)
		out = append(out, pk)
	}
	return out
}

func TestLocalNamesAreClamped(t *testing.T) {
	s := NewSession(transport.NewNetwork().Host("solo"), Options{
		Nickname: strings.Repeat("h", 64),
		Logger:   zerolog.Nop(),
	})
	defer s.Close()
	require.NoError(t, s.SetRole(RoleServer))
	name, ok := s.PeerDisplayName(ServerIdentity)
	require.True(t, ok)
	assert.Len(t, name, gamepackets.MaxNameLength)

	require.NoError(t, s.SetPlayerName(strings.Repeat("g", 300)))
	name, _ = s.PeerDisplayName(ServerIdentity)
	assert.Equal(t, strings.Repeat("g", gamepackets.MaxNameLength), name)

	assert.ErrorIs(t, s.SetRace(RaceInfo{Track: strings.Repeat("t", 256), Laps: 3}), ErrInvalidRace)
}

func TestDefaultCapacityLeavesRoomForHost(t *testing.T) {
	s := NewSession(transport.NewNetwork().Host("solo"), Options{Logger: zerolog.Nop()})
	defer s.Close()
	assert.Equal(t, MaxCapacity, s.Snapshot().Capacity)

	s = NewSession(transport.NewNetwork().Host("solo"), Options{Capacity: 1000, Logger: zerolog.Nop()})
	defer s.Close()
	assert.Equal(t, MaxCapacity, s.Snapshot().Capacity)
}

func TestFullLobbyWithHostKart(t *testing.T) {
	if testing.Short() {
		t.Skip("runs a full lobby")
	}

	nw := transport.NewNetwork()
	server := newTestServer(t, nw, Options{Track: "lighthouse", Laps: 3})
	require.NoError(t, server.SetLocalVehicleSelection(0, "host-kart", ""))

	sessions := []*Session{server}
	for i := 0; i < MaxCapacity; i++ {
		name := fmt.Sprintf("p%03d", i)
		sessions = append(sessions, newTestClient(t, nw, name, "kart-"+name))
	}
	pump(t, sessions...)

	assert.Equal(t, PhaseCharacterSelect, server.Phase())
	assert.Equal(t, MaxCapacity, server.PeerCount())
	for _, c := range sessions[1:] {
		require.Equal(t, PhaseCharacterSelect, c.Phase(), "client %s", c.nickname)
	}

	// The last client sees the host and the first client in its roster.
	last := sessions[len(sessions)-1]
	sel, ok := last.Selection(ServerIdentity)
	require.True(t, ok)
	assert.Equal(t, "host-kart", sel.Vehicle)
	sel, ok = last.Selection(sessions[1].LocalIdentity())
	require.True(t, ok)
	assert.Equal(t, "kart-p000", sel.Vehicle)
	assert.Len(t, last.Snapshot().Players, MaxCapacity+1)
}

package gamepackets

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectRequestLayout(t *testing.T) {
	data, err := ConnectRequestPacket{Version: 0x0103, Nickname: "ana"}.Marshal()
	require.NoError(t, err)
	assert.Equal(t, []byte{byte(ConnectRequest), 0x03, 0x01, 3, 'a', 'n', 'a'}, data)

	var f PacketFactory
	pk, err := f.FromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, ConnectRequestPacket{Version: 0x0103, Nickname: "ana"}, pk)
}

func TestWelcomeCarriesSession(t *testing.T) {
	id := uuid.New()
	data, err := WelcomePacket{ID: 4, SessionID: id, Capacity: 8}.Marshal()
	require.NoError(t, err)
	assert.Len(t, data, 19)

	var f PacketFactory
	pk, err := f.PlayerFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, WelcomePacket{ID: 4, SessionID: id, Capacity: 8}, pk)
}

func TestRosterDecode(t *testing.T) {
	in := RosterPacket{
		Track: "lighthouse",
		Laps:  3,
		Entries: []RosterEntry{
			{ID: 0, Nickname: "ana", Kart: "tux"},
			{ID: 255, Nickname: "host", Kart: "adiumy", KartName: "Adi"},
		},
	}
	data, err := in.Marshal()
	require.NoError(t, err)

	var f PacketFactory
	pk, err := f.PlayerFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, in, pk)

	empty, err := RosterPacket{Track: "x", Laps: 1}.Marshal()
	require.NoError(t, err)
	pk, err = f.PlayerFromBytes(empty)
	require.NoError(t, err)
	assert.Empty(t, pk.(RosterPacket).Entries)
}

func TestMarshalLimits(t *testing.T) {
	long := strings.Repeat("x", 256)

	_, err := NameUpdatePacket{Nickname: long}.Marshal()
	assert.ErrorIs(t, err, ErrStringTooLong)

	_, err = KartClaimPacket{Kart: "tux", KartName: long}.Marshal()
	assert.ErrorIs(t, err, ErrStringTooLong)

	_, err = RosterPacket{Entries: make([]RosterEntry, 256)}.Marshal()
	assert.ErrorIs(t, err, ErrTooManyEntries)

	_, err = RosterPacket{Entries: []RosterEntry{{Kart: long}}}.Marshal()
	assert.ErrorIs(t, err, ErrStringTooLong)
}

func TestHostDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrEmptyPacket},
		{"unknown type", []byte{0x7f}, ErrUnknownType},
		{"player packet misrouted", []byte{byte(Start)}, ErrUnknownType},
		{"short version", []byte{byte(ConnectRequest), 3}, ErrTruncated},
		{"short nickname", []byte{byte(ConnectRequest), 3, 0, 5, 'a'}, ErrTruncated},
		{"claim without kart", []byte{byte(KartClaim), 0}, ErrTruncated},
		{"ready with body", []byte{byte(Ready), 1}, ErrTrailingData},
		{"name with trailing", []byte{byte(NameUpdate), 1, 'a', 'b'}, ErrTrailingData},
	}

	var f PacketFactory
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pk, err := f.FromBytes(tt.data)
			assert.Nil(t, pk)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPlayerDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", []byte{}, ErrEmptyPacket},
		{"host packet misrouted", []byte{byte(ConnectRequest), 3, 0, 0}, ErrUnknownType},
		{"short welcome", []byte{byte(Welcome), 1, 2, 3}, ErrTruncated},
		{"rejected without reason", []byte{byte(KartRejected), 0, 1, 'a'}, ErrTruncated},
		{"remove without flag", []byte{byte(RemovePlayer), 2}, ErrTruncated},
		{"roster short entry", []byte{byte(Roster), 0, 3, 2, 1, 0, 0, 0}, ErrTruncated},
		{"start with body", []byte{byte(Start), 0}, ErrTrailingData},
		{"kick with body", []byte{byte(Kick), 9}, ErrTrailingData},
	}

	var f PacketFactory
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pk, err := f.PlayerFromBytes(tt.data)
			assert.Nil(t, pk)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, "KartClaim", KartClaim.String())
	assert.Equal(t, "Roster", Roster.String())
	assert.Equal(t, "Unknown(99)", HostPacketType(99).String())
	assert.Equal(t, "unknown kart", RejectUnknownKart.String())
}

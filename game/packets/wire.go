package gamepackets

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MaxNameLength bounds the nicknames, kart ids and kart display names a
	// host accepts, so that a full roster fits in one transport message.
	MaxNameLength = 32

	MaxRosterEntries = 255

	// MaxRosterSize is the encoded size of the largest roster a host sends:
	// a 255-byte track and MaxRosterEntries entries of maximal names.
	MaxRosterSize = 1 + (1 + 255) + 1 + 1 + MaxRosterEntries*(1+3*(1+MaxNameLength))
)

var (
	ErrEmptyPacket    = errors.New("packets: empty packet")
	ErrTruncated      = errors.New("packets: truncated packet")
	ErrTrailingData   = errors.New("packets: trailing data")
	ErrUnknownType    = errors.New("packets: unknown packet type")
	ErrStringTooLong  = errors.New("packets: string longer than 255 bytes")
	ErrTooManyEntries = errors.New("packets: too many roster entries")
)

// appendString writes a length-prefixed UTF-8 string.
func appendString(buf []byte, s string) ([]byte, error) {
	b := []byte(s)
	if len(b) > 255 {
		return nil, fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(b))
	}
	buf = append(buf, byte(len(b)))
	return append(buf, b...), nil
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// reader walks a packet body. Every read fails with ErrTruncated once the
// data runs out.
type reader struct {
	data []byte
	off  int
}

func (r *reader) u8() (uint8, error) {
	if r.off+1 > len(r.data) {
		return 0, ErrTruncated
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.off+2 > len(r.data) {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint16(r.data[r.off : r.off+2])
	r.off += 2
	return v, nil
}

func (r *reader) bool() (bool, error) {
	v, err := r.u8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.off+n > len(r.data) {
		return nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, r.data[r.off:r.off+n])
	r.off += n
	return out, nil
}

func (r *reader) string() (string, error) {
	n, err := r.u8()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) done() error {
	if r.off != len(r.data) {
		return fmt.Errorf("%w: %d bytes", ErrTrailingData, len(r.data)-r.off)
	}
	return nil
}

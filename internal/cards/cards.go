// Package cards packs and unpacks the stripe-field buffer an external
// card-reading collaborator submits to Client.Mine. The format is
// `count(1) ‖ (field_len(1) ‖ field_bytes)*`, bounded to 256 bytes total,
// matching the wire codec's own tag-then-payload style in pkg/wire.
package cards

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// MaxBufLen is the hard cap on a packed buffer, matching the HTTP
// collaborator's POST /api/mine body limit.
const MaxBufLen = 256

// MaxFieldLen is the hard cap on a single field's length.
const MaxFieldLen = 255

// ErrTooManyFields is returned when the packed buffer would exceed MaxBufLen.
var ErrTooManyFields = errors.New("cards: packed buffer exceeds 256 bytes")

// ErrFieldTooLong is returned when a field exceeds MaxFieldLen bytes.
var ErrFieldTooLong = errors.New("cards: field exceeds 255 bytes")

// ErrInvalidBuffer is returned by Unpack for any buffer that cannot be a
// valid packed fields buffer: truncated, or carrying trailing bytes.
var ErrInvalidBuffer = errors.New("cards: invalid packed buffer")

// Pack encodes fields into the count-prefixed buffer submitted to mine().
// It fails rather than truncating if the result would exceed MaxBufLen,
// since silently dropping a stripe field is worse than rejecting the swipe.
func Pack(fields [][]byte) ([]byte, error) {
	if len(fields) > 255 {
		return nil, fmt.Errorf("%w: %d fields", ErrTooManyFields, len(fields))
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(len(fields)))
	for _, f := range fields {
		if len(f) > MaxFieldLen {
			return nil, fmt.Errorf("%w: got %d bytes", ErrFieldTooLong, len(f))
		}
		buf.WriteByte(byte(len(f)))
		buf.Write(f)
	}

	if buf.Len() > MaxBufLen {
		return nil, fmt.Errorf("%w: got %d bytes", ErrTooManyFields, buf.Len())
	}
	return buf.Bytes(), nil
}

// Unpack reverses Pack, rejecting any buffer that doesn't consume
// exactly to its declared end — the same "no trailing bytes" strictness
// as pkg/wire.Parse.
func Unpack(buf []byte) ([][]byte, error) {
	if len(buf) == 0 || len(buf) > MaxBufLen {
		return nil, ErrInvalidBuffer
	}

	r := bytes.NewReader(buf)
	count, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBuffer, err)
	}

	fields := make([][]byte, 0, count)
	for i := 0; i < int(count); i++ {
		n, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: missing length for field %d", ErrInvalidBuffer, i)
		}
		field := make([]byte, n)
		if _, err := io.ReadFull(r, field); err != nil {
			return nil, fmt.Errorf("%w: short field %d", ErrInvalidBuffer, i)
		}
		fields = append(fields, field)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrInvalidBuffer)
	}
	return fields, nil
}

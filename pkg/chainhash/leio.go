package chainhash

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Every multi-byte integer on the wire and in the hash preimage is
// little-endian. These helpers encode it for the wire codec; pkg/block
// writes the same little-endian layout by hand for its hash preimage.

// WriteUint64 writes v to w as 8 little-endian bytes.
func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadUint64 reads 8 little-endian bytes from r.
func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WriteUint16 writes v to w as 2 little-endian bytes.
func WriteUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadUint16 reads 2 little-endian bytes from r.
func ReadUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// WriteUint8 writes v to w as a single byte.
func WriteUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

// ReadUint8 reads a single byte from r.
func ReadUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadHash reads a fixed Size-byte hash from r.
func ReadHash(r io.Reader) (Hash, error) {
	var h Hash
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return Hash{}, fmt.Errorf("read hash: %w", err)
	}
	return h, nil
}

// WriteHash writes a fixed Size-byte hash to w.
func WriteHash(w io.Writer, h Hash) error {
	_, err := w.Write(h[:])
	return err
}

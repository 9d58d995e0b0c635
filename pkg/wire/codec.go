package wire

import (
	"bytes"
	"fmt"
	"io"
	"net"

	"github.com/minnehack/checkchain/pkg/block"
	"github.com/minnehack/checkchain/pkg/chainhash"
)

// SerializeBlock writes the wire format of b:
// index(8) | prev_hash(32) | timestamp(8) | data_len(1) | data | hash(32)
func SerializeBlock(b block.Block) []byte {
	buf := make([]byte, 0, 8+chainhash.Size+8+1+len(b.Data)+chainhash.Size)
	w := bytes.NewBuffer(buf)
	chainhash.WriteUint64(w, b.Index)
	chainhash.WriteHash(w, b.PrevHash)
	chainhash.WriteUint64(w, b.Timestamp)
	chainhash.WriteUint8(w, uint8(len(b.Data)))
	w.Write(b.Data)
	chainhash.WriteHash(w, b.Hash)
	return w.Bytes()
}

// ParseBlock reads a wire-format block from r, consuming exactly its
// bytes and nothing more (the caller enforces the "whole datagram"
// rule across the full message).
func ParseBlock(r *bytes.Reader) (block.Block, error) {
	index, err := chainhash.ReadUint64(r)
	if err != nil {
		return block.Block{}, fmt.Errorf("%w: block index: %v", ErrInvalidPacket, err)
	}
	prevHash, err := chainhash.ReadHash(r)
	if err != nil {
		return block.Block{}, fmt.Errorf("%w: block prev_hash: %v", ErrInvalidPacket, err)
	}
	timestamp, err := chainhash.ReadUint64(r)
	if err != nil {
		return block.Block{}, fmt.Errorf("%w: block timestamp: %v", ErrInvalidPacket, err)
	}
	dataLen, err := chainhash.ReadUint8(r)
	if err != nil {
		return block.Block{}, fmt.Errorf("%w: block data_len: %v", ErrInvalidPacket, err)
	}
	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return block.Block{}, fmt.Errorf("%w: block data: %v", ErrInvalidPacket, err)
	}
	hash, err := chainhash.ReadHash(r)
	if err != nil {
		return block.Block{}, fmt.Errorf("%w: block hash: %v", ErrInvalidPacket, err)
	}

	return block.Block{
		Index:     index,
		PrevHash:  prevHash,
		Timestamp: timestamp,
		Data:      data,
		Hash:      hash,
	}, nil
}

// SerializeAddr writes the wire format of a UDP address:
// family_tag(1) | ip_bytes(4 or 16) | port(2 LE)
func SerializeAddr(w *bytes.Buffer, addr net.UDPAddr) error {
	ip4 := addr.IP.To4()
	if ip4 != nil {
		chainhash.WriteUint8(w, 0x04)
		w.Write(ip4)
	} else {
		ip16 := addr.IP.To16()
		if ip16 == nil {
			return fmt.Errorf("wire: address %v is neither IPv4 nor IPv6", addr.IP)
		}
		chainhash.WriteUint8(w, 0x06)
		w.Write(ip16)
	}
	return chainhash.WriteUint16(w, uint16(addr.Port))
}

// ParseAddr reads a wire-format UDP address from r.
func ParseAddr(r *bytes.Reader) (net.UDPAddr, error) {
	familyTag, err := chainhash.ReadUint8(r)
	if err != nil {
		return net.UDPAddr{}, fmt.Errorf("%w: addr family: %v", ErrInvalidPacket, err)
	}
	var ipLen int
	switch familyTag {
	case 0x04:
		ipLen = 4
	case 0x06:
		ipLen = 16
	default:
		return net.UDPAddr{}, fmt.Errorf("%w: unknown address family tag %#x", ErrInvalidPacket, familyTag)
	}
	ip := make([]byte, ipLen)
	if _, err := io.ReadFull(r, ip); err != nil {
		return net.UDPAddr{}, fmt.Errorf("%w: addr bytes: %v", ErrInvalidPacket, err)
	}
	port, err := chainhash.ReadUint16(r)
	if err != nil {
		return net.UDPAddr{}, fmt.Errorf("%w: addr port: %v", ErrInvalidPacket, err)
	}
	return net.UDPAddr{IP: net.IP(ip), Port: int(port)}, nil
}

// Serialize writes the tag byte and payload for m.
func Serialize(m Message) ([]byte, error) {
	w := bytes.NewBuffer(make([]byte, 0, 64))
	if err := chainhash.WriteUint8(w, uint8(m.Kind)); err != nil {
		return nil, err
	}

	switch m.Kind {
	case Ping, Pong, PeerRequest, StatusRequest:
		// no payload

	case PeerResponse:
		if len(m.Peers) > MaxPeers {
			return nil, fmt.Errorf("wire: PeerResponse carries %d peers, max %d", len(m.Peers), MaxPeers)
		}
		chainhash.WriteUint8(w, uint8(len(m.Peers)))
		for _, p := range m.Peers {
			if err := SerializeAddr(w, p); err != nil {
				return nil, err
			}
		}

	case StatusResponse:
		chainhash.WriteHash(w, m.GenesisHash)
		chainhash.WriteUint64(w, m.TipIndex)
		chainhash.WriteHash(w, m.TipHash)

	case BlockRequest:
		chainhash.WriteUint64(w, m.BlockIndex)

	case BlockResponse, BlockAnnounce:
		w.Write(SerializeBlock(m.Block))

	default:
		return nil, fmt.Errorf("wire: unknown message kind %d", m.Kind)
	}

	return w.Bytes(), nil
}

// Parse decodes a message from a raw datagram. Parsing is strict: every
// byte of buf must be consumed, an unknown tag is rejected, and an
// oversized PeerResponse count is rejected.
func Parse(buf []byte) (Message, error) {
	if len(buf) == 0 {
		return Message{}, fmt.Errorf("%w: empty datagram", ErrInvalidPacket)
	}
	r := bytes.NewReader(buf)

	tag, err := chainhash.ReadUint8(r)
	if err != nil {
		return Message{}, fmt.Errorf("%w: tag: %v", ErrInvalidPacket, err)
	}
	kind := Kind(tag)

	var m Message
	m.Kind = kind

	switch kind {
	case Ping, Pong, PeerRequest, StatusRequest:
		// no payload

	case PeerResponse:
		count, err := chainhash.ReadUint8(r)
		if err != nil {
			return Message{}, fmt.Errorf("%w: peer count: %v", ErrInvalidPacket, err)
		}
		if count > MaxPeers {
			return Message{}, fmt.Errorf("%w: peer count %d exceeds max %d", ErrInvalidPacket, count, MaxPeers)
		}
		m.Peers = make([]net.UDPAddr, 0, count)
		for i := uint8(0); i < count; i++ {
			addr, err := ParseAddr(r)
			if err != nil {
				return Message{}, err
			}
			m.Peers = append(m.Peers, addr)
		}

	case StatusResponse:
		gh, err := chainhash.ReadHash(r)
		if err != nil {
			return Message{}, fmt.Errorf("%w: genesis_hash: %v", ErrInvalidPacket, err)
		}
		ti, err := chainhash.ReadUint64(r)
		if err != nil {
			return Message{}, fmt.Errorf("%w: tip_index: %v", ErrInvalidPacket, err)
		}
		th, err := chainhash.ReadHash(r)
		if err != nil {
			return Message{}, fmt.Errorf("%w: tip_hash: %v", ErrInvalidPacket, err)
		}
		m.GenesisHash, m.TipIndex, m.TipHash = gh, ti, th

	case BlockRequest:
		idx, err := chainhash.ReadUint64(r)
		if err != nil {
			return Message{}, fmt.Errorf("%w: block_index: %v", ErrInvalidPacket, err)
		}
		m.BlockIndex = idx

	case BlockResponse, BlockAnnounce:
		b, err := ParseBlock(r)
		if err != nil {
			return Message{}, err
		}
		m.Block = b

	default:
		return Message{}, fmt.Errorf("%w: unknown tag %#x", ErrInvalidPacket, tag)
	}

	if r.Len() != 0 {
		return Message{}, fmt.Errorf("%w: %d trailing bytes", ErrInvalidPacket, r.Len())
	}

	return m, nil
}

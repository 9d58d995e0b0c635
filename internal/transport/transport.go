// Package transport wraps the single UDP socket every node listens and
// sends on. It owns no protocol knowledge beyond the wire codec.
package transport

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/minnehack/checkchain/pkg/wire"
)

// recvBufSize is the maximum UDP datagram this transport will accept.
const recvBufSize = 65536

// discoveryIP is the IPv4 directed broadcast address discovery Pings
// are sent to. Discovery is IPv4-only by design.
const discoveryIP = "255.255.255.255"

// ErrSendFailed and ErrRecvFailed wrap non-fatal I/O errors from the
// socket; callers log and continue rather than treat them as fatal.
var (
	ErrSendFailed = errors.New("transport: send failed")
	ErrRecvFailed = errors.New("transport: recv failed")
)

// Transport is a bound UDP socket with broadcast permitted.
type Transport struct {
	conn *net.UDPConn
	port int
}

// Bind opens a UDP socket on 0.0.0.0:port with broadcast send permitted.
// A failure here is fatal at startup (spec: CouldNotStartListener).
func Bind(port int) (*Transport, error) {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: bind 0.0.0.0:%d: %w", port, err)
	}
	if err := enableBroadcast(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: enable broadcast on 0.0.0.0:%d: %w", port, err)
	}
	return &Transport{conn: conn, port: conn.LocalAddr().(*net.UDPAddr).Port}, nil
}

// enableBroadcast sets SO_BROADCAST so SendDiscovery's writes to
// 255.255.255.255 are permitted by the kernel.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}

// Close releases the underlying socket.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// Recv blocks until one datagram arrives, decodes it, and returns the
// sender's address and the decoded message. An undecodable datagram is
// reported as ErrInvalidPacket wrapped with the sender's address — it is
// non-fatal and callers should log and keep receiving.
func (t *Transport) Recv() (net.UDPAddr, wire.Message, error) {
	buf := make([]byte, recvBufSize)
	n, raddr, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		return net.UDPAddr{}, wire.Message{}, fmt.Errorf("%w: %v", ErrRecvFailed, err)
	}

	msg, err := wire.Parse(buf[:n])
	if err != nil {
		return *raddr, wire.Message{}, fmt.Errorf("%w from %s: %v", wire.ErrInvalidPacket, raddr, err)
	}
	return *raddr, msg, nil
}

// Send serializes and unicasts msg to addr. Errors are non-fatal.
func (t *Transport) Send(addr net.UDPAddr, msg wire.Message) error {
	raw, err := wire.Serialize(msg)
	if err != nil {
		return fmt.Errorf("%w: serialize: %v", ErrSendFailed, err)
	}
	if _, err := t.conn.WriteToUDP(raw, &addr); err != nil {
		return fmt.Errorf("%w to %s: %v", ErrSendFailed, addr, err)
	}
	return nil
}

// SendDiscovery broadcasts a Ping to the directed broadcast address on
// this transport's port.
func (t *Transport) SendDiscovery() error {
	addr := net.UDPAddr{IP: net.ParseIP(discoveryIP), Port: t.port}
	return t.Send(addr, wire.NewPing())
}

// Port returns the bound local port.
func (t *Transport) Port() int {
	return t.port
}

// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	applog "audiotools/internal/log"
)

var ErrSenderClosed = errors.New("udp: sender is closed")

var senderLog = applog.With("UDP Sender")

// UDPSender writes datagrams to a single peer. Safe for concurrent use.
type UDPSender struct {
	mu   sync.Mutex
	conn *net.UDPConn // nil once closed
	peer string

	packets atomic.Uint64
	bytes   atomic.Uint64
}

// NewUDPSender connects to addr ("host:port").
func NewUDPSender(addr string) (*UDPSender, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udp: resolving %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("udp: dialing %q: %w", addr, err)
	}

	s := &UDPSender{conn: conn, peer: conn.RemoteAddr().String()}
	senderLog.Infof("sending to %s", s.peer)
	return s, nil
}

// Send writes data as one datagram.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return ErrSenderClosed
	}
	n, err := conn.Write(data)
	s.mu.Unlock()

	if err != nil {
		senderLog.Warnf("write to %s: %v", s.peer, err)
		return fmt.Errorf("udp: write: %w", err)
	}
	s.packets.Add(1)
	s.bytes.Add(uint64(n))
	return nil
}

// Stats returns the number of datagrams and bytes written so far.
func (s *UDPSender) Stats() (packets, bytes uint64) {
	return s.packets.Load(), s.bytes.Load()
}

// Close releases the socket. Further Sends fail with ErrSenderClosed.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	packets, bytes := s.Stats()
	senderLog.Infof("closing %s after %d packets (%d bytes)", s.peer, packets, bytes)
	if err := conn.Close(); err != nil {
		return fmt.Errorf("udp: close: %w", err)
	}
	return nil
}

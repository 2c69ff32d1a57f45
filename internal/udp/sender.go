// Package udp carries HIL frames to the flight simulator.
package udp

import (
	"fmt"
	"net"
	"sync/atomic"
)

type conn interface {
	Write(p []byte) (int, error)
	Close() error
}

type dialer func(raddr *net.UDPAddr) (conn, error)

func dialUDP(raddr *net.UDPAddr) (conn, error) {
	return net.DialUDP("udp", nil, raddr)
}

// Sender writes each frame as one datagram to a fixed peer.
type Sender struct {
	peer *net.UDPAddr
	c    conn

	datagrams atomic.Uint64
	bytes     atomic.Uint64
	failures  atomic.Uint64
}

type Stats struct {
	Peer      string `json:"peer"`
	Datagrams uint64 `json:"datagrams"`
	Bytes     uint64 `json:"bytes"`
	Failures  uint64 `json:"failures"`
}

// Dial resolves peer ("host:port") and connects a socket to it.
func Dial(peer string) (*Sender, error) {
	return dial(peer, dialUDP)
}

func dial(peer string, d dialer) (*Sender, error) {
	raddr, err := net.ResolveUDPAddr("udp", peer)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve %s: %w", peer, err)
	}
	c, err := d(raddr)
	if err != nil {
		return nil, fmt.Errorf("udp: dial %s: %w", raddr, err)
	}
	return &Sender{peer: raddr, c: c}, nil
}

// Write implements io.Writer. An empty p sends nothing.
func (s *Sender) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := s.c.Write(p)
	if err != nil {
		s.failures.Add(1)
		return 0, fmt.Errorf("udp: send to %s: %w", s.peer, err)
	}
	s.datagrams.Add(1)
	s.bytes.Add(uint64(n))
	return n, nil
}

func (s *Sender) Stats() Stats {
	st := Stats{
		Datagrams: s.datagrams.Load(),
		Bytes:     s.bytes.Load(),
		Failures:  s.failures.Load(),
	}
	if s.peer != nil {
		st.Peer = s.peer.String()
	}
	return st
}

func (s *Sender) Close() error {
	if s == nil || s.c == nil {
		return nil
	}
	return s.c.Close()
}

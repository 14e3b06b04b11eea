package peers

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Peer is a node endpoint. Two peers are the same peer if they have the same
// host and port.
type Peer struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// NewPeer creates a Peer.
func NewPeer(host string, port int) Peer {
	return Peer{
		Host: host,
		Port: port,
	}
}

// ParsePeer parses a "host:port" string.
func ParsePeer(addr string) (Peer, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return Peer{}, err
	}
	if host == "" {
		return Peer{}, fmt.Errorf("missing host in %q", addr)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Peer{}, fmt.Errorf("invalid port in %q", addr)
	}

	return NewPeer(host, port), nil
}

// NetAddr returns the "host:port" form of the peer.
func (p Peer) NetAddr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

func (p Peer) String() string {
	return p.NetAddr()
}

// IsZero reports whether p is the zero Peer.
func (p Peer) IsZero() bool {
	return p.Host == "" && p.Port == 0
}

// SameEndpoint reports whether p and other designate the same endpoint. Hosts
// match when they are equal strings or equal IPs, and "localhost" counts as a
// loopback IP. Any two loopback addresses match. Other host names are not
// resolved.
func (p Peer) SameEndpoint(other Peer) bool {
	if p.Port != other.Port {
		return false
	}
	if p.Host == other.Host {
		return true
	}

	a, b := hostIP(p.Host), hostIP(other.Host)
	if a == nil || b == nil {
		return false
	}
	if a.IsLoopback() && b.IsLoopback() {
		return true
	}
	return a.Equal(b)
}

func hostIP(host string) net.IP {
	if strings.EqualFold(host, "localhost") {
		return net.IPv4(127, 0, 0, 1)
	}
	return net.ParseIP(host)
}

// ExcludePeer is used to exclude a single peer from a list of peers.
func ExcludePeer(peers []Peer, peer Peer) (int, []Peer) {
	index := -1
	otherPeers := make([]Peer, 0, len(peers))
	for i, p := range peers {
		if p != peer {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}

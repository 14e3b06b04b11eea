package net

import (
	"net"
	"time"

	"github.com/mosaicnetworks/tally/src/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	errNotAdvertisable = errors.New("local bind address is not advertisable")
	errNotTCP          = errors.New("local address is not a TCP address")
)

// NewTCPTransport returns a NetworkTransport listening on bindAddr. Peers are
// told to reach it at advertise, or at the bound address when advertise is
// empty. An unspecified IP (0.0.0.0) cannot be advertised.
func NewTCPTransport(
	bindAddr string,
	advertise string,
	maxPool int,
	timeout time.Duration,
	logger *logrus.Entry,
) (*NetworkTransport, error) {

	list, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", bindAddr)
	}

	stream, err := newTCPStreamLayer(list.(*net.TCPListener), advertise)
	if err != nil {
		list.Close()
		return nil, err
	}

	return NewNetworkTransport(stream, maxPool, timeout, logger), nil
}

// tcpStreamLayer is the StreamLayer of node-to-node traffic. Failures to
// reach a peer come out of Dial already classified as PeerUnreachable.
type tcpStreamLayer struct {
	advertise string
	listener  *net.TCPListener
}

func newTCPStreamLayer(list *net.TCPListener, advertise string) (*tcpStreamLayer, error) {
	var addr net.Addr = list.Addr()
	if advertise != "" {
		resolved, err := net.ResolveTCPAddr("tcp", advertise)
		if err != nil {
			return nil, errors.Wrapf(err, "advertise address %s", advertise)
		}
		addr = resolved
	}

	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, errNotTCP
	}
	if tcpAddr.IP.IsUnspecified() {
		return nil, errNotAdvertisable
	}

	return &tcpStreamLayer{
		advertise: advertise,
		listener:  list,
	}, nil
}

// Dial opens a connection to the peer at address.
func (t *tcpStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, common.NewPeerUnreachableErr(address, err)
	}
	return conn, nil
}

func (t *tcpStreamLayer) Accept() (net.Conn, error) {
	return t.listener.Accept()
}

func (t *tcpStreamLayer) Close() error {
	return t.listener.Close()
}

func (t *tcpStreamLayer) Addr() net.Addr {
	return t.listener.Addr()
}

// AdvertiseAddr returns the address peers use to reach this node.
func (t *tcpStreamLayer) AdvertiseAddr() string {
	if t.advertise != "" {
		return t.advertise
	}
	return t.listener.Addr().String()
}

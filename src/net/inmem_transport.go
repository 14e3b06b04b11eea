package net

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mosaicnetworks/tally/src/common"
)

// NewInmemAddr returns a new in-memory addr with a random UUID as the host.
// The address has the host:port form, so it can be used as a peer.
func NewInmemAddr() string {
	return net.JoinHostPort(uuid.New().String(), "1337")
}

// InmemTransport Implements the Transport interface, to allow Tally to be
// tested in-memory without going over a network.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan RPC
	localAddr  string
	peers      map[string]*InmemTransport
	timeout    time.Duration
	shutdownCh chan struct{}
	closeOnce  sync.Once
}

// NewInmemTransport is used to initialize a new transport
// and generates a random local address if none is specified
func NewInmemTransport(addr string) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	trans := &InmemTransport{
		consumerCh: make(chan RPC, 16),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
		timeout:    500 * time.Millisecond,
		shutdownCh: make(chan struct{}),
	}
	return addr, trans
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan RPC {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// AdvertiseAddr implements the Transport interface.
func (i *InmemTransport) AdvertiseAddr() string {
	return i.localAddr
}

// ExchangePeers implements the Transport interface.
func (i *InmemTransport) ExchangePeers(target string, timeout time.Duration, args *PeersRequest, resp *PeersResponse) error {
	rpcResp, err := i.makeRPC(target, args, timeout)
	if err != nil {
		return err
	}

	// Copy the result back
	out, ok := rpcResp.Response.(*PeersResponse)
	if !ok {
		return fmt.Errorf("unexpected response %T", rpcResp.Response)
	}
	*resp = *out
	return nil
}

// PullLog implements the Transport interface.
func (i *InmemTransport) PullLog(target string, timeout time.Duration, args *PullRequest, resp *PullResponse) error {
	rpcResp, err := i.makeRPC(target, args, timeout)
	if err != nil {
		return err
	}

	// Copy the result back
	out, ok := rpcResp.Response.(*PullResponse)
	if !ok {
		return fmt.Errorf("unexpected response %T", rpcResp.Response)
	}
	*resp = *out
	return nil
}

// PushTransactions implements the Transport interface.
func (i *InmemTransport) PushTransactions(target string, timeout time.Duration, args *PushRequest, resp *PushResponse) error {
	rpcResp, err := i.makeRPC(target, args, timeout)
	if err != nil {
		return err
	}

	// Copy the result back
	out, ok := rpcResp.Response.(*PushResponse)
	if !ok {
		return fmt.Errorf("unexpected response %T", rpcResp.Response)
	}
	*resp = *out
	return nil
}

func (i *InmemTransport) makeRPC(target string, args interface{}, timeout time.Duration) (rpcResp RPCResponse, err error) {
	i.RLock()
	peer, ok := i.peers[target]
	i.RUnlock()

	if !ok {
		err = common.NewPeerUnreachableErr(target, fmt.Errorf("failed to connect to peer"))
		return
	}

	if timeout <= 0 {
		timeout = i.timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// Send the RPC over
	respCh := make(chan RPCResponse, 1)
	select {
	case peer.consumerCh <- RPC{Command: args, RespChan: respCh}:
	case <-peer.shutdownCh:
		err = common.NewPeerUnreachableErr(target, ErrTransportShutdown)
		return
	case <-timer.C:
		err = common.NewPeerUnreachableErr(target, fmt.Errorf("command timed out"))
		return
	}

	// Wait for a response
	select {
	case rpcResp = <-respCh:
		if rpcResp.Error != nil {
			err = rpcResp.Error
		}
	case <-timer.C:
		err = common.NewPeerUnreachableErr(target, fmt.Errorf("command timed out"))
	}
	return
}

// Connect is used to connect this transport to another transport for
// a given peer name. This allows for local routing.
func (i *InmemTransport) Connect(peer string, t Transport) {
	trans := t.(*InmemTransport)
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = trans
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

// Close is used to permanently disable the transport
func (i *InmemTransport) Close() error {
	i.closeOnce.Do(func() {
		close(i.shutdownCh)
	})
	i.DisconnectAll()
	return nil
}

// Listen is an empty function as there is no need to defer
// initialisation of the InMem service
func (i *InmemTransport) Listen() {
}

// ConnectAll connects every transport to every other one.
func ConnectAll(transports ...*InmemTransport) {
	for _, a := range transports {
		for _, b := range transports {
			if a != b {
				a.Connect(b.LocalAddr(), b)
			}
		}
	}
}

package net

import "time"

// Transport provides an interface for network transports
// to allow a node to communicate with other nodes.
//
// Outbound calls take an explicit timeout, so that each periodic protocol can
// bound its calls below its own interval. A zero timeout means the default
// timeout of the transport. Errors caused by the network, including timeouts,
// are classified as PeerUnreachable; an error returned by the remote handler
// is a plain error carrying the remote message.
type Transport interface {

	// Starts the transport listening
	Listen()

	// Consumer returns a channel that can be used to
	// consume and respond to RPC requests.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us
	AdvertiseAddr() string

	// ExchangePeers, PullLog, and PushTransactions send the appropriate RPC to
	// the target node.

	ExchangePeers(target string, timeout time.Duration, args *PeersRequest, resp *PeersResponse) error

	PullLog(target string, timeout time.Duration, args *PullRequest, resp *PullResponse) error

	PushTransactions(target string, timeout time.Duration, args *PushRequest, resp *PushResponse) error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}

// Package net implements the transports used by Tally nodes to talk to each
// other.
//
// A Transport sends three kinds of RPC: PeersRequest (discovery), PullRequest
// (state sync) and PushRequest (transaction gossip), and delivers the RPCs it
// receives on its Consumer channel. There are two implementations:
//
// - Inmem: in-memory transport used only for testing
//
// - TCP: communicating over plain TCP, with msgpack encoding
//
// TCP
//
// To use a TCP transport, set the following configuration options in the Tally
// Config object (cf config package):
//
// - BindAddr: the IP:PORT of the TCP socket that Tally binds to.
//
// - AdvertiseAddr: (optional) The address that is advertised to other nodes. If
// BindAddr is a local address not reachable by other peers, it is usefull to
// set AdvertiseAddr to the reachable public address.
//
// Each outbound call carries its own timeout. Failures to reach the target are
// reported as PeerUnreachable errors (cf common package), so callers can tell
// them apart from errors returned by the remote node.
package net

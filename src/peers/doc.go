// Package peers defines the concept of a Tally peer and implements the peer
// registry.
//
// A peer is a node endpoint, identified by its host and port. Peers carry no
// key: transactions are authenticated by their senders, not by the node that
// relays them.
//
// Upon starting up, Tally reads a peers.json file in its data directory. It
// is a JSON array of "host:port" strings: the bootstrap list. The registry
// starts from that list and then grows as nodes exchange their registries in
// discovery rounds, and shrinks as unreachable peers are evicted. When the
// registry becomes empty, the bootstrap list is merged back in.
//
// A node never adds itself to its registry. It recognises its own address in
// any loopback form ("localhost", 127.0.0.1, ::1) but does not resolve other
// host names, so a bootstrap entry naming this node by a DNS name it is also
// reachable under would make it call itself. Advertise and bootstrap with the
// same form of the address.
package peers

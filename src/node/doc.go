// Package node implements the reactive component of a Tally node.
//
// A Node holds references to the peer registry, the ledger and the transaction
// pool, and runs three periodic protocols over the transport defined in the
// net package. Each protocol has its own ControlTimer, and a round is started
// only once the previous round of the same protocol has returned.
//
// Signal
//
// The discovery protocol. Every SignalInterval, the node sends its address and
// its registry to every known peer, which merges them and answers with its own
// registry. A peer that fails FailureThreshold consecutive calls is removed.
// When the registry is empty, it is seeded again from the bootstrap peers.
//
// Inform
//
// The state sync protocol. Every InformInterval, the node pulls from each peer
// the rows of its log beyond a per-peer cursor, and commits the transactions it
// does not know yet. Rows from several peers are replayed in a deterministic
// order: peers with the longest log first, and, among peers with logs of the
// same length, by timestamp then signature. Transactions that cannot be
// committed yet, typically because the transfer that funds the sender has not
// arrived, are retried in the following rounds.
//
// Blab
//
// The transaction gossip protocol. Every BlabInterval, the node drains its
// pool, commits the transactions locally, and pushes the ones it committed to
// every peer. Receivers validate pushed transactions like any other.
//
// Transactions are identified by their signature across the network. The
// sequence index of a row is local to the node that committed it.
package node

// Package tally is the composition root of a Tally node. A Tally reads its
// configuration and data directory, then constructs the ledger, the pool, the
// peer registry, the transport, the node and the HTTP API, and wires them
// together by passing explicit references.
package tally

package net

import (
	"github.com/mosaicnetworks/tally/src/ledger"
	"github.com/mosaicnetworks/tally/src/peers"
)

// PeersRequest is sent in discovery rounds. It carries the registry of the
// requester, which the responder merges into its own.
type PeersRequest struct {
	From  peers.Peer
	Peers []peers.Peer
}

// PeersResponse carries the registry of the responder.
type PeersResponse struct {
	From  peers.Peer
	Peers []peers.Peer
}

// PullRequest asks for the rows of the responder's log with a sequenceIndex
// greater than After, in ascending order. Limit caps the number of rows in
// the response; 0 lets the responder decide.
type PullRequest struct {
	From  peers.Peer
	After int64
	Limit int
}

// PullResponse returns a page of the responder's log. MaxIndex is the last
// sequenceIndex of the responder's log, whether or not it is in the page. The
// indexes of the rows are those of the responder.
type PullResponse struct {
	From         peers.Peer
	MaxIndex     int64
	Transactions []ledger.Transaction
}

// PushRequest delivers transactions the requester has just committed to its
// own log. The receiver validates them again before committing.
type PushRequest struct {
	From         peers.Peer
	Transactions []ledger.Transaction
}

// PushResponse indicates how many of the pushed transactions the responder
// committed or already had.
type PushResponse struct {
	From     peers.Peer
	Accepted int
}

// RPC is an inbound request waiting for its answer. Command is one of
// *PeersRequest, *PullRequest or *PushRequest.
type RPC struct {
	Command  interface{}
	RespChan chan<- RPCResponse
}

// RPCResponse is the answer to an RPC. A non-nil Error is sent to the
// requester as a string.
type RPCResponse struct {
	Response interface{}
	Error    error
}

// Respond answers the RPC. It must be called exactly once.
func (r *RPC) Respond(resp interface{}, err error) {
	r.RespChan <- RPCResponse{resp, err}
}

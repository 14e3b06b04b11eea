package node

import (
	"fmt"

	"github.com/mosaicnetworks/tally/src/ledger"
	"github.com/mosaicnetworks/tally/src/net"
	"github.com/mosaicnetworks/tally/src/peers"
	"github.com/sirupsen/logrus"
)

func (n *Node) processRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.PeersRequest:
		n.processPeersRequest(rpc, cmd)
	case *net.PullRequest:
		n.processPullRequest(rpc, cmd)
	case *net.PushRequest:
		n.processPushRequest(rpc, cmd)
	default:
		n.logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

// processPeersRequest merges the requester and its registry into ours, and
// replies with our registry.
func (n *Node) processPeersRequest(rpc net.RPC, cmd *net.PeersRequest) {
	known := make([]peers.Peer, 0, len(cmd.Peers)+1)
	known = append(known, cmd.From)
	known = append(known, cmd.Peers...)

	added := n.peers.Merge(known, n.self)

	if added > 0 {
		n.logger.WithFields(logrus.Fields{
			"from":  cmd.From.NetAddr(),
			"added": added,
		}).Debug("process PeersRequest")
	}

	resp := &net.PeersResponse{
		From:  n.self,
		Peers: n.peers.All(),
	}

	rpc.Respond(resp, nil)
}

// processPullRequest returns a page of our log.
func (n *Node) processPullRequest(rpc net.RPC, cmd *net.PullRequest) {
	limit := n.conf.SyncLimit
	if cmd.Limit > 0 && cmd.Limit < limit {
		limit = cmd.Limit
	}

	resp := &net.PullResponse{
		From: n.self,
	}

	rows, last, err := n.ledger.Since(cmd.After, limit)
	if err != nil {
		n.logger.WithError(err).Error("process PullRequest")
		rpc.Respond(resp, err)
		return
	}

	resp.MaxIndex = last
	resp.Transactions = make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		resp.Transactions = append(resp.Transactions, *row)
	}

	n.logger.WithFields(logrus.Fields{
		"from":      cmd.From.NetAddr(),
		"after":     cmd.After,
		"rows":      len(rows),
		"max_index": last,
	}).Debug("process PullRequest")

	rpc.Respond(resp, nil)
}

// processPushRequest validates and commits pushed transactions. Gossiped
// transactions go through the same checks as local ones.
func (n *Node) processPushRequest(rpc net.RPC, cmd *net.PushRequest) {
	accepted := 0
	for i := range cmd.Transactions {
		tx := cmd.Transactions[i]
		if n.commitRemote(&tx, "push") {
			accepted++
		}
	}

	n.logger.WithFields(logrus.Fields{
		"from":     cmd.From.NetAddr(),
		"pushed":   len(cmd.Transactions),
		"accepted": accepted,
	}).Debug("process PushRequest")

	rpc.Respond(&net.PushResponse{
		From:     n.self,
		Accepted: accepted,
	}, nil)
}

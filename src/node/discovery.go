package node

import (
	"sync/atomic"

	"github.com/mosaicnetworks/tally/src/net"
	"github.com/mosaicnetworks/tally/src/peers"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentCalls bounds the number of outbound calls of a single round.
const maxConcurrentCalls = 16

// signal is a round of the discovery protocol. The node sends its address and
// a snapshot of its registry to every known peer, and merges the registries
// they send back. A peer is evicted after FailureThreshold consecutive failed
// calls. When the registry is empty, it is seeded again from the bootstrap
// list.
func (n *Node) signal() {
	atomic.AddUint64(&n.signalRounds, 1)

	if n.peers.Len() == 0 && len(n.bootstrap) > 0 {
		if added := n.peers.Merge(n.bootstrap, n.self); added > 0 {
			n.logger.WithField("added", added).Info("Registry empty, reseeding from bootstrap peers")
		}
	}

	targets := n.peers.All()
	if len(targets) == 0 {
		return
	}

	args := net.PeersRequest{
		From:  n.self,
		Peers: targets,
	}
	timeout := n.conf.CallTimeout(n.conf.SignalInterval)

	var g errgroup.Group
	g.SetLimit(maxConcurrentCalls)

	for _, p := range targets {
		p := p
		g.Go(func() error {
			var out net.PeersResponse
			if err := n.trans.ExchangePeers(p.NetAddr(), timeout, &args, &out); err != nil {
				n.peerFailed(p, err)
				return nil
			}
			n.peerResponded(p)

			if added := n.peers.Merge(out.Peers, n.self); added > 0 {
				n.logger.WithFields(logrus.Fields{
					"from":  p.NetAddr(),
					"added": added,
				}).Debug("Discovered peers")
			}
			return nil
		})
	}

	g.Wait()
}

// peerFailed records a failed call and evicts the peer past the threshold.
func (n *Node) peerFailed(p peers.Peer, err error) {
	n.failLock.Lock()
	n.failures[p]++
	count := n.failures[p]
	evict := count >= n.conf.FailureThreshold
	if evict {
		delete(n.failures, p)
	}
	n.failLock.Unlock()

	n.logger.WithFields(logrus.Fields{
		"peer":     p.NetAddr(),
		"failures": count,
		"error":    err,
	}).Debug("Peer unreachable")

	if evict && n.peers.Remove(p) {
		n.logger.WithFields(logrus.Fields{
			"peer":     p.NetAddr(),
			"failures": count,
		}).Warn("Evicting peer")

		n.syncLock.Lock()
		delete(n.cursors, p)
		n.syncLock.Unlock()
	}
}

// peerResponded resets the failure counter of a peer.
func (n *Node) peerResponded(p peers.Peer) {
	n.failLock.Lock()
	delete(n.failures, p)
	n.failLock.Unlock()
}

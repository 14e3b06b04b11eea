package node

import (
	"sync/atomic"

	"github.com/mosaicnetworks/tally/src/common"
	"github.com/mosaicnetworks/tally/src/ledger"
	"github.com/mosaicnetworks/tally/src/net"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// blab is a round of the transaction gossip protocol. The node drains its
// pool, commits each transaction locally, and pushes the ones it committed to
// every known peer. Transactions that failed on a storage error go back to the
// pool; invalid or unfunded ones are dropped.
func (n *Node) blab() {
	atomic.AddUint64(&n.blabRounds, 1)

	batch := n.pool.Drain()
	if len(batch) == 0 {
		return
	}

	var (
		committed []ledger.Transaction
		retry     []*ledger.Transaction
	)

	for _, tx := range batch {
		row, fresh, err := n.ledger.Commit(tx)
		switch {
		case err == nil:
			if fresh {
				committed = append(committed, *row)
			}
		case common.Is(err, common.Storage):
			n.logger.WithError(err).Error("Commit")
			retry = append(retry, tx)
		default:
			n.logger.WithFields(logrus.Fields{
				"sender":   tx.Sender,
				"receiver": tx.Receiver,
				"amount":   tx.Amount,
				"error":    err,
			}).Warn("Dropping pooled transaction")
		}
	}

	n.pool.Requeue(retry)

	n.logger.WithFields(logrus.Fields{
		"drained":   len(batch),
		"committed": len(committed),
		"retry":     len(retry),
	}).Debug("Blab")

	if len(committed) > 0 {
		n.push(committed)
	}
}

// push sends committed transactions to every known peer. A peer that cannot be
// reached misses them in this round and gets them through state sync.
func (n *Node) push(txs []ledger.Transaction) {
	targets := n.peers.All()
	if len(targets) == 0 {
		return
	}

	args := net.PushRequest{
		From:         n.self,
		Transactions: txs,
	}
	timeout := n.conf.CallTimeout(n.conf.BlabInterval)

	var g errgroup.Group
	g.SetLimit(maxConcurrentCalls)

	for _, p := range targets {
		p := p
		g.Go(func() error {
			var out net.PushResponse
			if err := n.trans.PushTransactions(p.NetAddr(), timeout, &args, &out); err != nil {
				n.logger.WithFields(logrus.Fields{
					"peer":  p.NetAddr(),
					"error": err,
				}).Debug("PushTransactions")
				return nil
			}
			n.logger.WithFields(logrus.Fields{
				"peer":     p.NetAddr(),
				"pushed":   len(txs),
				"accepted": out.Accepted,
			}).Debug("PushResponse")
			return nil
		})
	}

	g.Wait()
}

package node

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/tally/src/common"
	"github.com/mosaicnetworks/tally/src/ledger"
	"github.com/mosaicnetworks/tally/src/net"
	"github.com/mosaicnetworks/tally/src/peers"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// deferredTx is a remote transaction that could not be committed yet, usually
// because the transaction that funds its sender has not arrived.
type deferredTx struct {
	tx       *ledger.Transaction
	attempts int
}

// pullResult is what a round learnt from one peer.
type pullResult struct {
	peer     peers.Peer
	maxIndex int64
	txs      []ledger.Transaction
}

// inform is a round of the state sync protocol. The node pulls, from every
// known peer, the rows of its log beyond what it has already seen from that
// peer, and commits the transactions it does not have, in the order given by
// replayOrder. Remote transactions that cannot be committed yet are retried in
// the next rounds.
func (n *Node) inform() {
	atomic.AddUint64(&n.informRounds, 1)

	n.retryDeferred()

	targets := n.peers.All()
	if len(targets) == 0 {
		return
	}

	deadline := time.Now().Add(n.conf.CallTimeout(n.conf.InformInterval))

	var (
		g       errgroup.Group
		resLock sync.Mutex
		results []pullResult
	)
	g.SetLimit(maxConcurrentCalls)

	for _, p := range targets {
		p := p
		g.Go(func() error {
			res, ok := n.pullFrom(p, deadline)
			if ok {
				resLock.Lock()
				results = append(results, res)
				resLock.Unlock()
			}
			return nil
		})
	}

	g.Wait()

	n.replay(replayOrder(results))

	// cursors move only once the rows have been replayed
	n.syncLock.Lock()
	for _, res := range results {
		if len(res.txs) > 0 {
			n.cursors[res.peer] = res.txs[len(res.txs)-1].Index
		}
	}
	n.syncLock.Unlock()

	n.logStats()
}

// pullFrom reads the suffix of a peer's log beyond the cursor, page by page,
// until it has all of it or the deadline is reached.
func (n *Node) pullFrom(p peers.Peer, deadline time.Time) (pullResult, bool) {
	n.syncLock.Lock()
	after := n.cursors[p]
	n.syncLock.Unlock()

	res := pullResult{peer: p}
	cursor := after
	ok := false

	for {
		timeout := time.Until(deadline)
		if timeout <= 0 {
			break
		}

		args := net.PullRequest{
			From:  n.self,
			After: cursor,
			Limit: n.conf.SyncLimit,
		}
		var out net.PullResponse

		atomic.AddUint64(&n.syncRequests, 1)
		if err := n.trans.PullLog(p.NetAddr(), timeout, &args, &out); err != nil {
			atomic.AddUint64(&n.syncErrors, 1)
			n.logger.WithFields(logrus.Fields{
				"peer":  p.NetAddr(),
				"error": err,
			}).Debug("PullLog")
			break
		}

		ok = true
		res.maxIndex = out.MaxIndex

		// the peer's log is shorter than what we saw: it was reset
		if out.MaxIndex < cursor {
			n.logger.WithFields(logrus.Fields{
				"peer":      p.NetAddr(),
				"cursor":    cursor,
				"max_index": out.MaxIndex,
			}).Info("Peer log went backwards, pulling from the start")

			n.syncLock.Lock()
			n.cursors[p] = 0
			n.syncLock.Unlock()

			cursor = 0
			res.txs = nil
			continue
		}

		if len(out.Transactions) == 0 {
			break
		}

		res.txs = append(res.txs, out.Transactions...)
		cursor = out.Transactions[len(out.Transactions)-1].Index

		if cursor >= out.MaxIndex {
			break
		}
	}

	return res, ok
}

// replayOrder merges the rows pulled from several peers into the order in
// which they are committed locally. Peers with a longer log come first. The
// rows of a peer are taken in the order of its own log; the rows of peers with
// logs of the same length are interleaved by timestamp, then by signature.
// Each signature appears once, at its first position.
//
// The order only decides between rows this node has not committed yet. The
// log has no rollback: a transaction already committed here is never undone
// in favour of a longer remote log, so two nodes that each committed one side
// of a double spend keep their own winner.
func replayOrder(results []pullResult) []ledger.Transaction {
	sorted := make([]pullResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].maxIndex != sorted[j].maxIndex {
			return sorted[i].maxIndex > sorted[j].maxIndex
		}
		return sorted[i].peer.NetAddr() < sorted[j].peer.NetAddr()
	})

	var ordered []ledger.Transaction

	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j].maxIndex == sorted[i].maxIndex {
			j++
		}

		if j-i == 1 {
			txs := make([]ledger.Transaction, len(sorted[i].txs))
			copy(txs, sorted[i].txs)
			sort.SliceStable(txs, func(a, b int) bool {
				return txs[a].Index < txs[b].Index
			})
			ordered = append(ordered, txs...)
		} else {
			var txs []ledger.Transaction
			for _, res := range sorted[i:j] {
				txs = append(txs, res.txs...)
			}
			sort.SliceStable(txs, func(a, b int) bool {
				if txs[a].Timestamp != txs[b].Timestamp {
					return txs[a].Timestamp < txs[b].Timestamp
				}
				return txs[a].Signature < txs[b].Signature
			})
			ordered = append(ordered, txs...)
		}

		i = j
	}

	seen := make(map[string]struct{}, len(ordered))
	res := make([]ledger.Transaction, 0, len(ordered))
	for _, tx := range ordered {
		if _, ok := seen[tx.Signature]; ok {
			continue
		}
		seen[tx.Signature] = struct{}{}
		res = append(res, tx)
	}

	return res
}

// replay commits remote transactions in order.
func (n *Node) replay(txs []ledger.Transaction) {
	committed := 0
	for i := range txs {
		if n.ledger.Contains(txs[i].Signature) {
			continue
		}
		if n.commitRemote(&txs[i], "sync") {
			committed++
		}
	}

	if committed > 0 {
		n.logger.WithFields(logrus.Fields{
			"received":  len(txs),
			"committed": committed,
		}).Debug("Replayed")
	}
}

// commitRemote commits a transaction received from a peer, and reports
// whether it is now in the log. Transactions that fail for lack of funds or
// because of a storage error are deferred; invalid ones are dropped.
func (n *Node) commitRemote(tx *ledger.Transaction, source string) bool {
	_, fresh, err := n.ledger.Commit(tx)
	if err == nil {
		if fresh {
			n.logger.WithFields(logrus.Fields{
				"source":   source,
				"sender":   tx.Sender,
				"receiver": tx.Receiver,
				"amount":   tx.Amount,
				"origin":   tx.Origin,
			}).Debug("Committed remote transaction")
		}
		return true
	}

	if common.Is(err, common.InsufficientFunds) || common.Is(err, common.Storage) {
		n.deferTx(tx)
		n.logger.WithFields(logrus.Fields{
			"source": source,
			"error":  err,
		}).Debug("Deferring remote transaction")
		return false
	}

	n.logger.WithFields(logrus.Fields{
		"source": source,
		"origin": tx.Origin,
		"error":  err,
	}).Warn("Rejected remote transaction")

	return false
}

func (n *Node) deferTx(tx *ledger.Transaction) {
	n.syncLock.Lock()
	defer n.syncLock.Unlock()

	if _, ok := n.deferred[tx.Signature]; !ok {
		n.deferred[tx.Signature] = &deferredTx{tx: tx.Copy()}
	}
}

// retryDeferred attempts to commit the deferred transactions again, oldest
// first. A transaction is dropped after SyncRetries failed attempts.
func (n *Node) retryDeferred() {
	n.syncLock.Lock()
	pending := make([]*deferredTx, 0, len(n.deferred))
	for _, d := range n.deferred {
		pending = append(pending, d)
	}
	n.syncLock.Unlock()

	if len(pending) == 0 {
		return
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].tx.Timestamp != pending[j].tx.Timestamp {
			return pending[i].tx.Timestamp < pending[j].tx.Timestamp
		}
		return pending[i].tx.Signature < pending[j].tx.Signature
	})

	for _, d := range pending {
		_, _, err := n.ledger.Commit(d.tx)

		n.syncLock.Lock()
		switch {
		case err == nil:
			delete(n.deferred, d.tx.Signature)
		case common.Is(err, common.InsufficientFunds) || common.Is(err, common.Storage):
			d.attempts++
			if d.attempts >= n.conf.SyncRetries {
				delete(n.deferred, d.tx.Signature)
				n.logger.WithFields(logrus.Fields{
					"sender":   d.tx.Sender,
					"amount":   d.tx.Amount,
					"attempts": d.attempts,
					"error":    err,
				}).Warn("Dropping deferred transaction")
			}
		default:
			delete(n.deferred, d.tx.Signature)
		}
		n.syncLock.Unlock()
	}
}

func (n *Node) deferredLen() int {
	n.syncLock.Lock()
	defer n.syncLock.Unlock()

	return len(n.deferred)
}

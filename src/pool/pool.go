// Package pool holds the transactions a node has accepted from clients and not
// yet pushed to its peers.
package pool

import (
	"sync"

	"github.com/mosaicnetworks/tally/src/ledger"
)

// Pool is a FIFO set of transactions keyed by signature. A signature is in the
// pool at most once. Drain empties the pool atomically, so a transaction added
// concurrently with a drain is either in the drained batch or stays in the
// pool, never lost and never in both.
type Pool struct {
	l     sync.Mutex
	queue []*ledger.Transaction
	index map[string]struct{}
}

// NewPool creates an empty Pool.
func NewPool() *Pool {
	return &Pool{
		index: make(map[string]struct{}),
	}
}

// Add enqueues tx. It returns false if a transaction with the same signature
// is already pending.
func (p *Pool) Add(tx *ledger.Transaction) bool {
	p.l.Lock()
	defer p.l.Unlock()

	if _, ok := p.index[tx.Signature]; ok {
		return false
	}

	p.index[tx.Signature] = struct{}{}
	p.queue = append(p.queue, tx)

	return true
}

// Drain removes and returns every pending transaction in insertion order.
func (p *Pool) Drain() []*ledger.Transaction {
	p.l.Lock()
	defer p.l.Unlock()

	batch := p.queue
	p.queue = nil
	p.index = make(map[string]struct{})

	return batch
}

// Requeue puts back transactions that could not be delivered. They go ahead of
// anything added since the drain. Signatures already pending are skipped.
func (p *Pool) Requeue(txs []*ledger.Transaction) {
	if len(txs) == 0 {
		return
	}

	p.l.Lock()
	defer p.l.Unlock()

	front := make([]*ledger.Transaction, 0, len(txs)+len(p.queue))
	for _, tx := range txs {
		if _, ok := p.index[tx.Signature]; ok {
			continue
		}
		p.index[tx.Signature] = struct{}{}
		front = append(front, tx)
	}

	p.queue = append(front, p.queue...)
}

// Len returns the number of pending transactions.
func (p *Pool) Len() int {
	p.l.Lock()
	defer p.l.Unlock()

	return len(p.queue)
}

// Snapshot returns the pending transactions without removing them.
func (p *Pool) Snapshot() []*ledger.Transaction {
	p.l.Lock()
	defer p.l.Unlock()

	res := make([]*ledger.Transaction, len(p.queue))
	copy(res, p.queue)

	return res
}

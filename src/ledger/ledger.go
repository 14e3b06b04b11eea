package ledger

import (
	"math"
	"sync"
	"time"

	"github.com/mosaicnetworks/tally/src/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// pageSize is the number of rows read at a time when scanning the whole log.
const pageSize = 1000

// Ledger guards a Store with the rules of the system: every row is signed by
// its sender, no address ever has a negative balance, and sequenceIndexes are
// assigned here, in commit order, with no gaps.
//
// Balances are a projection of the log, kept in memory and rebuilt from the
// Store when the Ledger is created:
//
//	balance(A) = genesis(A) + Σ(amount received) − Σ(amount sent)
type Ledger struct {
	l        sync.RWMutex
	store    Store
	genesis  Genesis
	balances map[string]uint64
	logger   *logrus.Entry
}

// NewLedger creates a Ledger over store and rebuilds the balance projection by
// replaying every row.
func NewLedger(store Store, genesis Genesis, logger *logrus.Entry) (*Ledger, error) {
	if genesis == nil {
		genesis = Genesis{}
	}

	ledger := &Ledger{
		store:    store,
		genesis:  genesis,
		balances: make(map[string]uint64),
		logger:   logger.WithField("component", "ledger"),
	}

	for addr, amount := range genesis {
		ledger.balances[addr] = amount
	}

	err := ledger.scan(func(tx *Transaction) error {
		if ledger.balances[tx.Sender] < tx.Amount {
			return errors.Errorf("row %d overdraws %s", tx.Index, tx.Sender)
		}
		ledger.apply(tx)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "rebuilding balances")
	}

	ledger.logger.WithFields(logrus.Fields{
		"last_index": store.LastIndex(),
		"addresses":  len(ledger.balances),
	}).Debug("Ledger loaded")

	return ledger, nil
}

// Commit appends tx to the log. It is an atomic check-then-append: the
// signature is verified, the sender's balance is checked, the next
// sequenceIndex is assigned and the row is persisted, all under the ledger
// lock. On any error nothing is written and no balance changes.
//
// A transaction whose signature is already in the log is not appended again;
// Commit returns the existing row and fresh=false.
//
// The argument is not modified. The returned row carries the local
// sequenceIndex. When the caller did not set a Timestamp, the commit time is
// used.
func (l *Ledger) Commit(tx *Transaction) (row *Transaction, fresh bool, err error) {
	l.l.Lock()
	defer l.l.Unlock()

	existing, err := l.store.GetBySignature(tx.Signature)
	if err == nil {
		return existing, false, nil
	}
	if !common.IsStore(err, common.KeyNotFound) {
		return nil, false, common.NewStorageErr("lookup signature", err)
	}

	if err := tx.Validate(); err != nil {
		return nil, false, err
	}

	balance := l.balances[tx.Sender]
	if balance < tx.Amount {
		return nil, false, common.NewInsufficientFundsErr(tx.Sender, balance, tx.Amount)
	}

	if l.balances[tx.Receiver] > math.MaxUint64-tx.Amount {
		return nil, false, common.NewValidationErr("receiver balance overflow")
	}

	row = tx.Copy()
	row.Index = l.store.LastIndex() + 1
	if row.Timestamp == 0 {
		row.Timestamp = time.Now().UnixNano()
	}

	if err := l.store.Append(row); err != nil {
		return nil, false, common.NewStorageErr("append", err)
	}

	l.apply(row)

	l.logger.WithFields(logrus.Fields{
		"index":    row.Index,
		"sender":   row.Sender,
		"receiver": row.Receiver,
		"amount":   row.Amount,
		"origin":   row.Origin,
	}).Debug("Commit")

	return row, true, nil
}

// apply updates the projection. The caller holds the write lock and has
// checked the sender's balance.
func (l *Ledger) apply(tx *Transaction) {
	l.balances[tx.Sender] -= tx.Amount
	l.balances[tx.Receiver] += tx.Amount
}

// Balance returns the balance of an address from the projection.
func (l *Ledger) Balance(address string) uint64 {
	l.l.RLock()
	defer l.l.RUnlock()

	return l.balances[address]
}

// RecomputeBalance derives the balance of an address from the log alone. It
// is slow and only meant to cross-check the projection.
func (l *Ledger) RecomputeBalance(address string) (uint64, error) {
	l.l.RLock()
	defer l.l.RUnlock()

	var received, sent uint64
	received = l.genesis[address]

	offset := 0
	for {
		rows, err := l.store.AddressTransactions(address, pageSize, offset)
		if err != nil {
			return 0, common.NewStorageErr("address scan", err)
		}
		for _, tx := range rows {
			if tx.Receiver == address {
				received += tx.Amount
			}
			if tx.Sender == address {
				sent += tx.Amount
			}
		}
		if len(rows) < pageSize {
			break
		}
		offset += len(rows)
	}

	if sent > received {
		return 0, errors.Errorf("%s is overdrawn by %d", address, sent-received)
	}

	return received - sent, nil
}

// Contains reports whether a transaction with this signature is committed.
func (l *Ledger) Contains(signature string) bool {
	_, err := l.store.GetBySignature(signature)
	return err == nil
}

// Transactions returns the rows where address is the sender or the receiver,
// ordered by ascending sequenceIndex.
func (l *Ledger) Transactions(address string, limit, offset int) ([]*Transaction, error) {
	l.l.RLock()
	defer l.l.RUnlock()

	rows, err := l.store.AddressTransactions(address, limit, offset)
	if err != nil {
		return nil, common.NewStorageErr("address transactions", err)
	}
	return rows, nil
}

// Since returns up to limit rows committed after the given sequenceIndex, and
// the last sequenceIndex of the log.
func (l *Ledger) Since(after int64, limit int) ([]*Transaction, int64, error) {
	l.l.RLock()
	defer l.l.RUnlock()

	rows, err := l.store.Range(after, limit)
	if err != nil {
		return nil, 0, common.NewStorageErr("range", err)
	}
	return rows, l.store.LastIndex(), nil
}

// LastIndex returns the sequenceIndex of the last committed row.
func (l *Ledger) LastIndex() int64 {
	l.l.RLock()
	defer l.l.RUnlock()

	return l.store.LastIndex()
}

// Close closes the underlying Store.
func (l *Ledger) Close() error {
	l.l.Lock()
	defer l.l.Unlock()

	return l.store.Close()
}

func (l *Ledger) scan(fn func(*Transaction) error) error {
	var after int64
	for {
		rows, err := l.store.Range(after, pageSize)
		if err != nil {
			return err
		}
		for _, tx := range rows {
			if err := fn(tx); err != nil {
				return err
			}
			after = tx.Index
		}
		if len(rows) < pageSize {
			return nil
		}
	}
}

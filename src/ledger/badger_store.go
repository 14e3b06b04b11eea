package ledger

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/tally/src/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	txPrefix   = "tx"
	sigPrefix  = "sig"
	addrPrefix = "addr"
)

// BadgerStore implements the Store interface on top of a Badger database. Each
// row is stored once, under its sequenceIndex, together with two kinds of
// secondary index entries: signature => index, and address|index => index for
// the sender and the receiver. All the keys of a row are written in the same
// Badger transaction.
type BadgerStore struct {
	db        *badger.DB
	path      string
	lastIndex int64
}

// NewBadgerStore opens the database at path, creating it if necessary, and
// recovers the last sequenceIndex.
func NewBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithLogger(logger.WithField("component", "badger"))

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		db:   handle,
		path: path,
	}

	last, err := store.dbLastIndex()
	if err != nil {
		handle.Close()
		return nil, err
	}
	store.lastIndex = last

	return store, nil
}

//==============================================================================
//Keys

func txKey(index int64) []byte {
	return []byte(fmt.Sprintf("%s_%020d", txPrefix, index))
}

func sigKey(signature string) []byte {
	return []byte(fmt.Sprintf("%s_%s", sigPrefix, signature))
}

func addrPrefixKey(address string) []byte {
	return []byte(fmt.Sprintf("%s_%s_", addrPrefix, address))
}

func addrKey(address string, index int64) []byte {
	return []byte(fmt.Sprintf("%s_%s_%020d", addrPrefix, address, index))
}

//==============================================================================
//Implement the Store interface

// LastIndex implements the Store interface.
func (s *BadgerStore) LastIndex() int64 {
	return atomic.LoadInt64(&s.lastIndex)
}

// Append implements the Store interface.
func (s *BadgerStore) Append(tx *Transaction) error {
	last := s.LastIndex()
	if tx.Index != last+1 {
		return cm.NewStoreErr("Transaction", cm.SkippedIndex, strconv.FormatInt(tx.Index, 10))
	}

	val, err := tx.Marshal()
	if err != nil {
		return err
	}

	index := []byte(strconv.FormatInt(tx.Index, 10))

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(sigKey(tx.Signature))
		if err == nil {
			return cm.NewStoreErr("Transaction", cm.KeyAlreadyExists, tx.Signature)
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		//insert [tx_index] => [row bytes]
		if err := txn.Set(txKey(tx.Index), val); err != nil {
			return err
		}
		//insert [sig_signature] => [index]
		if err := txn.Set(sigKey(tx.Signature), index); err != nil {
			return err
		}
		//insert [addr_address_index] => [index] for both parties
		if err := txn.Set(addrKey(tx.Sender, tx.Index), index); err != nil {
			return err
		}
		return txn.Set(addrKey(tx.Receiver, tx.Index), index)
	})
	if err != nil {
		return err
	}

	atomic.StoreInt64(&s.lastIndex, tx.Index)

	return nil
}

// GetTransaction implements the Store interface.
func (s *BadgerStore) GetTransaction(index int64) (*Transaction, error) {
	var tx *Transaction
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		tx, err = dbGetTransaction(txn, index)
		return err
	})
	return tx, mapError(err, "Transaction", strconv.FormatInt(index, 10))
}

// GetBySignature implements the Store interface.
func (s *BadgerStore) GetBySignature(signature string) (*Transaction, error) {
	var tx *Transaction
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sigKey(signature))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		index, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return err
		}
		tx, err = dbGetTransaction(txn, index)
		return err
	})
	return tx, mapError(err, "Signature", signature)
}

// Range implements the Store interface.
func (s *BadgerStore) Range(after int64, limit int) ([]*Transaction, error) {
	if after < 0 {
		after = 0
	}

	res := []*Transaction{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(txPrefix + "_")
		for it.Seek(txKey(after + 1)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(res) >= limit {
				break
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			tx := new(Transaction)
			if err := tx.Unmarshal(val); err != nil {
				return err
			}
			res = append(res, tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AddressTransactions implements the Store interface.
func (s *BadgerStore) AddressTransactions(address string, limit, offset int) ([]*Transaction, error) {
	res := []*Transaction{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := addrPrefixKey(address)
		skipped := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if limit > 0 && len(res) >= limit {
				break
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			index, err := strconv.ParseInt(string(val), 10, 64)
			if err != nil {
				return err
			}
			tx, err := dbGetTransaction(txn, index)
			if err != nil {
				return err
			}
			res = append(res, tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

//==============================================================================
//DB Methods

func dbGetTransaction(txn *badger.Txn, index int64) (*Transaction, error) {
	item, err := txn.Get(txKey(index))
	if err != nil {
		return nil, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	tx := new(Transaction)
	if err := tx.Unmarshal(val); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *BadgerStore) dbLastIndex() (int64, error) {
	var last int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(txPrefix + "_")
		seek := append(append([]byte{}, prefix...), 0xFF)
		it.Seek(seek)
		if !it.ValidForPrefix(prefix) {
			return nil
		}

		var err error
		last, err = strconv.ParseInt(string(it.Item().Key()[len(prefix):]), 10, 64)
		return err
	})
	return last, errors.Wrap(err, "recovering last index")
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++

func mapError(err error, name, key string) error {
	if err == badger.ErrKeyNotFound {
		return cm.NewStoreErr(name, cm.KeyNotFound, key)
	}
	return err
}

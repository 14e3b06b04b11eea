package ledger

import (
	"strconv"
	"sync"

	cm "github.com/mosaicnetworks/tally/src/common"
)

// InmemStore implements the Store interface in memory. Nothing survives a
// restart, so it is meant for tests and throwaway nodes.
type InmemStore struct {
	l           sync.RWMutex
	rows        []*Transaction     //rows[i].Index == i+1
	bySignature map[string]int64   //signature => index
	byAddress   map[string][]int64 //address => ascending indexes
}

// NewInmemStore creates an empty InmemStore.
func NewInmemStore() *InmemStore {
	return &InmemStore{
		bySignature: make(map[string]int64),
		byAddress:   make(map[string][]int64),
	}
}

// LastIndex implements the Store interface.
func (s *InmemStore) LastIndex() int64 {
	s.l.RLock()
	defer s.l.RUnlock()

	return int64(len(s.rows))
}

// Append implements the Store interface.
func (s *InmemStore) Append(tx *Transaction) error {
	s.l.Lock()
	defer s.l.Unlock()

	if tx.Index != int64(len(s.rows))+1 {
		return cm.NewStoreErr("Transaction", cm.SkippedIndex, strconv.FormatInt(tx.Index, 10))
	}

	if _, ok := s.bySignature[tx.Signature]; ok {
		return cm.NewStoreErr("Transaction", cm.KeyAlreadyExists, tx.Signature)
	}

	row := tx.Copy()

	s.rows = append(s.rows, row)
	s.bySignature[row.Signature] = row.Index
	s.byAddress[row.Sender] = append(s.byAddress[row.Sender], row.Index)
	s.byAddress[row.Receiver] = append(s.byAddress[row.Receiver], row.Index)

	return nil
}

// GetTransaction implements the Store interface.
func (s *InmemStore) GetTransaction(index int64) (*Transaction, error) {
	s.l.RLock()
	defer s.l.RUnlock()

	return s.get(index)
}

func (s *InmemStore) get(index int64) (*Transaction, error) {
	if index < 1 || index > int64(len(s.rows)) {
		return nil, cm.NewStoreErr("Transaction", cm.KeyNotFound, strconv.FormatInt(index, 10))
	}
	return s.rows[index-1].Copy(), nil
}

// GetBySignature implements the Store interface.
func (s *InmemStore) GetBySignature(signature string) (*Transaction, error) {
	s.l.RLock()
	defer s.l.RUnlock()

	index, ok := s.bySignature[signature]
	if !ok {
		return nil, cm.NewStoreErr("Signature", cm.KeyNotFound, signature)
	}
	return s.get(index)
}

// Range implements the Store interface.
func (s *InmemStore) Range(after int64, limit int) ([]*Transaction, error) {
	s.l.RLock()
	defer s.l.RUnlock()

	if after < 0 {
		after = 0
	}

	res := []*Transaction{}
	for i := after; i < int64(len(s.rows)); i++ {
		if limit > 0 && len(res) >= limit {
			break
		}
		res = append(res, s.rows[i].Copy())
	}

	return res, nil
}

// AddressTransactions implements the Store interface.
func (s *InmemStore) AddressTransactions(address string, limit, offset int) ([]*Transaction, error) {
	s.l.RLock()
	defer s.l.RUnlock()

	indexes := s.byAddress[address]

	if offset < 0 {
		offset = 0
	}

	res := []*Transaction{}
	for i := offset; i < len(indexes); i++ {
		if limit > 0 && len(res) >= limit {
			break
		}
		tx, err := s.get(indexes[i])
		if err != nil {
			return nil, err
		}
		res = append(res, tx)
	}

	return res, nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface. InmemStore has no path.
func (s *InmemStore) StorePath() string {
	return ""
}

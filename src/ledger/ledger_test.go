package ledger

import (
	"crypto/ed25519"
	"io/ioutil"
	"os"
	"sync"
	"testing"

	"github.com/mosaicnetworks/tally/src/common"
	"github.com/mosaicnetworks/tally/src/crypto/keys"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type account struct {
	addr string
	priv ed25519.PrivateKey
}

func newAccount(t testing.TB) account {
	pub, priv, err := keys.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	return account{keys.PublicKeyString(pub), priv}
}

func transfer(from, to account, amount uint64, origin string) *Transaction {
	tx := NewTransaction(from.addr, to.addr, amount, origin)
	tx.Sign(from.priv)
	return tx
}

type storeMaker func(t *testing.T) (Store, func())

func inmemMaker(t *testing.T) (Store, func()) {
	return NewInmemStore(), func() {}
}

func badgerMaker(t *testing.T) (Store, func()) {
	os.Mkdir("test_data", os.ModeDir|0777)
	dir, err := ioutil.TempDir("test_data", "badger")
	if err != nil {
		t.Fatal(err)
	}

	store, err := NewBadgerStore(dir, common.NewTestEntry(t, logrus.WarnLevel))
	if err != nil {
		t.Fatal(err)
	}

	return store, func() {
		store.Close()
		os.RemoveAll(dir)
	}
}

var backends = map[string]storeMaker{
	"inmem":  inmemMaker,
	"badger": badgerMaker,
}

func newTestLedger(t *testing.T, store Store, genesis Genesis) *Ledger {
	ledger, err := NewLedger(store, genesis, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}
	return ledger
}

func TestCommitFromEmptyBalance(t *testing.T) {
	for name, maker := range backends {
		t.Run(name, func(t *testing.T) {
			store, cleanup := maker(t)
			defer cleanup()

			p1, p2 := newAccount(t), newAccount(t)
			ledger := newTestLedger(t, store, nil)

			_, _, err := ledger.Commit(transfer(p1, p2, 10, "node0:1337"))
			if !common.Is(err, common.InsufficientFunds) {
				t.Fatalf("expected InsufficientFunds, got %v", err)
			}

			if b := ledger.Balance(p1.addr); b != 0 {
				t.Fatalf("balance(P1) should be 0, not %d", b)
			}
			if ledger.LastIndex() != 0 {
				t.Fatalf("nothing should have been written")
			}
		})
	}
}

func TestCommitTransfer(t *testing.T) {
	for name, maker := range backends {
		t.Run(name, func(t *testing.T) {
			store, cleanup := maker(t)
			defer cleanup()

			p0, p1, p2 := newAccount(t), newAccount(t), newAccount(t)
			ledger := newTestLedger(t, store, Genesis{p0.addr: 100})

			if _, _, err := ledger.Commit(transfer(p0, p1, 50, "node0:1337")); err != nil {
				t.Fatal(err)
			}

			prior := ledger.LastIndex()
			before := ledger.Balance(p2.addr)

			row, fresh, err := ledger.Commit(transfer(p1, p2, 20, "node0:1337"))
			if err != nil {
				t.Fatal(err)
			}
			if !fresh {
				t.Fatalf("row should be fresh")
			}
			if row.Index != prior+1 {
				t.Fatalf("sequenceIndex should be %d, not %d", prior+1, row.Index)
			}
			if row.Timestamp == 0 {
				t.Fatalf("timestamp should be set on commit")
			}

			if b := ledger.Balance(p1.addr); b != 30 {
				t.Fatalf("balance(P1) should be 30, not %d", b)
			}
			if b := ledger.Balance(p2.addr); b != before+20 {
				t.Fatalf("balance(P2) should be %d, not %d", before+20, b)
			}

			for _, a := range []account{p0, p1, p2} {
				recomputed, err := ledger.RecomputeBalance(a.addr)
				if err != nil {
					t.Fatal(err)
				}
				if recomputed != ledger.Balance(a.addr) {
					t.Fatalf("projection %d differs from log %d", ledger.Balance(a.addr), recomputed)
				}
			}
		})
	}
}

func TestCommitIdempotent(t *testing.T) {
	p0, p1 := newAccount(t), newAccount(t)
	ledger := newTestLedger(t, NewInmemStore(), Genesis{p0.addr: 10})

	tx := transfer(p0, p1, 4, "node0:1337")

	first, fresh, err := ledger.Commit(tx)
	if err != nil || !fresh {
		t.Fatalf("first commit: fresh=%v err=%v", fresh, err)
	}

	// another node may relay the same transaction with another index
	relayed := tx.Copy()
	relayed.Index = 99

	second, fresh, err := ledger.Commit(relayed)
	if err != nil {
		t.Fatal(err)
	}
	if fresh {
		t.Fatalf("second commit should not be fresh")
	}
	if second.Index != first.Index {
		t.Fatalf("second commit should return the existing row")
	}
	if ledger.LastIndex() != 1 {
		t.Fatalf("log should contain one row, not %d", ledger.LastIndex())
	}
	if ledger.Balance(p0.addr) != 6 || ledger.Balance(p1.addr) != 4 {
		t.Fatalf("balances should be applied once")
	}
	if !ledger.Contains(tx.Signature) {
		t.Fatalf("signature should be known")
	}
}

func TestCommitRejectsInvalid(t *testing.T) {
	p0, p1, p2 := newAccount(t), newAccount(t), newAccount(t)
	ledger := newTestLedger(t, NewInmemStore(), Genesis{p0.addr: 10})

	forged := NewTransaction(p0.addr, p1.addr, 5, "node0:1337")
	forged.Sign(p2.priv)

	tampered := transfer(p0, p1, 5, "node0:1337")
	tampered.Amount = 6

	zero := transfer(p0, p1, 0, "node0:1337")
	self := transfer(p0, p0, 1, "node0:1337")

	cases := []struct {
		name string
		tx   *Transaction
		typ  common.ErrType
	}{
		{"forged", forged, common.InvalidSignature},
		{"tampered", tampered, common.InvalidSignature},
		{"zero amount", zero, common.Validation},
		{"self transfer", self, common.Validation},
	}

	for _, c := range cases {
		_, _, err := ledger.Commit(c.tx)
		if !common.Is(err, c.typ) {
			t.Fatalf("%s: expected %v, got %v", c.name, c.typ, err)
		}
	}

	if ledger.LastIndex() != 0 {
		t.Fatalf("nothing should have been written")
	}
	if ledger.Balance(p0.addr) != 10 {
		t.Fatalf("balance should not have changed")
	}
}

// failingStore fails every Append while broken is set.
type failingStore struct {
	Store
	mu     sync.Mutex
	broken bool
}

func (s *failingStore) setBroken(b bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken = b
}

func (s *failingStore) Append(tx *Transaction) error {
	s.mu.Lock()
	broken := s.broken
	s.mu.Unlock()
	if broken {
		return errors.New("disk full")
	}
	return s.Store.Append(tx)
}

func TestCommitStorageFailure(t *testing.T) {
	for name, maker := range backends {
		t.Run(name, func(t *testing.T) {
			store, cleanup := maker(t)
			defer cleanup()

			p1, p2 := newAccount(t), newAccount(t)
			failing := &failingStore{Store: store, broken: true}
			ledger := newTestLedger(t, failing, Genesis{p1.addr: 50})

			tx := transfer(p1, p2, 20, "node0:1337")

			_, _, err := ledger.Commit(tx)
			if !common.Is(err, common.Storage) {
				t.Fatalf("expected Storage error, got %v", err)
			}
			if ledger.LastIndex() != 0 {
				t.Fatalf("last index should be 0, not %d", ledger.LastIndex())
			}
			if ledger.Balance(p1.addr) != 50 || ledger.Balance(p2.addr) != 0 {
				t.Fatalf("balances should not have changed: p1=%d p2=%d",
					ledger.Balance(p1.addr), ledger.Balance(p2.addr))
			}
			if ledger.Contains(tx.Signature) {
				t.Fatalf("failed commit should not be visible")
			}

			failing.setBroken(false)

			row, fresh, err := ledger.Commit(tx)
			if err != nil {
				t.Fatal(err)
			}
			if !fresh || row.Index != 1 {
				t.Fatalf("expected fresh row at index 1, got fresh=%v index=%d", fresh, row.Index)
			}
			if ledger.Balance(p1.addr) != 30 || ledger.Balance(p2.addr) != 20 {
				t.Fatalf("wrong balances after recovery: p1=%d p2=%d",
					ledger.Balance(p1.addr), ledger.Balance(p2.addr))
			}
		})
	}
}

func TestConcurrentOverdraw(t *testing.T) {
	for name, maker := range backends {
		t.Run(name, func(t *testing.T) {
			store, cleanup := maker(t)
			defer cleanup()

			p1, p2, p3 := newAccount(t), newAccount(t), newAccount(t)
			ledger := newTestLedger(t, store, Genesis{p1.addr: 10})

			txs := []*Transaction{
				transfer(p1, p2, 7, "nodeA:1337"),
				transfer(p1, p3, 7, "nodeB:1337"),
			}

			var wg sync.WaitGroup
			errs := make([]error, len(txs))
			for i, tx := range txs {
				wg.Add(1)
				go func(i int, tx *Transaction) {
					defer wg.Done()
					_, _, errs[i] = ledger.Commit(tx)
				}(i, tx)
			}
			wg.Wait()

			committed := 0
			for _, err := range errs {
				switch {
				case err == nil:
					committed++
				case !common.Is(err, common.InsufficientFunds):
					t.Fatalf("unexpected error %v", err)
				}
			}
			if committed != 1 {
				t.Fatalf("exactly one transaction should commit, not %d", committed)
			}

			checkNeverNegative(t, ledger, Genesis{p1.addr: 10})
		})
	}
}

func TestConcurrentSequencing(t *testing.T) {
	const n = 50

	funder := newAccount(t)
	ledger := newTestLedger(t, NewInmemStore(), Genesis{funder.addr: n})

	txs := make([]*Transaction, n)
	for i := range txs {
		txs[i] = transfer(funder, newAccount(t), 1, "node0:1337")
	}

	var wg sync.WaitGroup
	for _, tx := range txs {
		wg.Add(1)
		go func(tx *Transaction) {
			defer wg.Done()
			if _, _, err := ledger.Commit(tx); err != nil {
				t.Error(err)
			}
		}(tx)
	}
	wg.Wait()

	rows, last, err := ledger.Since(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if last != n || len(rows) != n {
		t.Fatalf("expected %d rows, got %d (last %d)", n, len(rows), last)
	}
	for i, row := range rows {
		if row.Index != int64(i+1) {
			t.Fatalf("row %d has sequenceIndex %d", i, row.Index)
		}
	}
	if ledger.Balance(funder.addr) != 0 {
		t.Fatalf("funder should be drained")
	}
}

func TestTransactionsPagination(t *testing.T) {
	for name, maker := range backends {
		t.Run(name, func(t *testing.T) {
			store, cleanup := maker(t)
			defer cleanup()

			p0, p1, p2 := newAccount(t), newAccount(t), newAccount(t)
			ledger := newTestLedger(t, store, Genesis{p0.addr: 100})

			// 5 rows touching p1, 3 not touching it
			for i := 0; i < 5; i++ {
				if _, _, err := ledger.Commit(transfer(p0, p1, uint64(i+1), "node0:1337")); err != nil {
					t.Fatal(err)
				}
				if i < 3 {
					if _, _, err := ledger.Commit(transfer(p0, p2, uint64(i+1), "node0:1337")); err != nil {
						t.Fatal(err)
					}
				}
			}

			all, err := ledger.Transactions(p1.addr, 0, 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 5 {
				t.Fatalf("expected 5 rows, got %d", len(all))
			}
			for i := 1; i < len(all); i++ {
				if all[i].Index <= all[i-1].Index {
					t.Fatalf("rows should be in ascending sequenceIndex")
				}
			}

			page, err := ledger.Transactions(p1.addr, 2, 1)
			if err != nil {
				t.Fatal(err)
			}
			if len(page) != 2 || page[0].Index != all[1].Index || page[1].Index != all[2].Index {
				t.Fatalf("wrong page %v", page)
			}

			rows, last, err := ledger.Since(6, 10)
			if err != nil {
				t.Fatal(err)
			}
			if last != 8 || len(rows) != 2 || rows[0].Index != 7 {
				t.Fatalf("Since(6): last=%d rows=%d", last, len(rows))
			}

			none, err := ledger.Transactions(newAccount(t).addr, 10, 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(none) != 0 {
				t.Fatalf("unknown address should have no rows")
			}
		})
	}
}

func TestBadgerReload(t *testing.T) {
	os.Mkdir("test_data", os.ModeDir|0777)
	dir, err := ioutil.TempDir("test_data", "badger")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	p0, p1 := newAccount(t), newAccount(t)
	genesis := Genesis{p0.addr: 100}
	logger := common.NewTestEntry(t, logrus.WarnLevel)

	store, err := NewBadgerStore(dir, logger)
	if err != nil {
		t.Fatal(err)
	}
	ledger := newTestLedger(t, store, genesis)

	var sigs []string
	for i := 1; i <= 3; i++ {
		row, _, err := ledger.Commit(transfer(p0, p1, uint64(i*10), "node0:1337"))
		if err != nil {
			t.Fatal(err)
		}
		sigs = append(sigs, row.Signature)
	}
	if err := ledger.Close(); err != nil {
		t.Fatal(err)
	}

	store, err = NewBadgerStore(dir, logger)
	if err != nil {
		t.Fatal(err)
	}
	ledger = newTestLedger(t, store, genesis)
	defer ledger.Close()

	if ledger.LastIndex() != 3 {
		t.Fatalf("last index should be 3, not %d", ledger.LastIndex())
	}
	if ledger.Balance(p0.addr) != 40 || ledger.Balance(p1.addr) != 60 {
		t.Fatalf("balances not rebuilt: %d %d", ledger.Balance(p0.addr), ledger.Balance(p1.addr))
	}
	for i, sig := range sigs {
		row, err := store.GetBySignature(sig)
		if err != nil {
			t.Fatal(err)
		}
		if row.Index != int64(i+1) {
			t.Fatalf("signature %d maps to index %d", i, row.Index)
		}
	}

	row, _, err := ledger.Commit(transfer(p1, p0, 5, "node0:1337"))
	if err != nil {
		t.Fatal(err)
	}
	if row.Index != 4 {
		t.Fatalf("next index should be 4, not %d", row.Index)
	}
}

func TestStoreAppendRules(t *testing.T) {
	for name, maker := range backends {
		t.Run(name, func(t *testing.T) {
			store, cleanup := maker(t)
			defer cleanup()

			p0, p1 := newAccount(t), newAccount(t)

			tx := transfer(p0, p1, 1, "node0:1337")
			tx.Index = 2
			if err := store.Append(tx); !common.IsStore(err, common.SkippedIndex) {
				t.Fatalf("expected SkippedIndex, got %v", err)
			}

			tx.Index = 1
			if err := store.Append(tx); err != nil {
				t.Fatal(err)
			}

			dup := tx.Copy()
			dup.Index = 2
			if err := store.Append(dup); !common.IsStore(err, common.KeyAlreadyExists) {
				t.Fatalf("expected KeyAlreadyExists, got %v", err)
			}

			if _, err := store.GetTransaction(2); !common.IsStore(err, common.KeyNotFound) {
				t.Fatalf("expected KeyNotFound, got %v", err)
			}
			if _, err := store.GetBySignature("nope"); !common.IsStore(err, common.KeyNotFound) {
				t.Fatalf("expected KeyNotFound, got %v", err)
			}

			got, err := store.GetTransaction(1)
			if err != nil {
				t.Fatal(err)
			}
			if *got != *tx {
				t.Fatalf("stored row differs: %+v vs %+v", got, tx)
			}
		})
	}
}

func TestGenesisFile(t *testing.T) {
	os.Mkdir("test_data", os.ModeDir|0777)
	dir, err := ioutil.TempDir("test_data", "genesis")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	jg := NewJSONGenesis(dir)

	empty, err := jg.Read()
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Fatalf("missing file should be an empty genesis")
	}

	p0, p1 := newAccount(t), newAccount(t)
	genesis := Genesis{p0.addr: 100, p1.addr: 5}
	if err := jg.Write(genesis); err != nil {
		t.Fatal(err)
	}

	read, err := jg.Read()
	if err != nil {
		t.Fatal(err)
	}
	if read.Total() != 105 || read[p1.addr] != 5 {
		t.Fatalf("wrong genesis %v", read)
	}

	ioutil.WriteFile(jg.Path(), []byte(`{"not-an-address": 1}`), 0644)
	if _, err := jg.Read(); err == nil {
		t.Fatalf("invalid address should be rejected")
	}
}

// checkNeverNegative replays the log and fails if any prefix leaves an
// address below zero.
func checkNeverNegative(t *testing.T, ledger *Ledger, genesis Genesis) {
	rows, _, err := ledger.Since(0, 0)
	if err != nil {
		t.Fatal(err)
	}

	balances := map[string]uint64{}
	for a, v := range genesis {
		balances[a] = v
	}
	for _, row := range rows {
		if balances[row.Sender] < row.Amount {
			t.Fatalf("row %d overdraws %s", row.Index, row.Sender)
		}
		balances[row.Sender] -= row.Amount
		balances[row.Receiver] += row.Amount
	}
}

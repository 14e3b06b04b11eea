package service

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mosaicnetworks/tally/src/common"
	"github.com/mosaicnetworks/tally/src/config"
	"github.com/mosaicnetworks/tally/src/crypto/keys"
	"github.com/mosaicnetworks/tally/src/ledger"
	"github.com/mosaicnetworks/tally/src/net"
	"github.com/mosaicnetworks/tally/src/node"
	"github.com/mosaicnetworks/tally/src/peers"
	"github.com/mosaicnetworks/tally/src/pool"
	"github.com/mosaicnetworks/tally/src/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	addr string
	priv ed25519.PrivateKey
}

func newAccount(t *testing.T) account {
	pub, priv, err := keys.GenerateKeyPair()
	require.NoError(t, err)
	return account{keys.PublicKeyString(pub), priv}
}

type testService struct {
	*Service
	node *node.Node
	book *wallet.InmemAddressBook
	rich account
}

// newTestService runs a single node where rich holds 100 and is in the address
// book.
func newTestService(t *testing.T) *testService {
	rich := newAccount(t)

	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.BlabInterval = 20 * time.Millisecond

	l, err := ledger.NewLedger(ledger.NewInmemStore(), ledger.Genesis{rich.addr: 100}, conf.Logger())
	require.NoError(t, err)

	_, trans := net.NewInmemTransport("")

	n := node.NewNode(conf, peers.NewPeerSet(nil), nil, l, pool.NewPool(), trans)
	require.NoError(t, n.Init())
	n.RunAsync()

	book := wallet.NewInmemAddressBook()
	_, err = book.Import(keys.PrivateKeyString(rich.priv))
	require.NoError(t, err)

	s := NewService("127.0.0.1:0", n, book, conf.Logger())

	return &testService{Service: s, node: n, book: book, rich: rich}
}

func (ts *testService) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	ts.Handler().ServeHTTP(w, req)

	res := map[string]interface{}{}
	json.Unmarshal(w.Body.Bytes(), &res)

	return w, res
}

func (ts *testService) waitBalance(t *testing.T, address string, expected uint64) {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if ts.node.Balance(address) == expected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("balance of %s should reach %d, got %d", address, expected, ts.node.Balance(address))
}

func TestPing(t *testing.T) {
	ts := newTestService(t)
	defer ts.node.Shutdown()

	w, res := ts.do(t, "GET", "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", res["message"])
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestAddressBook(t *testing.T) {
	ts := newTestService(t)
	defer ts.node.Shutdown()

	w, res := ts.do(t, "POST", "/generate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	generated := res["publicKey"].(string)
	assert.True(t, keys.IsAddress(generated))

	w, res = ts.do(t, "GET", "/address", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []interface{}{generated, ts.rich.addr}, res["addresses"])

	w, res = ts.do(t, "POST", "/address/import", privateKeyRequest{PrivateKey: "0OIl"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Validation", res["kind"])

	other := newAccount(t)
	w, res = ts.do(t, "POST", "/address/import", privateKeyRequest{PrivateKey: keys.PrivateKeyString(other.priv)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, other.addr, res["publicKey"])

	w, _ = ts.do(t, "POST", "/address/remove", publicKeyRequest{PublicKey: other.addr})
	assert.Equal(t, http.StatusOK, w.Code)

	w, res = ts.do(t, "POST", "/address/remove", publicKeyRequest{PublicKey: other.addr})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", res["kind"])

	w, _ = ts.do(t, "POST", "/address/remove", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBalance(t *testing.T) {
	ts := newTestService(t)
	defer ts.node.Shutdown()

	w, res := ts.do(t, "GET", "/balance?publicKey="+ts.rich.addr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(100), res["balance"])

	w, res = ts.do(t, "GET", "/balance?publicKey=nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Validation", res["kind"])
}

func TestPostTransaction(t *testing.T) {
	ts := newTestService(t)
	defer ts.node.Shutdown()

	receiver := newAccount(t)

	path := "/transactions?publicKey=" + ts.rich.addr
	w, res := ts.do(t, "POST", path, transferRequest{Receiver: receiver.addr, Amount: 20})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, "accepted", res["status"])
	assert.NotEmpty(t, res["signature"])

	ts.waitBalance(t, receiver.addr, 20)
	assert.Equal(t, uint64(80), ts.node.Balance(ts.rich.addr))

	w, res = ts.do(t, "POST", path, transferRequest{Receiver: receiver.addr, Amount: 1000})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "InsufficientFunds", res["kind"])

	w, res = ts.do(t, "POST", path, transferRequest{Receiver: receiver.addr, Amount: 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Validation", res["kind"])

	// the address book does not hold the key of receiver
	w, res = ts.do(t, "POST", "/transactions?publicKey="+receiver.addr, transferRequest{Receiver: ts.rich.addr, Amount: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", res["kind"])

	w, res = ts.do(t, "GET", "/transactions?publicKey="+receiver.addr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	txs := res["transactions"].([]interface{})
	require.Len(t, txs, 1)
	row := txs[0].(map[string]interface{})
	assert.Equal(t, float64(1), row["sequenceIndex"])
	assert.Equal(t, ts.rich.addr, row["sender"])
	assert.Equal(t, ts.node.Self().NetAddr(), row["originPeer"])
}

func TestSubmit(t *testing.T) {
	ts := newTestService(t)
	defer ts.node.Shutdown()

	receiver := newAccount(t)

	tx := ledger.NewTransaction(ts.rich.addr, receiver.addr, 30, "client")
	tx.Sign(ts.rich.priv)

	tampered := *tx
	tampered.Amount = 31

	w, res := ts.do(t, "POST", "/submit", tampered)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidSignature", res["kind"])

	w, _ = ts.do(t, "POST", "/submit", "[]")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, res = ts.do(t, "POST", "/submit", tx)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, tx.Signature, res["signature"])

	ts.waitBalance(t, receiver.addr, 30)

	// idempotent
	w, _ = ts.do(t, "POST", "/submit", tx)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, uint64(30), ts.node.Balance(receiver.addr))
}

func TestTransactionsPagination(t *testing.T) {
	ts := newTestService(t)
	defer ts.node.Shutdown()

	receiver := newAccount(t)

	for i := 1; i <= 5; i++ {
		tx := ledger.NewTransaction(ts.rich.addr, receiver.addr, uint64(i), "client")
		tx.Sign(ts.rich.priv)
		w, _ := ts.do(t, "POST", "/submit", tx)
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	ts.waitBalance(t, receiver.addr, 15)

	w, res := ts.do(t, "GET", fmt.Sprintf("/transactions?publicKey=%s&limit=2&offset=1", ts.rich.addr), nil)
	require.Equal(t, http.StatusOK, w.Code)
	txs := res["transactions"].([]interface{})
	require.Len(t, txs, 2)
	assert.Equal(t, float64(2), txs[0].(map[string]interface{})["sequenceIndex"])
	assert.Equal(t, float64(3), txs[1].(map[string]interface{})["sequenceIndex"])

	w, res = ts.do(t, "GET", fmt.Sprintf("/transactions?publicKey=%s&offset=10", ts.rich.addr), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, res["transactions"])

	w, _ = ts.do(t, "GET", fmt.Sprintf("/transactions?publicKey=%s&limit=-1", ts.rich.addr), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, res = ts.do(t, "GET", fmt.Sprintf("/transactions?publicKey=%s&limit=0", ts.rich.addr), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Validation", res["kind"])

	// no limit: default page size
	w, res = ts.do(t, "GET", fmt.Sprintf("/transactions?publicKey=%s", ts.rich.addr), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, res["transactions"], 5)
}

func TestPeersAndStats(t *testing.T) {
	ts := newTestService(t)
	defer ts.node.Shutdown()

	w, _ := ts.do(t, "GET", "/peers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w, res := ts.do(t, "GET", "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", res["last_index"])
	assert.Equal(t, "Running", res["state"])
}

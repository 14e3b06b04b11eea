package ledger

import (
	"bytes"
	"testing"
)

func TestSigningPayloadBoundaries(t *testing.T) {
	// Concatenating fields would make these two payloads identical.
	a := NewTransaction("ab", "c", 1, "node:1")
	b := NewTransaction("a", "bc", 1, "node:1")

	if bytes.Equal(a.SigningPayload(), b.SigningPayload()) {
		t.Fatalf("payloads of distinct transactions should differ")
	}

	c := NewTransaction("ab", "c", 1, "node:1")
	if !bytes.Equal(a.SigningPayload(), c.SigningPayload()) {
		t.Fatalf("payload should be deterministic")
	}
}

func TestSignatureCoversFields(t *testing.T) {
	p0, p1, p2 := newAccount(t), newAccount(t), newAccount(t)

	tx := transfer(p0, p1, 10, "node0:1337")
	if err := tx.Validate(); err != nil {
		t.Fatal(err)
	}

	mutations := map[string]func(*Transaction){
		"receiver": func(tx *Transaction) { tx.Receiver = p2.addr },
		"amount":   func(tx *Transaction) { tx.Amount = 11 },
		"origin":   func(tx *Transaction) { tx.Origin = "node1:1337" },
	}

	for field, mutate := range mutations {
		c := tx.Copy()
		mutate(c)
		if c.Verify() {
			t.Fatalf("changing %s should break the signature", field)
		}
	}

	// index and timestamp are node-local
	c := tx.Copy()
	c.Index = 42
	c.Timestamp = 42
	if !c.Verify() {
		t.Fatalf("index and timestamp are not signed")
	}
}

func TestTransactionMarshal(t *testing.T) {
	p0, p1 := newAccount(t), newAccount(t)

	tx := transfer(p0, p1, 10, "node0:1337")
	tx.Index = 7
	tx.Timestamp = 1234

	data, err := tx.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Contains(data, []byte(`"sequenceIndex":7`)) {
		t.Fatalf("json should use sequenceIndex: %s", data)
	}

	var got Transaction
	if err := got.Unmarshal(data); err != nil {
		t.Fatal(err)
	}
	if got != *tx {
		t.Fatalf("got %+v, expected %+v", got, tx)
	}
}

package ledger

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/mosaicnetworks/tally/src/common"
	"github.com/mosaicnetworks/tally/src/crypto/keys"
	"github.com/ugorji/go/codec"
)

// payloadTag separates Tally signatures from signatures over other data made
// with the same key.
const payloadTag = "tally/transfer/v1"

// Transaction is a signed transfer of Amount from Sender to Receiver.
//
// Index is the sequenceIndex assigned by the Ledger of the node that holds the
// row. It is node-local: the same transaction has different indexes on
// different nodes, which is why transactions are identified by Signature.
// Timestamp is set by the node that admitted the transaction from a client and
// is not covered by the signature.
type Transaction struct {
	Index     int64  `json:"sequenceIndex"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Amount    uint64 `json:"amount"`
	Origin    string `json:"originPeer"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
}

// NewTransaction creates an unsigned transaction.
func NewTransaction(sender, receiver string, amount uint64, origin string) *Transaction {
	return &Transaction{
		Sender:   sender,
		Receiver: receiver,
		Amount:   amount,
		Origin:   origin,
	}
}

// SigningPayload is the byte string covered by the signature. Every field is
// prefixed with its 4-byte big-endian length, so no two distinct
// (sender, receiver, amount, origin) tuples produce the same payload.
func (tx *Transaction) SigningPayload() []byte {
	var b bytes.Buffer

	var amount [8]byte
	binary.BigEndian.PutUint64(amount[:], tx.Amount)

	writeField(&b, []byte(payloadTag))
	writeField(&b, []byte(tx.Sender))
	writeField(&b, []byte(tx.Receiver))
	writeField(&b, amount[:])
	writeField(&b, []byte(tx.Origin))

	return b.Bytes()
}

func writeField(b *bytes.Buffer, field []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(field)))
	b.Write(l[:])
	b.Write(field)
}

// Sign signs the transaction with the sender's private key.
func (tx *Transaction) Sign(priv ed25519.PrivateKey) {
	tx.Signature = keys.Sign(priv, tx.SigningPayload())
}

// Verify checks the signature against the sender address. It never fails on
// malformed input, it returns false.
func (tx *Transaction) Verify() bool {
	return keys.Verify(tx.Sender, tx.SigningPayload(), tx.Signature)
}

// CheckShape validates the fields of a transaction without looking at the
// signature.
func (tx *Transaction) CheckShape() error {
	if tx.Amount == 0 {
		return common.NewValidationErr("amount must be positive")
	}
	if !keys.IsAddress(tx.Sender) {
		return common.NewValidationErr("invalid sender %q", tx.Sender)
	}
	if !keys.IsAddress(tx.Receiver) {
		return common.NewValidationErr("invalid receiver %q", tx.Receiver)
	}
	if tx.Sender == tx.Receiver {
		return common.NewValidationErr("sender and receiver are the same address")
	}
	if tx.Origin == "" {
		return common.NewValidationErr("missing origin peer")
	}
	if tx.Signature == "" {
		return common.NewValidationErr("missing signature")
	}
	return nil
}

// Validate checks the shape and the signature of the transaction. It does not
// look at balances.
func (tx *Transaction) Validate() error {
	if err := tx.CheckShape(); err != nil {
		return err
	}
	if !tx.Verify() {
		return common.NewInvalidSignatureErr(tx.Signature)
	}
	return nil
}

// Copy returns a shallow copy, which is a deep copy since all fields are
// values.
func (tx *Transaction) Copy() *Transaction {
	c := *tx
	return &c
}

// Marshal - json encoding of Transaction
func (tx *Transaction) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(tx); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (tx *Transaction) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(tx)
}

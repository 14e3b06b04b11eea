package ledger

// Store is the append-only table of committed transactions. Rows are keyed by
// a sequenceIndex which starts at 1 and has no gaps. Stores do not check
// balances or signatures; that is the job of the Ledger, which is also the only
// writer.
type Store interface {
	// LastIndex returns the sequenceIndex of the last row, or 0 when the store
	// is empty.
	LastIndex() int64
	// Append writes a row. Its Index must be LastIndex()+1 and its Signature
	// must not be present yet. Either the row and all its index entries are
	// written, or nothing is.
	Append(tx *Transaction) error
	// GetTransaction returns the row with the given sequenceIndex.
	GetTransaction(index int64) (*Transaction, error)
	// GetBySignature returns the row carrying the given signature.
	GetBySignature(signature string) (*Transaction, error)
	// Range returns up to limit rows with an Index strictly greater than
	// after, in ascending order. A limit <= 0 means no limit.
	Range(after int64, limit int) ([]*Transaction, error)
	// AddressTransactions returns the rows where address is the sender or the
	// receiver, in ascending order, skipping offset rows and returning at most
	// limit rows. A limit <= 0 means no limit.
	AddressTransactions(address string, limit, offset int) ([]*Transaction, error)
	// Close closes the underlying database.
	Close() error
	// StorePath returns the filepath of the underlying database.
	StorePath() string
}

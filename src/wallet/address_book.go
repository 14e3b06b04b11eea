package wallet

import (
	"crypto/ed25519"
	"sort"
	"sync"

	"github.com/mosaicnetworks/tally/src/common"
	"github.com/mosaicnetworks/tally/src/crypto/keys"
	"github.com/mosaicnetworks/tally/src/ledger"
)

// AddressBook holds the private keys of the addresses a node can sign for.
type AddressBook interface {
	// Generate creates a new key pair and returns its address.
	Generate() (string, error)

	// Import adds an encoded private key and returns its address.
	Import(privateKey string) (string, error)

	// Remove forgets an address.
	Remove(address string) error

	// List returns the known addresses.
	List() []string

	// Key returns the private key of an address.
	Key(address string) (ed25519.PrivateKey, error)
}

// InmemAddressBook is an AddressBook that lives in memory.
type InmemAddressBook struct {
	l    sync.RWMutex
	keys map[string]ed25519.PrivateKey
}

// NewInmemAddressBook creates an empty InmemAddressBook.
func NewInmemAddressBook() *InmemAddressBook {
	return &InmemAddressBook{
		keys: make(map[string]ed25519.PrivateKey),
	}
}

// Generate implements the AddressBook interface.
func (ab *InmemAddressBook) Generate() (string, error) {
	pub, priv, err := keys.GenerateKeyPair()
	if err != nil {
		return "", err
	}

	address := keys.PublicKeyString(pub)

	ab.l.Lock()
	ab.keys[address] = priv
	ab.l.Unlock()

	return address, nil
}

// Import implements the AddressBook interface. Importing a key twice is not an
// error.
func (ab *InmemAddressBook) Import(privateKey string) (string, error) {
	priv, err := keys.ParsePrivateKey(privateKey)
	if err != nil {
		return "", common.NewValidationErr("malformed private key: %v", err)
	}

	address := keys.PublicKeyString(priv.Public().(ed25519.PublicKey))

	ab.l.Lock()
	ab.keys[address] = priv
	ab.l.Unlock()

	return address, nil
}

// Remove implements the AddressBook interface.
func (ab *InmemAddressBook) Remove(address string) error {
	ab.l.Lock()
	defer ab.l.Unlock()

	if _, ok := ab.keys[address]; !ok {
		return common.NewStoreErr("Address", common.KeyNotFound, address)
	}
	delete(ab.keys, address)
	return nil
}

// List implements the AddressBook interface. Addresses are sorted.
func (ab *InmemAddressBook) List() []string {
	ab.l.RLock()
	defer ab.l.RUnlock()

	res := make([]string, 0, len(ab.keys))
	for address := range ab.keys {
		res = append(res, address)
	}
	sort.Strings(res)
	return res
}

// Key implements the AddressBook interface.
func (ab *InmemAddressBook) Key(address string) (ed25519.PrivateKey, error) {
	ab.l.RLock()
	defer ab.l.RUnlock()

	priv, ok := ab.keys[address]
	if !ok {
		return nil, common.NewStoreErr("Address", common.KeyNotFound, address)
	}
	return priv, nil
}

// Transfer creates a transaction from sender, signed with the key the address
// book holds for it.
func Transfer(book AddressBook, sender, receiver string, amount uint64, origin string) (*ledger.Transaction, error) {
	priv, err := book.Key(sender)
	if err != nil {
		return nil, err
	}

	tx := ledger.NewTransaction(sender, receiver, amount, origin)
	tx.Sign(priv)

	return tx, nil
}

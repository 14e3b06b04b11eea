package ledger

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/mosaicnetworks/tally/src/crypto/keys"
	"github.com/pkg/errors"
)

const (
	// GenesisFile is the name of the file, in the data directory, that holds
	// the initial allocations.
	GenesisFile = "genesis.json"
)

// Genesis maps addresses to the balance they hold before any transaction.
// Allocations are configuration, not rows of the log, and must be identical
// on every node of a network.
type Genesis map[string]uint64

// Validate checks that every key is a well-formed address.
func (g Genesis) Validate() error {
	for addr := range g {
		if !keys.IsAddress(addr) {
			return errors.Errorf("genesis: invalid address %q", addr)
		}
	}
	return nil
}

// Total returns the sum of all allocations.
func (g Genesis) Total() uint64 {
	var total uint64
	for _, amount := range g {
		total += amount
	}
	return total
}

// JSONGenesis reads and writes genesis allocations in a JSON file.
type JSONGenesis struct {
	path string
}

// NewJSONGenesis creates a JSONGenesis reading GenesisFile in base.
func NewJSONGenesis(base string) *JSONGenesis {
	return &JSONGenesis{
		path: filepath.Join(base, GenesisFile),
	}
}

// Path returns the path of the JSON file.
func (j *JSONGenesis) Path() string {
	return j.path
}

// Read returns the allocations. A missing file is an empty Genesis.
func (j *JSONGenesis) Read() (Genesis, error) {
	buf, err := ioutil.ReadFile(j.path)
	if os.IsNotExist(err) {
		return Genesis{}, nil
	}
	if err != nil {
		return nil, err
	}

	genesis := Genesis{}
	if len(buf) == 0 {
		return genesis, nil
	}

	if err := json.Unmarshal(buf, &genesis); err != nil {
		return nil, errors.Wrap(err, "parsing genesis file")
	}

	if err := genesis.Validate(); err != nil {
		return nil, err
	}

	return genesis, nil
}

// Write stores the allocations.
func (j *JSONGenesis) Write(genesis Genesis) error {
	buf, err := json.MarshalIndent(genesis, "", "	")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(j.path, buf, 0644)
}

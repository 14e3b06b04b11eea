package peers

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"sync"
)

const (
	jsonPeerSetPath = "peers.json"
)

// JSONPeerSet is used to provide the bootstrap peer list on disk in the form of
// a JSON file: an array of "host:port" strings. This allows human operators to
// edit the file.
type JSONPeerSet struct {
	l    sync.Mutex
	path string
}

// NewJSONPeerSet creates a new JSONPeerSet with reference to a base directory
// where the JSON file resides.
func NewJSONPeerSet(base string) *JSONPeerSet {
	return &JSONPeerSet{
		path: filepath.Join(base, jsonPeerSetPath),
	}
}

// Path returns the path of the JSON file.
func (j *JSONPeerSet) Path() string {
	return j.path
}

// Peers parses the underlying JSON file and returns the list of peers.
func (j *JSONPeerSet) Peers() ([]Peer, error) {
	j.l.Lock()
	defer j.l.Unlock()

	// Read the file
	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	// Check for no peers
	if len(bytes.TrimSpace(buf)) == 0 {
		return []Peer{}, nil
	}

	// Decode the addresses
	var addrs []string
	dec := json.NewDecoder(bytes.NewReader(buf))
	if err := dec.Decode(&addrs); err != nil {
		return nil, err
	}

	return ParsePeers(addrs)
}

// Write persists a list of peers to the JSON file.
func (j *JSONPeerSet) Write(peers []Peer) error {
	j.l.Lock()
	defer j.l.Unlock()

	addrs := make([]string, 0, len(peers))
	for _, p := range peers {
		addrs = append(addrs, p.NetAddr())
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "	")
	if err := enc.Encode(addrs); err != nil {
		return err
	}

	// Write out as JSON
	return ioutil.WriteFile(j.path, buf.Bytes(), 0644)
}

// ParsePeers parses a list of "host:port" strings.
func ParsePeers(addrs []string) ([]Peer, error) {
	res := make([]Peer, 0, len(addrs))
	for _, a := range addrs {
		p, err := ParsePeer(a)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

package tally

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mosaicnetworks/tally/src/config"
	"github.com/mosaicnetworks/tally/src/crypto/keys"
	"github.com/mosaicnetworks/tally/src/ledger"
	"github.com/mosaicnetworks/tally/src/net"
	"github.com/mosaicnetworks/tally/src/node"
	"github.com/mosaicnetworks/tally/src/peers"
	"github.com/mosaicnetworks/tally/src/pool"
	"github.com/mosaicnetworks/tally/src/service"
	"github.com/mosaicnetworks/tally/src/wallet"
	"github.com/sirupsen/logrus"
)

// Tally builds and wires every component of a node. It is the only place where
// components are constructed.
type Tally struct {
	Config      *config.Config
	Node        *node.Node
	Transport   net.Transport
	Store       ledger.Store
	Ledger      *ledger.Ledger
	Genesis     ledger.Genesis
	Pool        *pool.Pool
	Peers       *peers.PeerSet
	Bootstrap   []peers.Peer
	AddressBook *wallet.InmemAddressBook
	Service     *service.Service

	logger *logrus.Entry
}

// NewTally is a factory method to produce a Tally instance.
func NewTally(c *config.Config) *Tally {
	return &Tally{
		Config: c,
		logger: c.Logger(),
	}
}

// Init initialises the components in dependency order.
func (t *Tally) Init() error {
	t.logger.Debug("validateConfig")
	if err := t.validateConfig(); err != nil {
		t.logger.WithError(err).Error("tally.go:Init() validateConfig")
		return err
	}

	t.logger.Debug("initBootstrap")
	if err := t.initBootstrap(); err != nil {
		t.logger.WithError(err).Error("tally.go:Init() initBootstrap")
		return err
	}

	t.logger.Debug("initGenesis")
	if err := t.initGenesis(); err != nil {
		t.logger.WithError(err).Error("tally.go:Init() initGenesis")
		return err
	}

	t.logger.Debug("initStore")
	if err := t.initStore(); err != nil {
		t.logger.WithError(err).Error("tally.go:Init() initStore")
		return err
	}

	t.logger.Debug("initLedger")
	if err := t.initLedger(); err != nil {
		t.logger.WithError(err).Error("tally.go:Init() initLedger")
		return err
	}

	t.logger.Debug("initTransport")
	if err := t.initTransport(); err != nil {
		t.logger.WithError(err).Error("tally.go:Init() initTransport")
		return err
	}

	t.logger.Debug("initNode")
	if err := t.initNode(); err != nil {
		t.logger.WithError(err).Error("tally.go:Init() initNode")
		return err
	}

	t.logger.Debug("initAddressBook")
	if err := t.initAddressBook(); err != nil {
		t.logger.WithError(err).Error("tally.go:Init() initAddressBook")
		return err
	}

	t.logger.Debug("initService")
	if err := t.initService(); err != nil {
		t.logger.WithError(err).Error("tally.go:Init() initService")
		return err
	}

	return nil
}

func (t *Tally) validateConfig() error {
	c := t.Config

	for name, d := range map[string]time.Duration{
		"signal":  c.SignalInterval,
		"inform":  c.InformInterval,
		"blab":    c.BlabInterval,
		"timeout": c.TCPTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}

	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure-threshold must be at least 1")
	}
	if c.SyncLimit < 1 {
		return fmt.Errorf("sync-limit must be at least 1")
	}
	if c.SyncRetries < 1 {
		return fmt.Errorf("sync-retries must be at least 1")
	}

	t.logger.WithFields(logrus.Fields{
		"datadir":           c.DataDir,
		"listen":            c.BindAddr,
		"advertise":         c.AdvertiseAddr,
		"service-listen":    c.ServiceAddr,
		"no-service":        c.NoService,
		"signal":            c.SignalInterval,
		"inform":            c.InformInterval,
		"blab":              c.BlabInterval,
		"timeout":           c.TCPTimeout,
		"failure-threshold": c.FailureThreshold,
		"sync-limit":        c.SyncLimit,
		"sync-retries":      c.SyncRetries,
		"store":             c.Store,
		"db":                c.DatabaseDir,
	}).Debug("Config")

	return nil
}

// initBootstrap reads the bootstrap peers from the configuration, or from
// peers.json in the data directory when none are configured. A missing
// peers.json means the node starts alone.
func (t *Tally) initBootstrap() error {
	if len(t.Config.BootstrapPeers) > 0 {
		bootstrap, err := peers.ParsePeers(t.Config.BootstrapPeers)
		if err != nil {
			return err
		}
		t.Bootstrap = bootstrap
	} else {
		jsonPeers := peers.NewJSONPeerSet(t.Config.DataDir)
		bootstrap, err := jsonPeers.Peers()
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		t.Bootstrap = bootstrap
	}

	t.Peers = peers.NewPeerSet(nil)

	t.logger.WithField("bootstrap", t.Bootstrap).Debug("Bootstrap peers")

	return nil
}

func (t *Tally) initGenesis() error {
	if t.Config.Genesis != nil {
		if err := t.Config.Genesis.Validate(); err != nil {
			return err
		}
		t.Genesis = t.Config.Genesis
		return nil
	}

	genesis, err := ledger.NewJSONGenesis(t.Config.DataDir).Read()
	if err != nil {
		return err
	}
	t.Genesis = genesis

	t.logger.WithFields(logrus.Fields{
		"accounts": len(genesis),
		"total":    genesis.Total(),
	}).Debug("Genesis")

	return nil
}

func (t *Tally) initStore() error {
	if !t.Config.Store {
		t.Store = ledger.NewInmemStore()
		t.logger.Debug("created new in-mem store")
		return nil
	}

	dbPath := t.Config.DatabaseDir
	t.logger.WithField("path", dbPath).Debug("Opening badger store")

	if err := os.MkdirAll(dbPath, 0700); err != nil {
		return err
	}

	store, err := ledger.NewBadgerStore(dbPath, t.logger)
	if err != nil {
		return err
	}
	t.Store = store

	t.logger.WithField("last_index", store.LastIndex()).Debug("opened badger store")

	return nil
}

func (t *Tally) initLedger() error {
	l, err := ledger.NewLedger(t.Store, t.Genesis, t.logger.WithField("component", "ledger"))
	if err != nil {
		return err
	}
	t.Ledger = l
	t.Pool = pool.NewPool()
	return nil
}

func (t *Tally) initTransport() error {
	if t.Transport != nil {
		return nil
	}

	transport, err := net.NewTCPTransport(
		t.Config.BindAddr,
		t.Config.AdvertiseAddr,
		t.Config.MaxPool,
		t.Config.TCPTimeout,
		t.logger.WithField("component", "transport"),
	)
	if err != nil {
		return err
	}
	t.Transport = transport

	return nil
}

func (t *Tally) initNode() error {
	t.Node = node.NewNode(
		t.Config,
		t.Peers,
		t.Bootstrap,
		t.Ledger,
		t.Pool,
		t.Transport,
	)

	if err := t.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	return nil
}

// initAddressBook creates the address book, and adds the node's own key when
// the data directory holds one.
func (t *Tally) initAddressBook() error {
	t.AddressBook = wallet.NewInmemAddressBook()

	keyfile := keys.NewSimpleKeyfile(t.Config.Keyfile())

	priv, err := keyfile.ReadKey()
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	address, err := t.AddressBook.Import(keys.PrivateKeyString(priv))
	if err != nil {
		return err
	}

	t.logger.WithField("address", address).Info("Loaded key")

	return nil
}

func (t *Tally) initService() error {
	if t.Config.NoService {
		return nil
	}

	t.Service = service.NewService(
		t.Config.ServiceAddr,
		t.Node,
		t.AddressBook,
		t.logger.WithField("component", "service"),
	)

	return nil
}

// Run starts the HTTP API and the node, and blocks until the node is shut down.
func (t *Tally) Run() {
	if t.Service != nil {
		go t.Service.Serve()
	}

	t.Node.Run()
}

// RunAsync starts the HTTP API and the node and returns.
func (t *Tally) RunAsync() {
	if t.Service != nil {
		go t.Service.Serve()
	}

	t.Node.RunAsync()
}

// Shutdown stops the HTTP API, then the node, which closes the transport and
// the ledger.
func (t *Tally) Shutdown() {
	t.logger.Info("Shutdown")

	if t.Service != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.Service.Shutdown(ctx); err != nil {
			t.logger.WithError(err).Warn("Service shutdown")
		}
	}

	if t.Node != nil {
		t.Node.Shutdown()
	}
}

// RunUntilSignal runs the node until SIGINT or SIGTERM, then shuts it down.
func (t *Tally) RunUntilSignal() {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	t.RunAsync()

	sig := <-signalCh
	t.logger.WithField("signal", sig).Info("Caught signal")

	t.Shutdown()
}

// Keygen creates a private key in the data directory and returns its address.
// It refuses to overwrite an existing key.
func Keygen(datadir string) (string, error) {
	keyfile := keys.NewSimpleKeyfile(filepath.Join(datadir, config.DefaultKeyfile))

	if _, err := keyfile.ReadKey(); err == nil {
		return "", fmt.Errorf("another key already lives under %s", datadir)
	}

	pub, priv, err := keys.GenerateKeyPair()
	if err != nil {
		return "", err
	}

	if err := keyfile.WriteKey(priv); err != nil {
		return "", err
	}

	return keys.PublicKeyString(pub), nil
}

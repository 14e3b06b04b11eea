package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/tally/src/common"
	"github.com/mosaicnetworks/tally/src/ledger"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the private
	// key of the node's own account
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"
)

// Default configuration values.
const (
	DefaultLogLevel         = "debug"
	DefaultBindAddr         = "127.0.0.1:1337"
	DefaultServiceAddr      = "127.0.0.1:8000"
	DefaultSignalInterval   = 100 * time.Millisecond
	DefaultInformInterval   = 5000 * time.Millisecond
	DefaultBlabInterval     = 1000 * time.Millisecond
	DefaultTCPTimeout       = 1000 * time.Millisecond
	DefaultMaxPool          = 2
	DefaultFailureThreshold = 5
	DefaultSyncLimit        = 1000
	DefaultSyncRetries      = 10
	DefaultStore            = false
)

// Config contains all the configuration properties of a Tally node.
type Config struct {
	// DataDir is the top-level directory containing Tally configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of the info and debug log entries.
	LogFile string `mapstructure:"log-file"`

	// BindAddr is the local address:port where this node talks to other nodes.
	// In some cases, there may be a routable address that cannot be bound. Use
	// AdvertiseAddr to advertise a different address to support this.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP API service.
	ServiceAddr string `mapstructure:"service-listen"`

	// BootstrapPeers is a list of host:port addresses. When empty, the list is
	// read from peers.json in the DataDir.
	BootstrapPeers []string `mapstructure:"peers"`

	// SignalInterval is the period of the discovery protocol.
	SignalInterval time.Duration `mapstructure:"signal"`

	// InformInterval is the period of the state sync protocol.
	InformInterval time.Duration `mapstructure:"inform"`

	// BlabInterval is the period of the transaction gossip protocol.
	BlabInterval time.Duration `mapstructure:"blab"`

	// TCPTimeout is the upper bound of every outbound RPC. Each protocol
	// further caps it below its own interval (cf CallTimeout).
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// MaxPool controls how many connections are pooled per target.
	MaxPool int `mapstructure:"max-pool"`

	// FailureThreshold is the number of consecutive failed discovery calls
	// after which a peer is removed from the registry.
	FailureThreshold int `mapstructure:"failure-threshold"`

	// SyncLimit is the max number of transactions in a PullResponse.
	SyncLimit int `mapstructure:"sync-limit"`

	// SyncRetries is the number of state sync rounds during which a remote
	// transaction that could not be committed is retried before it is dropped.
	SyncRetries int `mapstructure:"sync-retries"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Genesis, when not nil, overrides the genesis.json file of the DataDir.
	Genesis ledger.Genesis `mapstructure:"-"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		BindAddr:         DefaultBindAddr,
		ServiceAddr:      DefaultServiceAddr,
		SignalInterval:   DefaultSignalInterval,
		InformInterval:   DefaultInformInterval,
		BlabInterval:     DefaultBlabInterval,
		TCPTimeout:       DefaultTCPTimeout,
		MaxPool:          DefaultMaxPool,
		FailureThreshold: DefaultFailureThreshold,
		SyncLimit:        DefaultSyncLimit,
		SyncRetries:      DefaultSyncRetries,
		Store:            DefaultStore,
		DatabaseDir:      DefaultDatabaseDir(),
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level Tally directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// CallTimeout returns the timeout of the RPCs of a protocol that runs every
// interval. It is TCPTimeout, capped to nine tenths of the interval, so that a
// round always ends before the next one is due.
func (c *Config) CallTimeout(interval time.Duration) time.Duration {
	limit := interval * 9 / 10
	if c.TCPTimeout > 0 && c.TCPTimeout < limit {
		return c.TCPTimeout
	}
	return limit
}

// Logger returns a formatted logrus Entry, with prefix set to "tally".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				lfshook.PathMap{
					logrus.InfoLevel:  c.LogFile,
					logrus.DebugLevel: c.LogFile,
				},
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "tally")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level Tally config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Tally")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Tally")
		} else {
			return filepath.Join(home, ".tally")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}

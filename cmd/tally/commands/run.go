package commands

import (
	"github.com/mosaicnetworks/tally/src/tally"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a Tally node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runTally,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runTally(cmd *cobra.Command, args []string) error {
	engine := tally.NewTally(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	engine.RunUntilSignal()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "File receiving a copy of info and debug logs")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for tally node")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port for tally node")
	cmd.Flags().StringSlice("peers", _config.BootstrapPeers, "Bootstrap peers IP:Port (default: peers.json in datadir)")
	cmd.Flags().DurationP("timeout", "t", _config.TCPTimeout, "TCP Timeout")
	cmd.Flags().Int("max-pool", _config.MaxPool, "Connection pool size max")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.NoService, "Disable HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Dabatabase directory")

	// Protocols
	cmd.Flags().Duration("signal", _config.SignalInterval, "Time between peer discovery rounds")
	cmd.Flags().Duration("inform", _config.InformInterval, "Time between state sync rounds")
	cmd.Flags().Duration("blab", _config.BlabInterval, "Time between transaction gossip rounds")
	cmd.Flags().Int("failure-threshold", _config.FailureThreshold, "Consecutive failed calls before a peer is evicted")
	cmd.Flags().Int("sync-limit", _config.SyncLimit, "Max number of transactions per state sync response")
	cmd.Flags().Int("sync-retries", _config.SyncRetries, "State sync rounds during which an uncommittable transaction is retried")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	configFile, err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	logger := _config.Logger()

	if configFile != "" {
		logger.Debugf("Using config file: %s", configFile)
	} else {
		logger.Debugf("No config file found in: %s", _config.DataDir)
	}

	logFields := logrus.Fields{
		"tally.DataDir":          _config.DataDir,
		"tally.BindAddr":         _config.BindAddr,
		"tally.AdvertiseAddr":    _config.AdvertiseAddr,
		"tally.BootstrapPeers":   _config.BootstrapPeers,
		"tally.ServiceAddr":      _config.ServiceAddr,
		"tally.NoService":        _config.NoService,
		"tally.MaxPool":          _config.MaxPool,
		"tally.Store":            _config.Store,
		"tally.LogLevel":         _config.LogLevel,
		"tally.TCPTimeout":       _config.TCPTimeout,
		"tally.SignalInterval":   _config.SignalInterval,
		"tally.InformInterval":   _config.InformInterval,
		"tally.BlabInterval":     _config.BlabInterval,
		"tally.FailureThreshold": _config.FailureThreshold,
		"tally.SyncLimit":        _config.SyncLimit,
		"tally.SyncRetries":      _config.SyncRetries,
	}

	if _config.Store {
		logFields["tally.DatabaseDir"] = _config.DatabaseDir
	}

	logger.WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper. It returns the config file
// that was used, if any.
func bindFlagsLoadViper(cmd *cobra.Command) (string, error) {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return "", err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return "", err
	}

	// look for config file in [datadir]/tally.toml (.json, .yaml also work)
	viper.SetConfigName("tally")         // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	configFile := ""
	if err := viper.ReadInConfig(); err == nil {
		configFile = viper.ConfigFileUsed()
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		return "", err
	}

	// second unmarshal to read from config file
	return configFile, viper.Unmarshal(_config)
}

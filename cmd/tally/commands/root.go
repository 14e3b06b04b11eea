package commands

import (
	"github.com/mosaicnetworks/tally/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for Tally
var RootCmd = &cobra.Command{
	Use:              "tally",
	Short:            "tally peer-to-peer ledger",
	TraverseChildren: true,
}

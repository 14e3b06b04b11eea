package commands

import (
	"fmt"

	"github.com/mosaicnetworks/tally/src/config"
	"github.com/mosaicnetworks/tally/src/tally"
	"github.com/spf13/cobra"
)

var keygenDataDir string

// NewKeygenCmd produces a KeygenCmd which creates the key of the node's own
// account in the data directory.
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create new key pair",
		RunE:  keygen,
	}

	AddKeygenFlags(cmd)

	return cmd
}

//AddKeygenFlags adds flags to the keygen command
func AddKeygenFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&keygenDataDir, "datadir", _config.DataDir, "Directory where the private key will be written")
}

func keygen(cmd *cobra.Command, args []string) error {
	address, err := tally.Keygen(keygenDataDir)
	if err != nil {
		return fmt.Errorf("Writing private key: %s", err)
	}

	fmt.Printf("Your private key has been saved to: %s/%s\n", keygenDataDir, config.DefaultKeyfile)
	fmt.Printf("Address: %s\n", address)

	return nil
}

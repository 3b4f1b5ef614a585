// Command smartswitch turns wall-switch button edges into relay changes and
// MQTT events for a one- or two-channel smart switch.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sweeney/smartswitch/internal/config"
	"github.com/sweeney/smartswitch/internal/logging"
	"github.com/sweeney/smartswitch/internal/logic"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	statePath string
	channels  int
	verbosity int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "smartswitch",
		Short:        "Smart wall switch daemon",
		Long:         "Classifies button clicks, drives relays and publishes actions over MQTT.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(opts.verbosity, os.Stderr)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.statePath, "config", config.DefaultPath, "Persisted configuration and relay state")
	cmd.PersistentFlags().IntVar(&opts.channels, "channels", logic.MaxChannels, "Number of button/relay channels (1 or 2)")
	cmd.PersistentFlags().CountVarP(&opts.verbosity, "verbose", "v", "Increase log detail (-v debug, -vv trace)")

	cmd.AddCommand(
		newRunCmd(opts),
		newPrintStateCmd(opts),
		newConfigCmd(opts),
		newShellCmd(opts),
	)
	return cmd
}

// openStore opens the state file and loads it for the configured channel count.
func (o *rootOptions) openStore() (*config.FileStore, config.State, error) {
	store, err := config.NewFileStore(o.statePath)
	if err != nil {
		return nil, config.State{}, err
	}
	st, err := store.Load(o.channels)
	if err != nil {
		return nil, config.State{}, err
	}
	return store, st, nil
}

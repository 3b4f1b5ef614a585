package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sweeney/smartswitch/internal/config"
	"github.com/sweeney/smartswitch/internal/logic"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the persisted configuration",
	}
	cmd.AddCommand(
		newConfigShowCmd(root),
		newConfigSetCmd(root),
		newConfigResetCmd(root),
	)
	return cmd
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := root.openStore()
			if err != nil {
				return err
			}
			return writeState(cmd.OutOrStdout(), st)
		},
	}
}

func writeState(w io.Writer, st config.State) error {
	return toml.NewEncoder(w).Encode(st)
}

// configFlags holds the flags of "config set". Only flags the user passed
// are written.
type configFlags struct {
	channel       int
	operatingMode string
	switchMode    string
	switchActions string
	relayMode     string
	longPressMode string
	interlock     string
	maxPause      time.Duration
	minLongPress  time.Duration
	bothPressed   bool
}

func (c *configFlags) register(f *pflag.FlagSet) {
	f.IntVar(&c.channel, "channel", 1, "Channel to edit")
	f.StringVar(&c.operatingMode, "operating-mode", "", "server or client")
	f.StringVar(&c.switchMode, "switch-mode", "", "toggle, momentary or multifunction")
	f.StringVar(&c.switchActions, "switch-actions", "", "onoff, offon or toggle (momentary only)")
	f.StringVar(&c.relayMode, "relay-mode", "", "unlinked, front, single, double, triple or long (multifunction only)")
	f.StringVar(&c.longPressMode, "long-press-mode", "", "none, level_up or level_down (multifunction only)")
	f.StringVar(&c.interlock, "interlock", "", "none, mutual_exclusion or opposite (both channels)")
	f.DurationVar(&c.maxPause, "max-pause", 0, "Longest gap between clicks of one sequence")
	f.DurationVar(&c.minLongPress, "min-long-press", 0, "Hold time that makes a long press")
	f.BoolVar(&c.bothPressed, "both-pressed", false, "Publish an event when both buttons are held")
}

// update builds the channel write from the flags that were set.
func (c *configFlags) update(f *pflag.FlagSet) logic.Update {
	var u logic.Update
	if f.Changed("operating-mode") {
		v := logic.OperatingMode(c.operatingMode)
		u.OperatingMode = &v
	}
	if f.Changed("switch-mode") {
		v := logic.SwitchMode(c.switchMode)
		u.SwitchMode = &v
	}
	if f.Changed("switch-actions") {
		v := logic.SwitchActions(c.switchActions)
		u.SwitchActions = &v
	}
	if f.Changed("relay-mode") {
		v := logic.RelayMode(c.relayMode)
		u.RelayMode = &v
	}
	if f.Changed("long-press-mode") {
		v := logic.LongPressMode(c.longPressMode)
		u.LongPressMode = &v
	}
	if f.Changed("max-pause") {
		v := c.maxPause
		u.MaxPause = &v
	}
	if f.Changed("min-long-press") {
		v := c.minLongPress
		u.MinLongPress = &v
	}
	return u
}

// applyConfig runs a write through a controller built from st, so offline
// edits are validated exactly like writes received at runtime.
func applyConfig(st config.State, c *configFlags, f *pflag.FlagSet) (config.State, error) {
	ctrl, err := logic.NewController(st.Device(), nil)
	if err != nil {
		return st, err
	}
	for i, on := range st.Relays {
		if _, err := ctrl.RestoreRelay(logic.Channel(i+1), on); err != nil {
			return st, err
		}
	}

	changed := false
	if f.Changed("interlock") {
		if _, err := ctrl.SetInterlock(logic.InterlockMode(c.interlock), 0); err != nil {
			return st, err
		}
		changed = true
	}
	if u := c.update(f); !u.Empty() {
		if _, err := ctrl.Configure(logic.Channel(c.channel), u, 0); err != nil {
			return st, err
		}
		changed = true
	}
	if f.Changed("both-pressed") {
		ctrl.SetBothPressed(c.bothPressed)
		changed = true
	}
	if !changed {
		return st, errors.New("nothing to set")
	}

	relays := make([]bool, ctrl.Channels())
	for i := range relays {
		relays[i] = ctrl.Relay(logic.Channel(i + 1))
	}
	return config.FromDevice(ctrl.Configuration(), relays), nil
}

func newConfigSetCmd(root *rootOptions) *cobra.Command {
	c := &configFlags{}
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change configuration fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, st, err := root.openStore()
			if err != nil {
				return err
			}
			next, err := applyConfig(st, c, cmd.Flags())
			if err != nil {
				return err
			}
			if err := store.Save(next); err != nil {
				return fmt.Errorf("save: %w", err)
			}
			return writeState(cmd.OutOrStdout(), next)
		},
	}
	c.register(cmd.Flags())
	return cmd
}

func newConfigResetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore factory settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.NewFileStore(root.statePath)
			if err != nil {
				return err
			}
			if err := store.Reset(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", store.Path())
			return nil
		},
	}
}

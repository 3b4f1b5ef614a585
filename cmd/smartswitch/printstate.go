package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sweeney/smartswitch/internal/config"
	"github.com/sweeney/smartswitch/internal/gpio"
	"github.com/sweeney/smartswitch/internal/logic"
)

func newPrintStateCmd(root *rootOptions) *cobra.Command {
	var (
		chip    string
		buttons []int
	)
	def := gpio.DefaultPins(logic.MaxChannels)
	cmd := &cobra.Command{
		Use:   "print-state",
		Short: "Print button levels and persisted relay states, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := root.openStore()
			if err != nil {
				return err
			}
			if len(buttons) < root.channels {
				return fmt.Errorf("%d channels need %d button pins", root.channels, root.channels)
			}
			w, err := gpio.NewRealWatcher(chip, buttons[:root.channels])
			if err != nil {
				return fmt.Errorf("init buttons: %w", err)
			}
			defer w.Close()
			levels, err := w.Levels()
			if err != nil {
				return fmt.Errorf("read buttons: %w", err)
			}
			printState(cmd.OutOrStdout(), levels, st)
			return nil
		},
	}
	cmd.Flags().StringVar(&chip, "chip", def.Chip, "GPIO chip")
	cmd.Flags().IntSliceVar(&buttons, "button-pins", def.Buttons, "BCM pins of the buttons, channel 1 first")
	return cmd
}

func printState(w io.Writer, levels []bool, st config.State) {
	for i, pressed := range levels {
		button := "released"
		if pressed {
			button = "pressed"
		}
		relay := "OFF"
		if i < len(st.Relays) && st.Relays[i] {
			relay = "ON"
		}
		fmt.Fprintf(w, "%s: %s, relay %s\n", logic.Channel(i+1), button, relay)
	}
}

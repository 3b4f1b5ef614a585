package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sweeney/smartswitch/internal/binding"
	"github.com/sweeney/smartswitch/internal/config"
	"github.com/sweeney/smartswitch/internal/gpio"
	"github.com/sweeney/smartswitch/internal/logging"
	"github.com/sweeney/smartswitch/internal/logic"
)

const shellHelp = `commands:
  press <ch>                  button down at the current instant
  release <ch>                button up at the current instant
  click <ch> [count]          full clicks, 50ms down and 100ms apart
  tick <duration>             advance the clock and fire due timers
  set <ch> on|off|toggle      relay command as received from the network
  config <ch> [flags]         write channel settings (see "config --help")
  interlock <mode>            none, mutual_exclusion or opposite
  both on|off                 enable the both-pressed event
  bind <ch> [targets...]      bind a channel (no targets unbinds)
  state                       print every channel
  log [-v...] [--level L]     change log level
  help, exit`

// simulator drives an in-memory controller on a manual clock. Nothing
// touches GPIO or the network.
type simulator struct {
	ctrl     *logic.Controller
	bindings *binding.Table
	clock    *gpio.FakeClock
	out      io.Writer
}

func newSimulator(st config.State, out io.Writer) (*simulator, error) {
	bindings := binding.NewTable()
	ctrl, err := logic.NewController(st.Device(), bindings)
	if err != nil {
		return nil, err
	}
	s := &simulator{ctrl: ctrl, bindings: bindings, clock: &gpio.FakeClock{}, out: out}
	for i, on := range st.Relays {
		effects, err := ctrl.RestoreRelay(logic.Channel(i+1), on)
		if err != nil {
			return nil, err
		}
		s.print(effects)
	}
	return s, nil
}

func (s *simulator) print(effects []logic.Effect) {
	for _, e := range effects {
		at := e.At
		if at == 0 {
			at = s.clock.Now()
		}
		fmt.Fprintf(s.out, "%8v  %s\n", at, e)
	}
}

func (s *simulator) channel(arg string) (logic.Channel, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("bad channel %q", arg)
	}
	return logic.Channel(n), nil
}

func (s *simulator) edge(ch logic.Channel, pressed bool) error {
	effects, err := s.ctrl.Edge(logic.Edge{Channel: ch, Pressed: pressed, At: s.clock.Now()})
	s.print(effects)
	return err
}

func (s *simulator) advance(d time.Duration) {
	s.clock.Advance(d)
	s.print(s.ctrl.Tick(s.clock.Now()))
}

// exec runs one tokenized command.
func (s *simulator) exec(tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	args := tokens[1:]
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: expected %d argument(s)", tokens[0], n)
		}
		return nil
	}

	switch tokens[0] {
	case "press", "release":
		if err := need(1); err != nil {
			return err
		}
		ch, err := s.channel(args[0])
		if err != nil {
			return err
		}
		return s.edge(ch, tokens[0] == "press")

	case "click":
		if err := need(1); err != nil {
			return err
		}
		ch, err := s.channel(args[0])
		if err != nil {
			return err
		}
		count := 1
		if len(args) > 1 {
			if count, err = strconv.Atoi(args[1]); err != nil || count < 1 {
				return fmt.Errorf("bad count %q", args[1])
			}
		}
		for i := 0; i < count; i++ {
			if i > 0 {
				s.advance(100 * time.Millisecond)
			}
			if err := s.edge(ch, true); err != nil {
				return err
			}
			s.advance(50 * time.Millisecond)
			if err := s.edge(ch, false); err != nil {
				return err
			}
		}
		return nil

	case "tick":
		if err := need(1); err != nil {
			return err
		}
		d, err := time.ParseDuration(args[0])
		if err != nil || d < 0 {
			return fmt.Errorf("bad duration %q", args[0])
		}
		s.advance(d)
		return nil

	case "set":
		if err := need(2); err != nil {
			return err
		}
		ch, err := s.channel(args[0])
		if err != nil {
			return err
		}
		effects, err := s.ctrl.Command(ch, logic.CommandKind(strings.ToLower(args[1])), s.clock.Now())
		s.print(effects)
		return err

	case "config":
		if err := need(1); err != nil {
			return err
		}
		ch, err := s.channel(args[0])
		if err != nil {
			return err
		}
		c := &configFlags{}
		fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
		fs.SetOutput(s.out)
		c.register(fs)
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		u := c.update(fs)
		if u.Empty() {
			return errors.New("config: nothing to set")
		}
		effects, err := s.ctrl.Configure(ch, u, s.clock.Now())
		s.print(effects)
		return err

	case "interlock":
		if err := need(1); err != nil {
			return err
		}
		effects, err := s.ctrl.SetInterlock(logic.InterlockMode(args[0]), s.clock.Now())
		s.print(effects)
		return err

	case "both":
		if err := need(1); err != nil {
			return err
		}
		s.ctrl.SetBothPressed(args[0] == "on")
		return nil

	case "bind":
		if err := need(1); err != nil {
			return err
		}
		ch, err := s.channel(args[0])
		if err != nil {
			return err
		}
		if int(ch) < 1 || int(ch) > s.ctrl.Channels() {
			return fmt.Errorf("%w: %d", logic.ErrUnknownChannel, int(ch))
		}
		s.bindings.Set(ch, args[1:])
		return nil

	case "state":
		s.state()
		return nil
	}
	return fmt.Errorf("unknown command %q (try help)", tokens[0])
}

func (s *simulator) state() {
	fmt.Fprintf(s.out, "clock %v\n", s.clock.Now())
	for _, c := range s.ctrl.Status() {
		relay := "OFF"
		if c.Relay {
			relay = "ON"
		}
		bound := "unbound"
		if t := s.bindings.Targets(c.Channel); len(t) > 0 {
			bound = strings.Join(t, ",")
		}
		fmt.Fprintf(s.out, "%s relay=%s state=%s mode=%s/%s relay_mode=%s interlock=%s %s\n",
			c.Channel, relay, c.State, c.Config.OperatingMode, c.Config.SwitchMode,
			c.Config.RelayMode, c.Config.InterlockMode, bound)
	}
}

func newShellCmd(root *rootOptions) *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Simulate button presses against the stored configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := root.openStore()
			if err != nil {
				return err
			}
			sim, err := newSimulator(st, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return runShell(sim, prompt, root.verbosity)
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "switch> ", "Shell prompt")
	return cmd
}

func runShell(sim *simulator, prompt string, verbosity int) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), "smartswitch-shell.history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintln(sim.out, "Simulated switch. 'help' lists commands, 'exit' quits.")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			fmt.Fprintln(sim.out, shellHelp)
			continue
		}
		tokens, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(sim.out, "parse error: %v\n", err)
			continue
		}
		if len(tokens) > 0 && tokens[0] == "log" {
			if err := handleShellLog(sim.out, tokens[1:], &verbosity); err != nil {
				fmt.Fprintf(sim.out, "log: %v\n", err)
			}
			continue
		}
		if err := sim.exec(tokens); err != nil {
			fmt.Fprintf(sim.out, "error: %v\n", err)
		}
	}
}

func handleShellLog(out io.Writer, args []string, verbosity *int) error {
	fs := pflag.NewFlagSet("log", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		vcount int
		level  string
	)
	fs.CountVarP(&vcount, "verbose", "v", "Increase verbosity")
	fs.StringVar(&level, "level", "", "trace, debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch {
	case level != "":
		if _, err := logging.SetLevel(level); err != nil {
			return err
		}
	case vcount > 0:
		*verbosity = vcount
		zerolog.SetGlobalLevel(logging.LevelFor(vcount))
	}
	fmt.Fprintf(out, "log level %s\n", zerolog.GlobalLevel())
	return nil
}

package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/shlex"
	"github.com/rs/zerolog"

	"github.com/sweeney/smartswitch/internal/config"
	"github.com/sweeney/smartswitch/internal/logic"
)

func newTestSimulator(t *testing.T, st config.State) (*simulator, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	sim, err := newSimulator(st, &out)
	if err != nil {
		t.Fatalf("newSimulator: %v", err)
	}
	return sim, &out
}

func execLine(t *testing.T, sim *simulator, line string) error {
	t.Helper()
	tokens, err := shlex.Split(line)
	if err != nil {
		t.Fatalf("split %q: %v", line, err)
	}
	return sim.exec(tokens)
}

func TestSimulatorTogglePress(t *testing.T) {
	sim, out := newTestSimulator(t, config.Default(2))

	if err := execLine(t, sim, "press 1"); err != nil {
		t.Fatalf("press: %v", err)
	}
	if !strings.Contains(out.String(), "SET_RELAY button_1 on=true") {
		t.Errorf("expected relay effect, got:\n%s", out)
	}
	if !sim.ctrl.Relay(logic.Channel1) {
		t.Error("relay 1 should be on")
	}
}

func TestSimulatorDoubleClick(t *testing.T) {
	sim, out := newTestSimulator(t, config.Default(1))

	for _, line := range []string{
		"config 1 --switch-mode multifunction --relay-mode double",
		"click 1 2",
		"tick 1s",
	} {
		if err := execLine(t, sim, line); err != nil {
			t.Fatalf("%q: %v", line, err)
		}
	}
	if !strings.Contains(out.String(), "REPORT_ACTION button_1 double") {
		t.Errorf("expected double action, got:\n%s", out)
	}
	if !sim.ctrl.Relay(logic.Channel1) {
		t.Error("double click should toggle the relay")
	}
}

func TestSimulatorBoundChannel(t *testing.T) {
	sim, out := newTestSimulator(t, config.Default(1))

	for _, line := range []string{
		"config 1 --switch-mode multifunction",
		"bind 1 lamp fan",
		"click 1",
		"tick 1s",
	} {
		if err := execLine(t, sim, line); err != nil {
			t.Fatalf("%q: %v", line, err)
		}
	}
	if !strings.Contains(out.String(), "SEND_COMMAND button_1 action(single) targets=[lamp fan]") {
		t.Errorf("expected command to bound targets, got:\n%s", out)
	}
}

func TestSimulatorErrors(t *testing.T) {
	sim, _ := newTestSimulator(t, config.Default(2))

	tests := []struct {
		line string
		is   error
	}{
		{"press 3", logic.ErrUnknownChannel},
		{"config 1 --relay-mode double", logic.ErrConflict},
		{"interlock sideways", logic.ErrConflict},
		{"bind 5 lamp", logic.ErrUnknownChannel},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if err := execLine(t, sim, tt.line); !errors.Is(err, tt.is) {
				t.Errorf("got %v, want %v", err, tt.is)
			}
		})
	}

	for _, line := range []string{"press", "tick soon", "click 1 0", "dance", "config 1"} {
		if err := execLine(t, sim, line); err == nil {
			t.Errorf("%q: expected error", line)
		}
	}
}

func TestSimulatorSetAndState(t *testing.T) {
	sim, out := newTestSimulator(t, config.Default(2))

	if err := execLine(t, sim, "interlock mutual_exclusion"); err != nil {
		t.Fatalf("interlock: %v", err)
	}
	if err := execLine(t, sim, "set 1 ON"); err != nil {
		t.Fatalf("set 1: %v", err)
	}
	if err := execLine(t, sim, "set 2 on"); err != nil {
		t.Fatalf("set 2: %v", err)
	}
	if sim.ctrl.Relay(logic.Channel1) || !sim.ctrl.Relay(logic.Channel2) {
		t.Error("mutual exclusion should leave only relay 2 on")
	}

	out.Reset()
	if err := execLine(t, sim, "state"); err != nil {
		t.Fatalf("state: %v", err)
	}
	if !strings.Contains(out.String(), "button_2 relay=ON") || !strings.Contains(out.String(), "interlock=mutual_exclusion") {
		t.Errorf("unexpected state output:\n%s", out)
	}
}

func TestSimulatorRestoresRelays(t *testing.T) {
	st := config.Default(2)
	st.Relays[0] = true
	sim, _ := newTestSimulator(t, st)

	if !sim.ctrl.Relay(logic.Channel1) {
		t.Error("restored relay should be on")
	}
}

func TestHandleShellLog(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var out bytes.Buffer
	v := 0
	if err := handleShellLog(&out, []string{"--level", "warn"}, &v); err != nil {
		t.Fatalf("log --level: %v", err)
	}
	if !strings.Contains(out.String(), "warn") {
		t.Errorf("expected level echo, got %q", out.String())
	}
	if err := handleShellLog(&out, []string{"-vv"}, &v); err != nil || v != 2 {
		t.Errorf("log -vv: v=%d err=%v", v, err)
	}
	if err := handleShellLog(&out, []string{"--level", "loud"}, &v); err == nil {
		t.Error("expected error for unknown level")
	}
}

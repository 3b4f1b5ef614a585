package logic

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultDeviceConfigurationValid(t *testing.T) {
	for _, n := range []int{1, 2} {
		if err := DefaultDeviceConfiguration(n).Validate(); err != nil {
			t.Errorf("%d channels: unexpected error: %v", n, err)
		}
	}
	if err := DefaultDeviceConfiguration(3).Validate(); !errors.Is(err, ErrConflict) {
		t.Errorf("3 channels: expected ErrConflict, got %v", err)
	}
}

func TestChannelValidateUnknownValues(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ChannelConfiguration)
		field  string
	}{
		{"operating mode", func(c *ChannelConfiguration) { c.OperatingMode = "bridge" }, "operating_mode"},
		{"switch mode", func(c *ChannelConfiguration) { c.SwitchMode = "" }, "switch_mode"},
		{"relay mode", func(c *ChannelConfiguration) { c.RelayMode = "quad" }, "relay_mode"},
		{"long press mode", func(c *ChannelConfiguration) { c.LongPressMode = "level" }, "long_press_mode"},
		{"interlock mode", func(c *ChannelConfiguration) { c.InterlockMode = "xor" }, "interlock_mode"},
		{"negative pause", func(c *ChannelConfiguration) { c.MaxPause = -time.Millisecond }, "max_pause"},
		{"pause inside debounce window", func(c *ChannelConfiguration) { c.MaxPause = DebounceWindow }, "max_pause"},
		{"zero long press", func(c *ChannelConfiguration) { c.MinLongPress = 0 }, "min_long_press"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultChannelConfiguration()
			tt.modify(&cfg)
			err := cfg.Validate(Channel1)
			var ce *ConflictError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConflictError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, ce.Field)
			}
		})
	}
}

func TestUpdateApplyModeDependencies(t *testing.T) {
	mf := SwitchMultifunction
	mom := SwitchMomentary
	double := RelayDouble
	up := LongPressLevelCtrlUp
	offon := ActionsOffOn

	tests := []struct {
		name    string
		cur     ChannelConfiguration
		u       Update
		wantErr bool
	}{
		{"relay mode needs multifunction", DefaultChannelConfiguration(), Update{RelayMode: &double}, true},
		{"relay mode with multifunction in same write", DefaultChannelConfiguration(), Update{SwitchMode: &mf, RelayMode: &double}, false},
		{"long press mode needs multifunction", DefaultChannelConfiguration(), Update{LongPressMode: &up}, true},
		{"long press mode on multifunction", multifunction(DefaultMaxPause, DefaultMinLongPress), Update{LongPressMode: &up}, false},
		{"switch actions need momentary", DefaultChannelConfiguration(), Update{SwitchActions: &offon}, true},
		{"switch actions with momentary", DefaultChannelConfiguration(), Update{SwitchMode: &mom, SwitchActions: &offon}, false},
		{"switch mode alone keeps stale fields", DefaultChannelConfiguration(), Update{SwitchMode: &mom}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := tt.u.Apply(Channel1, tt.cur, nil)
			if tt.wantErr {
				if !errors.Is(err, ErrConflict) {
					t.Fatalf("expected ErrConflict, got %v", err)
				}
				if next != tt.cur {
					t.Errorf("rejected write must return the current configuration, got %+v", next)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestUpdateApplyInterlock(t *testing.T) {
	me := InterlockMutualExclusion
	cur := DefaultChannelConfiguration()

	if _, err := (Update{InterlockMode: &me}).Apply(Channel1, cur, nil); !errors.Is(err, ErrConflict) {
		t.Errorf("single channel: expected ErrConflict, got %v", err)
	}

	sibling := DefaultChannelConfiguration()
	if _, err := (Update{InterlockMode: &me}).Apply(Channel1, cur, &sibling); !errors.Is(err, ErrConflict) {
		t.Errorf("mismatched sibling: expected ErrConflict, got %v", err)
	}

	sibling.InterlockMode = me
	next, err := (Update{InterlockMode: &me}).Apply(Channel1, cur, &sibling)
	if err != nil {
		t.Fatalf("matching sibling: unexpected error: %v", err)
	}
	if next.InterlockMode != me {
		t.Errorf("expected %s, got %s", me, next.InterlockMode)
	}
}

func TestUpdateEmpty(t *testing.T) {
	if !(Update{}).Empty() {
		t.Error("zero update should be empty")
	}
	d := 10 * time.Millisecond
	if (Update{MaxPause: &d}).Empty() {
		t.Error("update with max_pause should not be empty")
	}
}

func TestConflictErrorMessage(t *testing.T) {
	err := conflict(Channel2, "relay_mode", "requires %s", "multifunction")
	want := "configuration conflict on button_2: relay_mode: requires multifunction"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrConflict) {
		t.Error("ConflictError must match ErrConflict")
	}
	if errors.Is(err, ErrTimingAnomaly) {
		t.Error("ConflictError must not match ErrTimingAnomaly")
	}
}

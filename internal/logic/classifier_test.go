package logic

import (
	"errors"
	"testing"
	"time"
)

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func multifunction(maxPause, minLong time.Duration) ChannelConfiguration {
	cfg := DefaultChannelConfiguration()
	cfg.SwitchMode = SwitchMultifunction
	cfg.MaxPause = maxPause
	cfg.MinLongPress = minLong
	return cfg
}

// edge feeds one edge and fails the test on error.
func edge(t *testing.T, c *Classifier, pressed bool, at time.Duration) []Action {
	t.Helper()
	actions, err := c.OnEdge(pressed, at)
	if err != nil {
		t.Fatalf("edge pressed=%v at %v: unexpected error: %v", pressed, at, err)
	}
	return actions
}

func types(actions []Action) []ActionType {
	var out []ActionType
	for _, a := range actions {
		out = append(out, a.Type)
	}
	return out
}

func assertActions(t *testing.T, got []Action, want ...ActionType) {
	t.Helper()
	gt := types(got)
	if len(gt) != len(want) {
		t.Fatalf("expected actions %v, got %v", want, gt)
	}
	for i := range want {
		if gt[i] != want[i] {
			t.Fatalf("expected actions %v, got %v", want, gt)
		}
	}
}

func TestNewClassifierIdle(t *testing.T) {
	c := NewClassifier(DefaultChannelConfiguration())
	if c.State() != StateIdle {
		t.Errorf("expected IDLE, got %s", c.State())
	}
	if c.Pressed() {
		t.Error("new classifier should not be pressed")
	}
	if _, ok := c.NextDeadline(); ok {
		t.Error("new classifier should have no deadline")
	}
}

func TestToggleModeEmitsImmediately(t *testing.T) {
	c := NewClassifier(DefaultChannelConfiguration())

	assertActions(t, edge(t, c, true, 0), ActionPress)
	assertActions(t, edge(t, c, false, ms(300)), ActionRelease)

	if _, ok := c.NextDeadline(); ok {
		t.Error("toggle mode should never arm a timer")
	}
	// Holding for a long time never yields a long press outside multifunction.
	edge(t, c, true, ms(1000))
	if got := c.OnTick(ms(10000)); len(got) != 0 {
		t.Errorf("expected no timer actions, got %v", types(got))
	}
}

func TestMomentaryModeEmitsImmediately(t *testing.T) {
	cfg := DefaultChannelConfiguration()
	cfg.SwitchMode = SwitchMomentary
	c := NewClassifier(cfg)

	got := edge(t, c, true, ms(5))
	assertActions(t, got, ActionPress)
	if got[0].At != ms(5) {
		t.Errorf("expected press at 5ms, got %v", got[0].At)
	}
	assertActions(t, edge(t, c, false, ms(40)), ActionRelease)
}

func TestDebounceDiscardsBounce(t *testing.T) {
	c := NewClassifier(DefaultChannelConfiguration())

	assertActions(t, edge(t, c, true, 0), ActionPress)
	// Contact bounce inside the window
	assertActions(t, edge(t, c, false, ms(5)))
	if c.State() != StateDebouncing {
		t.Errorf("expected DEBOUNCING while bounce pending, got %s", c.State())
	}
	assertActions(t, edge(t, c, true, ms(10)))
	if c.State() != StateIdle {
		t.Errorf("expected IDLE after bounce settled, got %s", c.State())
	}
	// Nothing to reconcile when the window closes
	assertActions(t, c.OnTick(ms(50)))

	assertActions(t, edge(t, c, false, ms(100)), ActionRelease)
	if c.Spurious() != 2 {
		t.Errorf("expected 2 spurious edges, got %d", c.Spurious())
	}
}

func TestDebounceReconcilesAtWindowEnd(t *testing.T) {
	c := NewClassifier(DefaultChannelConfiguration())

	edge(t, c, true, 0)
	// A real release that arrived inside the window
	assertActions(t, edge(t, c, false, ms(10)))

	at, ok := c.NextDeadline()
	if !ok || at != DebounceWindow {
		t.Fatalf("expected deadline at %v, got %v (ok=%v)", DebounceWindow, at, ok)
	}

	assertActions(t, c.OnTick(DebounceWindow-1))
	got := c.OnTick(DebounceWindow)
	assertActions(t, got, ActionRelease)
	if got[0].At != DebounceWindow {
		t.Errorf("expected release at window end, got %v", got[0].At)
	}
	if c.Pressed() {
		t.Error("expected released level after reconcile")
	}
}

func TestEdgeAtWindowBoundaryAccepted(t *testing.T) {
	c := NewClassifier(DefaultChannelConfiguration())
	edge(t, c, true, 0)
	assertActions(t, edge(t, c, false, DebounceWindow), ActionRelease)
}

func TestDuplicateLevelIgnored(t *testing.T) {
	c := NewClassifier(DefaultChannelConfiguration())
	edge(t, c, true, 0)
	assertActions(t, edge(t, c, true, ms(200)))
	if c.Spurious() != 1 {
		t.Errorf("expected 1 spurious edge, got %d", c.Spurious())
	}
}

func TestTimingAnomalyDiscarded(t *testing.T) {
	c := NewClassifier(DefaultChannelConfiguration())
	edge(t, c, true, ms(100))

	actions, err := c.OnEdge(false, ms(50))
	if !errors.Is(err, ErrTimingAnomaly) {
		t.Fatalf("expected ErrTimingAnomaly, got %v", err)
	}
	if len(actions) != 0 {
		t.Errorf("expected no actions, got %v", types(actions))
	}
	if !c.Pressed() {
		t.Error("anomalous edge must not change the level")
	}
	if c.Anomalies() != 1 {
		t.Errorf("expected 1 anomaly, got %d", c.Anomalies())
	}

	// Classifier keeps working afterwards
	assertActions(t, edge(t, c, false, ms(200)), ActionRelease)
}

func TestMultifunctionClickCounts(t *testing.T) {
	tests := []struct {
		name   string
		clicks int
		want   ActionType
	}{
		{"single", 1, ActionSinglePress},
		{"double", 2, ActionDoublePress},
		{"triple", 3, ActionTriplePress},
		{"four collapses to triple", 4, ActionTriplePress},
		{"six collapses to triple", 6, ActionTriplePress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(multifunction(ms(400), ms(1000)))
			var got []Action
			at := time.Duration(0)
			for i := 0; i < tt.clicks; i++ {
				got = append(got, edge(t, c, true, at)...)
				got = append(got, edge(t, c, false, at+ms(60))...)
				at += ms(200)
			}
			if c.State() != StatePressedWaiting {
				t.Errorf("expected PRESSED_WAITING, got %s", c.State())
			}
			if c.Clicks() != tt.clicks {
				t.Errorf("expected %d clicks counted, got %d", tt.clicks, c.Clicks())
			}
			got = append(got, c.OnTick(at+ms(1000))...)
			assertActions(t, got, ActionPress, tt.want)
			if c.State() != StateIdle {
				t.Errorf("expected IDLE after gesture, got %s", c.State())
			}
		})
	}
}

func TestMultifunctionPauseDeadlineInclusive(t *testing.T) {
	c := NewClassifier(multifunction(ms(400), ms(1000)))
	edge(t, c, true, 0)
	edge(t, c, false, ms(50))

	// Exactly at release+MaxPause the second press is still in time
	assertActions(t, edge(t, c, true, ms(450)))
	if c.Clicks() != 2 {
		t.Fatalf("expected 2 clicks, got %d", c.Clicks())
	}
	edge(t, c, false, ms(500))
	assertActions(t, c.OnTick(ms(900)))
	got := c.OnTick(ms(901))
	assertActions(t, got, ActionDoublePress)
	if got[0].At != ms(900) {
		t.Errorf("expected double press stamped at pause end 900ms, got %v", got[0].At)
	}
}

func TestMultifunctionLateSecondPressStartsNewGesture(t *testing.T) {
	c := NewClassifier(multifunction(ms(400), ms(1000)))
	edge(t, c, true, 0)
	edge(t, c, false, ms(50))

	got := edge(t, c, true, ms(451))
	assertActions(t, got, ActionSinglePress, ActionPress)
	if c.Clicks() != 1 {
		t.Errorf("expected new gesture with 1 click, got %d", c.Clicks())
	}
}

func TestMultifunctionLongPress(t *testing.T) {
	c := NewClassifier(multifunction(ms(250), ms(500)))

	assertActions(t, edge(t, c, true, 0), ActionPress)
	if c.State() != StateLongPressArmed {
		t.Errorf("expected LONG_PRESS_ARMED, got %s", c.State())
	}
	assertActions(t, c.OnTick(ms(499)))

	got := c.OnTick(ms(500))
	assertActions(t, got, ActionLongPress)
	if got[0].At != ms(500) {
		t.Errorf("expected long press at 500ms, got %v", got[0].At)
	}
	if c.State() != StateLongPressActive {
		t.Errorf("expected LONG_PRESS_ACTIVE, got %s", c.State())
	}

	// Emitted at most once per continuous press
	assertActions(t, c.OnTick(ms(5000)))

	got = edge(t, c, false, ms(5100))
	assertActions(t, got, ActionLongPressRelease)
	if c.State() != StateIdle {
		t.Errorf("expected IDLE, got %s", c.State())
	}
	// No click is finalized after a long press
	assertActions(t, c.OnTick(ms(10000)))
}

func TestMultifunctionReleaseAtLongPressThreshold(t *testing.T) {
	c := NewClassifier(multifunction(ms(250), ms(500)))
	edge(t, c, true, 0)

	// A press held for exactly MinLongPress is long
	got := edge(t, c, false, ms(500))
	assertActions(t, got, ActionLongPress, ActionLongPressRelease)
}

func TestMultifunctionLongPressAbandonsClicks(t *testing.T) {
	c := NewClassifier(multifunction(ms(400), ms(500)))
	var got []Action
	got = append(got, edge(t, c, true, 0)...)
	got = append(got, edge(t, c, false, ms(100))...)
	got = append(got, edge(t, c, true, ms(200))...)
	got = append(got, c.OnTick(ms(700))...)
	got = append(got, edge(t, c, false, ms(900))...)
	got = append(got, c.OnTick(ms(5000))...)

	assertActions(t, got, ActionPress, ActionLongPress, ActionLongPressRelease)
}

func TestConfigureResetsGesture(t *testing.T) {
	c := NewClassifier(multifunction(ms(400), ms(1000)))
	edge(t, c, true, 0)
	edge(t, c, false, ms(50))

	assertActions(t, c.Configure(multifunction(ms(300), ms(800)), ms(60)))
	if c.State() != StateIdle {
		t.Errorf("expected IDLE after configure, got %s", c.State())
	}
	if _, ok := c.NextDeadline(); ok {
		t.Error("expected no pending deadline after configure")
	}
	assertActions(t, c.OnTick(ms(5000)))
}

func TestConfigureWhilePressedIgnoresRelease(t *testing.T) {
	c := NewClassifier(multifunction(ms(400), ms(1000)))
	edge(t, c, true, 0)
	assertActions(t, c.Configure(multifunction(ms(400), ms(1000)), ms(10)))

	assertActions(t, edge(t, c, false, ms(100)))
	if c.Pressed() {
		t.Error("level should follow the release")
	}
	assertActions(t, edge(t, c, true, ms(200)), ActionPress)
}

func TestConfigureDuringLongPressReleases(t *testing.T) {
	c := NewClassifier(multifunction(ms(400), ms(500)))
	edge(t, c, true, 0)
	assertActions(t, c.OnTick(ms(500)), ActionLongPress)

	got := c.Configure(multifunction(ms(300), ms(500)), ms(600))
	assertActions(t, got, ActionLongPressRelease)
	if got[0].At != ms(600) {
		t.Errorf("release should carry the write instant, got %v", got[0].At)
	}
	if c.State() != StateIdle {
		t.Errorf("expected IDLE after configure, got %s", c.State())
	}
	assertActions(t, edge(t, c, false, ms(900)))
}

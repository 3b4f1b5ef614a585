package mqtt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/smartswitch/internal/logic"
)

// TopicPrefix is the root of every topic this daemon uses.
const TopicPrefix = "smartswitch"

// Topics builds the topic names of one device.
type Topics struct {
	Base string
}

// NewTopics returns the topics of the named device.
func NewTopics(device string) Topics {
	return Topics{Base: TopicPrefix + "/" + device}
}

func (t Topics) channel(ch logic.Channel, leaf string) string {
	return fmt.Sprintf("%s/%s/%s", t.Base, ch, leaf)
}

// Action is where classified actions of ch are published.
func (t Topics) Action(ch logic.Channel) string { return t.channel(ch, "action") }

// State is where the relay state of ch is published.
func (t Topics) State(ch logic.Channel) string { return t.channel(ch, "state") }

// Command is where commands for the devices bound to ch are published.
func (t Topics) Command(ch logic.Channel) string { return t.channel(ch, "command") }

// Set receives ON/OFF/TOGGLE for the relay of ch.
func (t Topics) Set(ch logic.Channel) string { return t.channel(ch, "set") }

// ConfigSet receives partial configuration writes for ch.
func (t Topics) ConfigSet(ch logic.Channel) string { return t.channel(ch, "config/set") }

// Bindings receives the bound target list of ch.
func (t Topics) Bindings(ch logic.Channel) string { return t.channel(ch, "bindings") }

// BothPressed is where the both-buttons event is published.
func (t Topics) BothPressed() string { return t.Base + "/both_pressed" }

// InterlockSet receives the interlock mode of the pair.
func (t Topics) InterlockSet() string { return t.Base + "/interlock/set" }

// System is where lifecycle events are published.
func (t Topics) System() string { return t.Base + "/system" }

// Subscriptions returns every topic the daemon subscribes to.
func (t Topics) Subscriptions(channels int) []string {
	var out []string
	for i := 1; i <= channels; i++ {
		ch := logic.Channel(i)
		out = append(out, t.Set(ch), t.ConfigSet(ch), t.Bindings(ch))
	}
	if channels == logic.MaxChannels {
		out = append(out, t.InterlockSet())
	}
	return out
}

// split parses <base>/button_<n>/<leaf>.
func (t Topics) split(topic string) (logic.Channel, string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Base+"/")
	if !ok {
		return 0, "", false
	}
	head, leaf, ok := strings.Cut(rest, "/")
	if !ok {
		return 0, "", false
	}
	num, ok := strings.CutPrefix(head, "button_")
	if !ok {
		return 0, "", false
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 || n > logic.MaxChannels {
		return 0, "", false
	}
	return logic.Channel(n), leaf, true
}

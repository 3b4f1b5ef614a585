// Package binding tracks which remote devices each channel is bound to.
package binding

import (
	"time"

	"github.com/bluele/gcache"

	"github.com/sweeney/smartswitch/internal/logic"
)

// Table holds the bound targets of every channel. A channel with no entry
// (or an expired one) is unbound and reports its actions to the coordinator.
// Safe for concurrent use.
type Table struct {
	cache gcache.Cache
}

// Option configures a Table.
type Option func(*gcache.CacheBuilder)

// WithTTL expires bindings that are not refreshed within ttl.
func WithTTL(ttl time.Duration) Option {
	return func(b *gcache.CacheBuilder) {
		if ttl > 0 {
			b.Expiration(ttl)
		}
	}
}

// WithClock sets the clock used for expiry.
func WithClock(c gcache.Clock) Option {
	return func(b *gcache.CacheBuilder) {
		b.Clock(c)
	}
}

// NewTable creates an empty table.
func NewTable(opts ...Option) *Table {
	b := gcache.New(logic.MaxChannels).Simple()
	for _, o := range opts {
		o(b)
	}
	return &Table{cache: b.Build()}
}

// Set replaces the targets of ch. An empty list unbinds the channel.
func (t *Table) Set(ch logic.Channel, targets []string) {
	if len(targets) == 0 {
		t.cache.Remove(ch)
		return
	}
	_ = t.cache.Set(ch, append([]string(nil), targets...))
}

// Targets returns the bound targets of ch, or nil when unbound.
func (t *Table) Targets(ch logic.Channel) []string {
	v, err := t.cache.GetIFPresent(ch)
	if err != nil {
		return nil
	}
	return append([]string(nil), v.([]string)...)
}

// Bound reports whether ch has any targets.
func (t *Table) Bound(ch logic.Channel) bool {
	return len(t.Targets(ch)) > 0
}

// Snapshot returns the targets of every bound channel.
func (t *Table) Snapshot() map[logic.Channel][]string {
	out := make(map[logic.Channel][]string)
	for k, v := range t.cache.GetALL(true) {
		out[k.(logic.Channel)] = append([]string(nil), v.([]string)...)
	}
	return out
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/smartswitch/internal/binding"
	"github.com/sweeney/smartswitch/internal/config"
	"github.com/sweeney/smartswitch/internal/gpio"
	"github.com/sweeney/smartswitch/internal/logic"
	"github.com/sweeney/smartswitch/internal/mqtt"
	"github.com/sweeney/smartswitch/internal/status"
)

// stateSaver persists device state after it changes.
type stateSaver interface {
	Save(config.State) error
}

// daemon owns the controller and executes its effects. Every method runs on
// the loop goroutine.
type daemon struct {
	ctrl      *logic.Controller
	bindings  *binding.Table
	relays    gpio.RelayDriver
	publisher mqtt.Publisher
	conn      mqtt.ConnectionStatus
	store     stateSaver
	tracker   *status.Tracker
	metrics   *status.Metrics
	clock     gpio.Clock
	wall      func() time.Time
	dropped   func() int64
	// grace holds timers back so an edge stamped before a deadline but not
	// yet delivered still reaches the controller first.
	grace time.Duration

	bootMono time.Duration
	bootWall time.Time
	dirty    bool
}

func newDaemon(ctrl *logic.Controller, bindings *binding.Table, relays gpio.RelayDriver, publisher mqtt.Publisher, clock gpio.Clock, wall func() time.Time) *daemon {
	d := &daemon{
		ctrl:      ctrl,
		bindings:  bindings,
		relays:    relays,
		publisher: publisher,
		clock:     clock,
		wall:      wall,
		dropped:   func() int64 { return 0 },
	}
	if cs, ok := publisher.(mqtt.ConnectionStatus); ok {
		d.conn = cs
	}
	d.bootMono = clock.Now()
	d.bootWall = wall()
	return d
}

// stamp converts a monotonic instant to wall-clock time for payloads.
func (d *daemon) stamp(at time.Duration) time.Time {
	if at <= 0 {
		return d.wall()
	}
	return d.bootWall.Add(at - d.bootMono)
}

// start drives the relays to the restored state and announces it.
func (d *daemon) start(relays []bool) {
	for i, on := range relays {
		effects, err := d.ctrl.RestoreRelay(logic.Channel(i+1), on)
		if err != nil {
			log.Error().Err(err).Int("channel", i+1).Msg("restore relay")
			continue
		}
		d.execute(effects)
	}
	d.execute(d.ctrl.Sync())

	now := d.clock.Now()
	for i := 0; i < d.ctrl.Channels(); i++ {
		ch := logic.Channel(i + 1)
		if err := d.publisher.PublishState(ch, d.ctrl.Relay(ch), d.stamp(now)); err != nil {
			log.Warn().Err(err).Stringer("channel", ch).Msg("publish initial state")
		}
	}
	d.dirty = false
	d.refresh()
}

// execute carries out controller effects in order. Collaborator failures
// are logged and the remaining effects still run.
func (d *daemon) execute(effects []logic.Effect) {
	for _, e := range effects {
		ts := d.stamp(e.At)
		var err error
		switch e.Type {
		case logic.EffectSetRelay:
			log.Info().Stringer("channel", e.Channel).Bool("on", e.On).Msg("relay")
			err = d.relays.Set(e.Channel, e.On)
			d.dirty = true
		case logic.EffectReportState:
			err = d.publisher.PublishState(e.Channel, e.On, ts)
		case logic.EffectReportAction:
			log.Info().Stringer("channel", e.Channel).Str("action", string(e.Action)).Msg("action")
			err = d.publisher.PublishAction(e.Channel, e.Action, ts)
		case logic.EffectSendCommand:
			log.Info().Stringer("channel", e.Channel).Str("command", string(e.Command.Kind)).
				Strs("targets", e.Targets).Msg("command")
			err = d.publisher.PublishCommand(e.Channel, e.Command, e.Targets, ts)
		case logic.EffectBothPressed:
			log.Info().Msg("both buttons pressed")
			err = d.publisher.PublishBothPressed(ts)
		}
		if err != nil {
			log.Warn().Err(err).Stringer("effect", e).Msg("effect failed")
		} else {
			log.Debug().Stringer("effect", e).Msg("effect")
		}
		if d.metrics != nil {
			d.metrics.ObserveEffect(e)
		}
	}
}

func (d *daemon) handleEdge(e logic.Edge) {
	log.Trace().Stringer("channel", e.Channel).Bool("pressed", e.Pressed).Dur("at", e.At).Msg("edge")
	effects, err := d.ctrl.Edge(e)
	d.execute(effects)
	if err != nil {
		log.Warn().Err(err).Msg("edge discarded")
	}
}

func (d *daemon) handleRequest(req mqtt.Request) {
	now := d.clock.Now()
	var (
		effects []logic.Effect
		err     error
	)
	switch req.Kind {
	case mqtt.RequestSet:
		effects, err = d.ctrl.Command(req.Channel, req.Command, now)
	case mqtt.RequestConfig:
		effects, err = d.ctrl.Configure(req.Channel, req.Update, now)
		if err == nil {
			d.dirty = true
		}
	case mqtt.RequestInterlock:
		effects, err = d.ctrl.SetInterlock(req.Interlock, now)
		if err == nil {
			d.dirty = true
		}
	case mqtt.RequestBindings:
		if req.Channel < logic.Channel1 || int(req.Channel) > d.ctrl.Channels() {
			err = fmt.Errorf("%w: %d", logic.ErrUnknownChannel, int(req.Channel))
			break
		}
		d.bindings.Set(req.Channel, req.Targets)
		log.Info().Stringer("channel", req.Channel).Strs("targets", req.Targets).Msg("bindings updated")
	}
	d.execute(effects)
	if err == nil {
		return
	}

	var conflict *logic.ConflictError
	switch {
	case errors.As(err, &conflict):
		if d.tracker != nil {
			d.tracker.AddRejectedWrite()
		}
		if d.metrics != nil {
			d.metrics.ObserveRejected(conflict.Field)
		}
		log.Warn().Err(err).Msg("configuration write rejected")
	case errors.Is(err, logic.ErrClientMode):
		log.Warn().Err(err).Msg("relay command ignored")
	default:
		log.Warn().Err(err).Str("kind", string(req.Kind)).Msg("request failed")
	}
}

// persist saves configuration and relay states when either changed.
func (d *daemon) persist() {
	if !d.dirty || d.store == nil {
		return
	}
	d.dirty = false
	relays := make([]bool, d.ctrl.Channels())
	for i := range relays {
		relays[i] = d.ctrl.Relay(logic.Channel(i + 1))
	}
	if err := d.store.Save(config.FromDevice(d.ctrl.Configuration(), relays)); err != nil {
		log.Error().Err(err).Msg("save state")
	}
}

// refresh pushes the current controller view to the status consumers.
func (d *daemon) refresh() {
	if d.tracker == nil {
		return
	}
	d.tracker.Update(d.ctrl.Status(), d.ctrl.Configuration().BothPressed)
	d.tracker.SetBindings(d.bindings.Snapshot())
	d.tracker.SetDroppedEdges(d.dropped())
	if d.conn != nil {
		d.tracker.SetMQTTConnected(d.conn.IsConnected())
	}
	if d.metrics != nil {
		d.metrics.ObserveStatus(d.tracker.Snapshot())
	}
}

func (d *daemon) systemEvent(event, reason string, retained bool) {
	e := mqtt.SystemEvent{
		Timestamp: d.wall(),
		Event:     event,
		Reason:    reason,
		Retained:  retained,
	}
	if d.tracker != nil {
		d.refresh()
		e.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), event, reason)
	}
	if err := d.publisher.PublishSystem(e); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("publish system event")
		return
	}
	log.Info().Str("event", event).Msg("published system event")
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// runLoop is the single goroutine that touches the controller. It returns
// nil after a signal or context cancellation, and an error if the edge
// source closes.
// drain handles every edge already queued. It reports false once the edge
// source is closed.
func (d *daemon) drain(edges <-chan logic.Edge) bool {
	for {
		select {
		case e, ok := <-edges:
			if !ok {
				return false
			}
			d.handleEdge(e)
		default:
			return true
		}
	}
}

// due is the instant up to which timers may fire.
func (d *daemon) due() time.Duration {
	now := d.clock.Now()
	if now < d.grace {
		return 0
	}
	return now - d.grace
}

func (d *daemon) runLoop(ctx context.Context, edges <-chan logic.Edge, tick, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	requests := d.publisher.Requests()
	for {
		select {
		case s := <-sig:
			log.Info().Stringer("signal", s).Msg("shutting down")
			d.persist()
			d.systemEvent("SHUTDOWN", signalName(s), true)
			return nil

		case <-ctx.Done():
			d.persist()
			d.systemEvent("SHUTDOWN", "CANCELLED", true)
			return nil

		case e, ok := <-edges:
			if !ok {
				d.persist()
				return errors.New("edge source closed")
			}
			d.handleEdge(e)

		case req := <-requests:
			d.handleRequest(req)

		case <-tick:
			if !d.drain(edges) {
				d.persist()
				return errors.New("edge source closed")
			}
			d.execute(d.ctrl.Tick(d.due()))

		case <-heartbeat:
			if net := readNetworkInfo(); net != nil && d.tracker != nil {
				d.tracker.SetNetwork(net)
			}
			d.systemEvent("HEARTBEAT", "", false)
		}
		d.persist()
		d.refresh()
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/smartswitch/internal/binding"
	"github.com/sweeney/smartswitch/internal/gpio"
	"github.com/sweeney/smartswitch/internal/logic"
	"github.com/sweeney/smartswitch/internal/mqtt"
	"github.com/sweeney/smartswitch/internal/status"
	"github.com/sweeney/smartswitch/internal/web"
)

type runOptions struct {
	broker     string
	device     string
	clientID   string
	httpAddr   string
	heartbeat  time.Duration
	tick       time.Duration
	bindingTTL time.Duration
	buffer     int
	chip       string
	buttons    []int
	relays     []int
}

func defaultDevice() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "smartswitch"
}

func newRunCmd(root *rootOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the switch daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), root, o)
		},
	}
	def := gpio.DefaultPins(logic.MaxChannels)
	f := cmd.Flags()
	f.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	f.StringVar(&o.device, "device", defaultDevice(), "Device name used in MQTT topics")
	f.StringVar(&o.clientID, "client-id", "", "MQTT client id (default smartswitch-<device>)")
	f.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	f.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	f.DurationVar(&o.tick, "tick", 10*time.Millisecond, "Timer resolution for click and long-press deadlines")
	f.DurationVar(&o.bindingTTL, "binding-ttl", 0, "Forget bindings not refreshed within this interval (0 keeps them)")
	f.IntVar(&o.buffer, "mqtt-buffer", 256, "Messages kept while the broker is unreachable")
	f.StringVar(&o.chip, "chip", def.Chip, "GPIO chip")
	f.IntSliceVar(&o.buttons, "button-pins", def.Buttons, "BCM pins of the buttons, channel 1 first")
	f.IntSliceVar(&o.relays, "relay-pins", def.Relays, "BCM pins of the relays, channel 1 first")
	return cmd
}

// pins trims the pin lists to n channels.
func (o *runOptions) pins(n int) (gpio.Pins, error) {
	if len(o.buttons) < n || len(o.relays) < n {
		return gpio.Pins{}, fmt.Errorf("%d channels need %d button and relay pins", n, n)
	}
	return gpio.Pins{Chip: o.chip, Buttons: o.buttons[:n], Relays: o.relays[:n]}, nil
}

func run(ctx context.Context, root *rootOptions, o *runOptions) error {
	if o.tick <= 0 {
		return errors.New("--tick must be positive")
	}
	store, st, err := root.openStore()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	log.Debug().Str("path", store.Path()).Msg("restored state\n" + litter.Sdump(st))

	pins, err := o.pins(root.channels)
	if err != nil {
		return err
	}
	watcher, err := gpio.NewRealWatcher(pins.Chip, pins.Buttons)
	if err != nil {
		return fmt.Errorf("init buttons: %w", err)
	}
	defer watcher.Close()
	relays, err := gpio.NewRealRelays(pins.Chip, pins.Relays)
	if err != nil {
		return fmt.Errorf("init relays: %w", err)
	}
	defer relays.Close()

	bindings := binding.NewTable(binding.WithTTL(o.bindingTTL))
	ctrl, err := logic.NewController(st.Device(), bindings)
	if err != nil {
		return fmt.Errorf("init controller: %w", err)
	}

	clientID := o.clientID
	if clientID == "" {
		clientID = "smartswitch-" + o.device
	}
	publisher := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     o.broker,
		ClientID:   clientID,
		Device:     o.device,
		Channels:   root.channels,
		BufferSize: o.buffer,
	})
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	tracker := status.NewTracker(time.Now(), status.Config{
		Device:      o.device,
		Channels:    root.channels,
		TickMs:      o.tick.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Broker:      o.broker,
		HTTPAddr:    o.httpAddr,
		StatePath:   store.Path(),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d := newDaemon(ctrl, bindings, relays, publisher, gpio.MonotonicClock{}, time.Now)
	d.store = store
	d.tracker = tracker
	d.metrics = status.NewMetrics(reg)
	d.dropped = watcher.Dropped
	d.grace = o.tick
	d.start(st.Relays)
	d.systemEvent("STARTUP", "", true)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker, reg)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
		log.Info().Str("addr", o.httpAddr).Msg("http status server listening")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()
	var heartbeat <-chan time.Time
	if o.heartbeat > 0 {
		hb := time.NewTicker(o.heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	log.Info().
		Str("device", o.device).
		Int("channels", root.channels).
		Str("broker", o.broker).
		Dur("heartbeat", o.heartbeat).
		Msg("started")

	g.Go(func() error {
		defer cancel()
		return d.runLoop(gctx, watcher.Edges(), ticker.C, heartbeat, sigCh)
	})
	return g.Wait()
}

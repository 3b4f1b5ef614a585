package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/smartswitch/internal/logic"
	"github.com/sweeney/smartswitch/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *status.Metrics) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Device:      "hall",
		Channels:    2,
		TickMs:      10,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":80",
	}
	tr := status.NewTracker(start, cfg)
	reg := prometheus.NewRegistry()
	m := status.NewMetrics(reg)
	srv := New(":0", tr, reg)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr, m
}

func channels(relay1, relay2 bool) []logic.ChannelStatus {
	cfg := logic.DefaultChannelConfiguration()
	return []logic.ChannelStatus{
		{Channel: logic.Channel1, Relay: relay1, State: logic.StateIdle, Config: cfg},
		{Channel: logic.Channel2, Relay: relay2, State: logic.StateIdle, Config: cfg},
	}
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	chs := channels(true, false)
	chs[0].Counts.Single = 5
	tr.Update(chs, true)
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	sj := getJSON(t, ts.URL+"/index.json")
	if len(sj.Status.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(sj.Status.Channels))
	}
	if sj.Status.Channels[0].Relay != "ON" {
		t.Errorf("button_1 relay: got %q, want ON", sj.Status.Channels[0].Relay)
	}
	if sj.Status.Channels[1].Relay != "OFF" {
		t.Errorf("button_2 relay: got %q, want OFF", sj.Status.Channels[1].Relay)
	}
	if sj.Status.Channels[0].Counts.Single != 5 {
		t.Errorf("single count: got %d, want 5", sj.Status.Channels[0].Counts.Single)
	}
	if !sj.Status.Ready || !sj.Status.BothPressed {
		t.Error("expected Ready and BothPressed")
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q", sj.Status.MQTT.Broker)
	}
	if sj.Status.Config.TickMs != 10 {
		t.Errorf("Config.TickMs: got %d, want 10", sj.Status.Config.TickMs)
	}
}

func TestJSONBeforeFirstUpdate(t *testing.T) {
	ts, _, _ := newTestServer(t)

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Ready {
		t.Error("expected Ready=false before the controller reports")
	}
	if sj.Status.Channels == nil || len(sj.Status.Channels) != 0 {
		t.Errorf("expected empty channel list, got %v", sj.Status.Channels)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(channels(true, false), false)
	tr.SetBindings(map[logic.Channel][]string{logic.Channel2: {"porch-light"}})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	for _, want := range []string{"button_1", "button_2", "porch-light", "unbound", `class="on">ON`} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Waiting for controller") {
		t.Error("expected placeholder before the first update")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, m := newTestServer(t)
	m.ObserveEffect(logic.Effect{Type: logic.EffectReportAction, Channel: logic.Channel1, Action: logic.ActionSinglePress})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	want := `smartswitch_actions_total{action="single",channel="button_1"} 1`
	if !strings.Contains(string(body), want) {
		t.Errorf("expected %q in:\n%s", want, body)
	}
}

func TestMetricsDisabledWithoutGatherer(t *testing.T) {
	srv := New(":0", status.NewTracker(time.Now(), status.Config{}), nil)
	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr, _ := newTestServer(t)

	if getJSON(t, ts.URL+"/index.json").Status.Ready {
		t.Error("expected Ready=false initially")
	}

	tr.Update(channels(false, true), false)
	tr.SetMQTTConnected(true)

	sj := getJSON(t, ts.URL+"/index.json")
	if !sj.Status.Ready {
		t.Error("expected Ready=true after update")
	}
	if sj.Status.Channels[1].Relay != "ON" {
		t.Errorf("button_2 relay: got %q, want ON", sj.Status.Channels[1].Relay)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}

func TestChannelEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	chs := channels(false, true)
	chs[1].Counts.Double = 3
	tr.Update(chs, false)
	tr.SetBindings(map[logic.Channel][]string{logic.Channel2: {"porch-light"}})

	resp, err := http.Get(ts.URL + "/channels/2")
	if err != nil {
		t.Fatalf("GET /channels/2: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var cj status.ChannelJSON
	if err := json.NewDecoder(resp.Body).Decode(&cj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if cj.Name != "button_2" || cj.Relay != "ON" || cj.Counts.Double != 3 {
		t.Errorf("unexpected channel %+v", cj)
	}
	if len(cj.BoundTo) != 1 || cj.BoundTo[0] != "porch-light" {
		t.Errorf("bound_to: got %v", cj.BoundTo)
	}
}

func TestChannelEndpointRejectsUnknownChannel(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(channels(false, false), false)

	tests := []struct {
		path string
		want int
	}{
		{"/channels/3", http.StatusNotFound},
		{"/channels/0", http.StatusNotFound},
		{"/channels/left", http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp, err := http.Get(ts.URL + tt.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("%s: got %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestReadyEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)

	get := func() int {
		resp, err := http.Get(ts.URL + "/readyz")
		if err != nil {
			t.Fatalf("GET /readyz: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if code := get(); code != http.StatusServiceUnavailable {
		t.Errorf("before first update: got %d, want 503", code)
	}
	tr.Update(channels(false, false), false)
	if code := get(); code != 200 {
		t.Errorf("after update: got %d, want 200", code)
	}
}

func TestWritesAreNotRouted(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/index.json", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST /index.json: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
}

// internal/poller/poller_test.go
package poller

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/energy2mqtt/internal/registers"
	"github.com/tamzrod/energy2mqtt/internal/status"
)

// ---- fakes ----

type fakeBus struct {
	connectErrs []error // consumed per Connect; nil entries succeed
	readErr     error
	dropOnRead  bool // a failed read also drops the session
	block       []byte
	gate        chan struct{}

	connects int
	reads    int
	closes   int
	open     bool
}

func (f *fakeBus) Connect(ctx context.Context) error {
	if f.gate != nil {
		<-f.gate
	}
	f.connects++
	f.open = false
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		if err != nil {
			return err
		}
	}
	f.open = true
	return nil
}

func (f *fakeBus) ReadBlock(ctx context.Context, start, count uint16) ([]byte, error) {
	f.reads++
	if f.readErr != nil {
		if f.dropOnRead {
			f.open = false
		}
		return nil, f.readErr
	}
	return f.block, nil
}

func (f *fakeBus) Connected() bool  { return f.open }
func (f *fakeBus) Close() error     { f.closes++; f.open = false; return nil }
func (f *fakeBus) Endpoint() string { return "fake:502" }

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	cycles [][]registers.Measurement
	signal chan struct{}
}

func (f *fakePublisher) Publish(ctx context.Context, ms []registers.Measurement) error {
	f.mu.Lock()
	f.cycles = append(f.cycles, ms)
	f.mu.Unlock()
	if f.signal != nil {
		select {
		case f.signal <- struct{}{}:
		default:
		}
	}
	return f.err
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cycles)
}

// ---- helpers ----

var voltageMap = registers.Map{{ID: "voltage", Register: 0, Bytes: 4, ToFixed: 2, Unit: "V"}}

func voltageBlock(t *testing.T) []byte {
	t.Helper()
	b, err := registers.Encode(voltageMap, map[string]float64{"voltage": 230.456}, 4)
	if err != nil {
		t.Fatalf("Encode err=%v", err)
	}
	return b
}

func newTestPoller(t *testing.T, bus *fakeBus, pub *fakePublisher, m registers.Map) *Poller {
	t.Helper()
	p, err := New(Config{Interval: time.Second, Start: 0, Count: 2, Map: m}, bus, pub, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return p
}

// step runs one tick to completion, including any publish it triggers.
func step(p *Poller) Action {
	ctx := context.Background()
	a := p.Tick(ctx)
	if a != ActionNone {
		p.complete(ctx, <-p.done)
	}
	p.publishing.Wait()
	return a
}

// ---- tests ----

func TestPoller_StartsInitializing(t *testing.T) {
	p := newTestPoller(t, &fakeBus{}, &fakePublisher{}, voltageMap)

	if p.State() != Initializing {
		t.Fatalf("expected Initializing, got %s", p.State())
	}
	if p.Status().Health != status.HealthUnknown {
		t.Fatalf("expected unknown health at boot")
	}
}

func TestPoller_ConnectFailsTwice(t *testing.T) {
	bus := &fakeBus{connectErrs: []error{errors.New("refused"), errors.New("refused")}}
	p := newTestPoller(t, bus, &fakePublisher{}, voltageMap)

	for i := 0; i < 2; i++ {
		if a := step(p); a != ActionConnect {
			t.Fatalf("tick %d: expected connect, got %s", i, a)
		}
	}

	if bus.connects != 2 || bus.reads != 0 {
		t.Fatalf("expected 2 connects and 0 reads, got %d/%d", bus.connects, bus.reads)
	}
	if p.State() != ConnectFailed {
		t.Fatalf("expected ConnectFailed, got %s", p.State())
	}

	snap := p.Status()
	if snap.Health != status.HealthError || snap.Failures != 2 {
		t.Fatalf("unexpected status %+v", snap)
	}

	// Liveness: the third tick still retries.
	if a := step(p); a != ActionConnect {
		t.Fatalf("expected another connect, got %s", a)
	}
	if p.State() != ConnectSucceeded {
		t.Fatalf("expected ConnectSucceeded, got %s", p.State())
	}
}

func TestPoller_LogsRecovery(t *testing.T) {
	var buf bytes.Buffer
	bus := &fakeBus{connectErrs: []error{errors.New("refused")}}
	p, err := New(Config{Interval: time.Second, Count: 2, Map: voltageMap}, bus, &fakePublisher{}, zerolog.New(&buf))
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	step(p) // fails
	if strings.Contains(buf.String(), "recovered") {
		t.Fatalf("no recovery expected yet:\n%s", buf.String())
	}

	step(p) // succeeds
	out := buf.String()
	if !strings.Contains(out, `"message":"modbus session recovered"`) || !strings.Contains(out, `"failures":1`) {
		t.Fatalf("expected recovery log with failure count:\n%s", out)
	}
	if p.Status().Failures != 0 {
		t.Fatalf("failures not reset: %+v", p.Status())
	}
}

func TestPoller_ReadPublishesCycle(t *testing.T) {
	bus := &fakeBus{block: voltageBlock(t)}
	pub := &fakePublisher{}
	p := newTestPoller(t, bus, pub, voltageMap)

	step(p) // connect
	if a := step(p); a != ActionRead {
		t.Fatalf("expected read, got %s", a)
	}

	if p.State() != ReadSucceeded {
		t.Fatalf("expected ReadSucceeded, got %s", p.State())
	}
	if pub.count() != 1 {
		t.Fatalf("expected 1 publish, got %d", pub.count())
	}

	got := pub.cycles[0]
	want := []registers.Measurement{
		{ID: "voltage", Value: "230.46", Unit: "V"},
		{ID: "powerTotal", Value: "0", Unit: "W"},
	}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected measurements %+v", got)
	}

	// Steady state keeps reading on the same session.
	if a := step(p); a != ActionRead {
		t.Fatalf("expected read, got %s", a)
	}
	if bus.connects != 1 || pub.count() != 2 {
		t.Fatalf("expected 1 connect and 2 publishes, got %d/%d", bus.connects, pub.count())
	}
}

func TestPoller_DecodeFailureSkipsPublish(t *testing.T) {
	bad := registers.Map{{ID: "far", Register: 98, Bytes: 4, ToFixed: 2, Unit: "V"}}
	bus := &fakeBus{block: make([]byte, 4)}
	pub := &fakePublisher{}
	p := newTestPoller(t, bus, pub, bad)

	step(p) // connect
	step(p) // read + decode failure

	if p.State() != ReadFailed {
		t.Fatalf("expected ReadFailed, got %s", p.State())
	}
	if pub.count() != 0 {
		t.Fatalf("expected zero publishes, got %d", pub.count())
	}

	// The session is still open: hold one tick, then re-read.
	if a := step(p); a != ActionNone {
		t.Fatalf("expected no action, got %s", a)
	}
	if p.State() != ReadyToRead {
		t.Fatalf("expected ReadyToRead, got %s", p.State())
	}
	if a := step(p); a != ActionRead {
		t.Fatalf("expected read, got %s", a)
	}
	if bus.connects != 1 {
		t.Fatalf("expected no reconnect, got %d connects", bus.connects)
	}
}

func TestPoller_PublishFailureKeepsReading(t *testing.T) {
	bus := &fakeBus{block: voltageBlock(t)}
	pub := &fakePublisher{err: errors.New("broker unreachable")}
	p := newTestPoller(t, bus, pub, voltageMap)

	step(p) // connect
	step(p) // read, publish fails

	if p.State() != ReadSucceeded {
		t.Fatalf("expected ReadSucceeded, got %s", p.State())
	}
	if p.Status().Health != status.HealthOK {
		t.Fatalf("publish failure must not affect health")
	}
	if a := step(p); a != ActionRead {
		t.Fatalf("expected read after publish failure, got %s", a)
	}
	if bus.connects != 1 {
		t.Fatalf("publish failure triggered a reconnect")
	}
}

func TestPoller_DeadSessionReconnects(t *testing.T) {
	bus := &fakeBus{readErr: errors.New("i/o timeout"), dropOnRead: true}
	p := newTestPoller(t, bus, &fakePublisher{}, voltageMap)

	step(p) // connect
	step(p) // read fails, session dropped

	if p.State() != ReadFailed {
		t.Fatalf("expected ReadFailed, got %s", p.State())
	}

	if msg := p.Status().Message; msg != "read 0+2: i/o timeout" {
		t.Fatalf("unexpected status message %q", msg)
	}

	if a := step(p); a != ActionConnect {
		t.Fatalf("expected reconnect, got %s", a)
	}
	if bus.connects != 2 {
		t.Fatalf("expected 2 connects, got %d", bus.connects)
	}
}

func TestPoller_TickWhileInFlightDoesNothing(t *testing.T) {
	bus := &fakeBus{gate: make(chan struct{})}
	p := newTestPoller(t, bus, &fakePublisher{}, voltageMap)
	ctx := context.Background()

	if a := p.Tick(ctx); a != ActionConnect {
		t.Fatalf("expected connect, got %s", a)
	}
	if p.State() != Idle {
		t.Fatalf("expected Idle while in flight, got %s", p.State())
	}

	for i := 0; i < 3; i++ {
		if a := p.Tick(ctx); a != ActionNone {
			t.Fatalf("expected no action while in flight, got %s", a)
		}
	}

	close(bus.gate)
	p.complete(ctx, <-p.done)

	if bus.connects != 1 {
		t.Fatalf("expected exactly 1 connect, got %d", bus.connects)
	}
	if p.State() != ConnectSucceeded {
		t.Fatalf("expected ConnectSucceeded, got %s", p.State())
	}
}

func TestRun_PublishesAndStops(t *testing.T) {
	bus := &fakeBus{block: voltageBlock(t)}
	pub := &fakePublisher{signal: make(chan struct{}, 1)}

	p, err := New(Config{Interval: 5 * time.Millisecond, Count: 2, Map: voltageMap}, bus, pub, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(stopped)
	}()

	select {
	case <-pub.signal:
	case <-time.After(2 * time.Second):
		t.Fatalf("no publish within 2s")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}

	if bus.closes == 0 {
		t.Fatalf("session not closed on shutdown")
	}
}

func TestNew_Rejects(t *testing.T) {
	bus, pub := &fakeBus{}, &fakePublisher{}
	cases := map[string]Config{
		"zero interval": {Count: 2, Map: voltageMap},
		"zero count":    {Interval: time.Second, Map: voltageMap},
		"empty map":     {Interval: time.Second, Count: 2},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := New(cfg, bus, pub, zerolog.Nop()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

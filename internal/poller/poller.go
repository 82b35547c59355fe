// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/energy2mqtt/internal/metrics"
	"github.com/tamzrod/energy2mqtt/internal/registers"
	"github.com/tamzrod/energy2mqtt/internal/status"
)

// Config is the minimal runtime config the poller needs.
type Config struct {
	Interval time.Duration
	Start    uint16
	Count    uint16
	Map      registers.Map
}

// Poller is the connect/read/publish state machine for one device.
// state is owned by the goroutine calling Tick and complete (Run).
type Poller struct {
	cfg Config
	bus FieldBus
	pub Publisher
	log zerolog.Logger

	state State
	done  chan outcome

	publishing sync.WaitGroup

	mu   sync.Mutex
	snap status.Snapshot
}

// New creates a poller in the Initializing state.
func New(cfg Config, bus FieldBus, pub Publisher, log zerolog.Logger) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.Count == 0 {
		return nil, errors.New("poller: register count must be > 0")
	}
	if len(cfg.Map) == 0 {
		return nil, errors.New("poller: register map required")
	}
	if bus == nil || pub == nil {
		return nil, errors.New("poller: field bus and publisher required")
	}

	p := &Poller{
		cfg:   cfg,
		bus:   bus,
		pub:   pub,
		log:   log.With().Str("component", "poller").Str("endpoint", bus.Endpoint()).Logger(),
		state: Initializing,
		// depth 1: at most one action is ever in flight
		done: make(chan outcome, 1),
		snap: status.Initial(time.Now()),
	}
	metrics.SetState(p.state.String())
	metrics.SetHealth(p.snap.Health)
	return p, nil
}

// State returns the current session state.
// Only safe from the goroutine driving the poller.
func (p *Poller) State() State { return p.state }

// Status returns the latest status snapshot. Safe from any goroutine.
func (p *Poller) Status() status.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Tick selects and dispatches at most one action.
// The state is Idle from dispatch until the completion is applied.
func (p *Poller) Tick(ctx context.Context) Action {
	if p.state == Idle {
		metrics.SkippedTicks.Inc()
		p.log.Debug().Msg("action still in flight, skipping tick")
		return ActionNone
	}

	// The session flag only matters after a failed read, when nothing is in flight.
	open := p.state == ReadFailed && p.bus.Connected()

	action, next := NextAction(p.state, open)
	p.setState(next)
	if action == ActionNone {
		return ActionNone
	}

	p.setState(Idle)

	// Dispatched actions are never cancelled; their own timeouts bound them.
	actx := context.WithoutCancel(ctx)
	go func() {
		p.done <- p.perform(actx, action)
	}()

	return action
}

// perform runs on the action goroutine. It must not touch p.state.
func (p *Poller) perform(ctx context.Context, action Action) outcome {
	o := outcome{action: action}

	switch action {
	case ActionConnect:
		p.log.Debug().Msg("connecting to modbus server")
		if err := p.bus.Connect(ctx); err != nil {
			o.err = &ConnectError{Endpoint: p.bus.Endpoint(), Err: err}
		}

	case ActionRead:
		block, err := p.bus.ReadBlock(ctx, p.cfg.Start, p.cfg.Count)
		if err != nil {
			o.err = &ReadError{Start: p.cfg.Start, Count: p.cfg.Count, Err: err}
			return o
		}
		// Decode belongs to the read cycle: a bad block fails the read.
		o.measurements, o.err = registers.Decode(block, p.cfg.Map)
	}

	return o
}

// complete applies an action result. Runs on the goroutine that calls Tick.
func (p *Poller) complete(ctx context.Context, o outcome) {
	switch o.action {
	case ActionConnect:
		metrics.IncAction("connect", o.err == nil)
		if o.err != nil {
			p.setState(ConnectFailed)
			p.fail(o.err)
			p.log.Warn().Err(o.err).Msg("failed to connect to modbus server")
			return
		}
		p.setState(ConnectSucceeded)
		p.ok(status.MessageConnected)

	case ActionRead:
		metrics.IncAction("read", o.err == nil)
		if o.err != nil {
			p.setState(ReadFailed)
			p.fail(o.err)

			var de *registers.DecodeError
			if errors.As(o.err, &de) {
				metrics.DecodeErrors.Inc()
				p.log.Error().Err(o.err).Msg("register block does not match register map")
				return
			}
			p.log.Warn().Err(o.err).Msg("failed to read modbus data")
			return
		}
		p.setState(ReadSucceeded)
		p.ok(status.MessageReading)
		p.log.Debug().Int("measurements", len(o.measurements)).Msg("read cycle decoded")
		p.publish(ctx, o.measurements)
	}
}

// publish is fire-and-forget: its outcome never reaches the session state.
func (p *Poller) publish(ctx context.Context, ms []registers.Measurement) {
	pctx := context.WithoutCancel(ctx)

	p.publishing.Add(1)
	go func() {
		defer p.publishing.Done()

		err := p.pub.Publish(pctx, ms)
		metrics.IncPublish(err == nil)
		if err != nil {
			p.log.Warn().Err(err).Msg("failed to publish measurements")
			return
		}
		p.log.Debug().Int("measurements", len(ms)).Msg("published")
	}()
}

// ---- state + status helpers ----

func (p *Poller) setState(s State) {
	if p.state == s {
		return
	}
	p.log.Debug().Stringer("from", p.state).Stringer("to", s).Msg("state")
	p.state = s
	metrics.SetState(s.String())
}

func (p *Poller) ok(msg string) {
	now := time.Now()

	p.mu.Lock()
	prev := p.snap
	next, changed := prev.OK(msg, now)
	p.snap = next
	p.mu.Unlock()

	if prev.Health == status.HealthError {
		p.log.Info().
			Dur("down", prev.InError(now)).
			Uint32("failures", prev.Failures).
			Msg("modbus session recovered")
	}
	if changed {
		metrics.SetHealth(next.Health)
		p.log.Info().Str("status", next.Message).Msg("modbus status")
	}
}

func (p *Poller) fail(err error) {
	p.mu.Lock()
	next, changed := p.snap.Failed(err.Error(), time.Now())
	p.snap = next
	p.mu.Unlock()

	if changed {
		metrics.SetHealth(next.Health)
	}
}

// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run ticks immediately, then every Interval, until ctx is done.
// The ticker is unconditional; a tick that finds an action in flight does nothing.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			p.shutdown()
			return
		case o := <-p.done:
			p.complete(ctx, o)
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// shutdown drains the in-flight action and publishes, then closes the session.
func (p *Poller) shutdown() {
	if p.state == Idle {
		<-p.done
	}
	p.publishing.Wait()

	if err := p.bus.Close(); err != nil {
		p.log.Warn().Err(err).Msg("closing modbus session")
	}
	snap := p.Status()
	p.log.Info().
		Uint16("health", snap.Health).
		Str("status", snap.Message).
		Uint32("failures", snap.Failures).
		Msg("poller stopped")
}

package debounce

import (
	"context"
	"sync"
	"time"

	"github.com/vogiaan1904/vcping/pkg/clock"
	"github.com/vogiaan1904/vcping/pkg/logger"
)

// Guard holds at most one delayed confirmation per channel. A pending
// confirmation is never renewed or cancelled by later events: whatever the
// channel looks like when the delay expires decides the outcome.
type Guard struct {
	clock clock.Clock
	delay time.Duration
	l     logger.Logger

	mu      sync.Mutex
	pending map[string]clock.Timer
	stopped bool
}

func NewGuard(clk clock.Clock, delay time.Duration, l logger.Logger) *Guard {
	return &Guard{
		clock:   clk,
		delay:   delay,
		l:       l,
		pending: make(map[string]clock.Timer),
	}
}

// Delay is the fixed wait before a provisional activation is re-checked.
func (g *Guard) Delay() time.Duration {
	return g.delay
}

// Schedule arranges for confirm to run once the delay has elapsed. It
// reports false, and schedules nothing, when channelID already has a
// confirmation pending or the guard has been stopped.
func (g *Guard) Schedule(ctx context.Context, channelID string, confirm func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		g.l.Debugf(ctx, "Guard stopped, dropping confirmation for channel %s", channelID)
		return false
	}

	if _, ok := g.pending[channelID]; ok {
		g.l.Debugf(ctx, "Confirmation for channel %s already pending", channelID)
		return false
	}

	g.pending[channelID] = g.clock.AfterFunc(g.delay, func() {
		g.mu.Lock()
		delete(g.pending, channelID)
		stopped := g.stopped
		g.mu.Unlock()

		if !stopped {
			confirm()
		}
	})

	g.l.Debugf(ctx, "Scheduled confirmation for channel %s in %s", channelID, g.delay)
	return true
}

// Pending reports whether channelID has a confirmation outstanding.
func (g *Guard) Pending(channelID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[channelID]
	return ok
}

func (g *Guard) PendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Stop drops every outstanding confirmation. Occupancy is not persisted,
// so a dropped confirmation is simply re-triggered by the next join.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		return
	}
	g.stopped = true

	for id, timer := range g.pending {
		timer.Stop()
		delete(g.pending, id)
	}
}

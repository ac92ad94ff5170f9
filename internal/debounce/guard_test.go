package debounce

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vogiaan1904/vcping/pkg/clock"
	"github.com/vogiaan1904/vcping/pkg/logger"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestGuard() (*Guard, *clock.FakeClock) {
	clk := clock.Fake(epoch)
	return NewGuard(clk, time.Minute, logger.InitializeTestZapLogger()), clk
}

func TestScheduleFiresAfterDelay(t *testing.T) {
	g, clk := newTestGuard()
	fired := 0

	assert.True(t, g.Schedule(context.Background(), "v1", func() { fired++ }))
	assert.True(t, g.Pending("v1"))

	clk.Advance(59 * time.Second)
	assert.Zero(t, fired)

	clk.Advance(time.Second)
	assert.Equal(t, 1, fired)
	assert.False(t, g.Pending("v1"))
}

func TestScheduleIsIdempotentPerChannel(t *testing.T) {
	g, clk := newTestGuard()
	first, second := 0, 0

	assert.True(t, g.Schedule(context.Background(), "v1", func() { first++ }))
	clk.Advance(30 * time.Second)
	assert.False(t, g.Schedule(context.Background(), "v1", func() { second++ }))
	assert.Equal(t, 1, g.PendingCount())

	// The first deadline stands; the ignored request does not extend it.
	clk.Advance(30 * time.Second)
	assert.Equal(t, 1, first)
	assert.Zero(t, second)

	clk.Advance(time.Hour)
	assert.Zero(t, second)
}

func TestScheduleAgainAfterFire(t *testing.T) {
	g, clk := newTestGuard()
	fired := 0

	g.Schedule(context.Background(), "v1", func() { fired++ })
	clk.Advance(time.Minute)
	assert.True(t, g.Schedule(context.Background(), "v1", func() { fired++ }))
	clk.Advance(time.Minute)

	assert.Equal(t, 2, fired)
}

func TestChannelsAreIndependent(t *testing.T) {
	g, clk := newTestGuard()
	var got []string

	g.Schedule(context.Background(), "v1", func() { got = append(got, "v1") })
	clk.Advance(10 * time.Second)
	g.Schedule(context.Background(), "v2", func() { got = append(got, "v2") })

	clk.Advance(50 * time.Second)
	assert.Equal(t, []string{"v1"}, got)

	clk.Advance(10 * time.Second)
	assert.Equal(t, []string{"v1", "v2"}, got)
}

func TestStopDropsPendingConfirmations(t *testing.T) {
	g, clk := newTestGuard()
	fired := false

	g.Schedule(context.Background(), "v1", func() { fired = true })
	g.Stop()
	clk.Advance(time.Hour)

	assert.False(t, fired)
	assert.Zero(t, g.PendingCount())
	assert.False(t, g.Schedule(context.Background(), "v2", func() {}))
}

package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogiaan1904/vcping/internal/debounce"
	"github.com/vogiaan1904/vcping/internal/domain"
	appErrors "github.com/vogiaan1904/vcping/internal/errors"
	"github.com/vogiaan1904/vcping/internal/notify"
	"github.com/vogiaan1904/vcping/internal/occupancy"
	"github.com/vogiaan1904/vcping/pkg/clock"
	"github.com/vogiaan1904/vcping/pkg/logger"
)

const confirmDelay = 60 * time.Second

type snapshot struct {
	mu      sync.Mutex
	members map[string][]string
}

func (s *snapshot) set(channelID string, members ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[channelID] = members
}

func (s *snapshot) GetMembers(_ context.Context, channelID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[channelID], nil
}

type notification struct {
	kind      notify.MessageKind
	community string
	channel   string
	actor     string
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notification
	block map[string]chan struct{}
}

func (n *recordingNotifier) record(kind notify.MessageKind, communityID, channelID string, actor domain.Profile) {
	n.mu.Lock()
	wait := n.block[communityID]
	n.mu.Unlock()
	if wait != nil {
		<-wait
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notification{kind: kind, community: communityID, channel: channelID, actor: actor.UserID})
}

func (n *recordingNotifier) NotifyActivated(_ context.Context, communityID, channelID string, actor domain.Profile) (notify.Report, error) {
	n.record(notify.MessageKindActivated, communityID, channelID, actor)
	return notify.Report{}, nil
}

func (n *recordingNotifier) NotifyDeactivated(_ context.Context, communityID, channelID string, actor domain.Profile) (notify.Report, error) {
	n.record(notify.MessageKindDeactivated, communityID, channelID, actor)
	return notify.Report{}, nil
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.calls...)
}

type recordingPublisher struct {
	mu          sync.Mutex
	activated   []domain.Transition
	deactivated []domain.Transition
	err         error
}

func (p *recordingPublisher) PublishActivated(_ context.Context, tn domain.Transition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activated = append(p.activated, tn)
	return p.err
}

func (p *recordingPublisher) PublishDeactivated(_ context.Context, tn domain.Transition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deactivated = append(p.deactivated, tn)
	return p.err
}

func (p *recordingPublisher) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.activated), len(p.deactivated)
}

type harness struct {
	clk      *clock.FakeClock
	snap     *snapshot
	notifier *recordingNotifier
	pub      *recordingPublisher
	tracker  *occupancy.Tracker
	d        *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	l := logger.InitializeTestZapLogger()
	clk := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	snap := &snapshot{members: make(map[string][]string)}
	notifier := &recordingNotifier{block: make(map[string]chan struct{})}
	pub := &recordingPublisher{}

	tracker := occupancy.NewTracker(snap, clk, l)
	guard := debounce.NewGuard(clk, confirmDelay, l)
	d := NewDispatcher(tracker, guard, notifier, pub, Config{LaneBuffer: 8}, l)

	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Stop() })

	return &harness{clk: clk, snap: snap, notifier: notifier, pub: pub, tracker: tracker, d: d}
}

func joinRaw(community, user, channel string) domain.RawVoiceState {
	return domain.RawVoiceState{
		CommunityID: community,
		UserID:      user,
		ChannelID:   channel,
		Member:      domain.Profile{UserID: user, DisplayName: user},
	}
}

func leaveRaw(community, user, channel string) domain.RawVoiceState {
	return domain.RawVoiceState{
		CommunityID:       community,
		UserID:            user,
		PreviousChannelID: channel,
		Member:            domain.Profile{UserID: user, DisplayName: user},
	}
}

func (h *harness) waitHandled(t *testing.T, n int64) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return h.d.GetStatus().EventsHandled >= n
	}, time.Second, time.Millisecond)
}

func TestFlappingChannelIsNeverAnnounced(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.d.Dispatch(ctx, joinRaw("g1", "u1", "v1")))
	h.clk.WaitForTimers(1)

	require.NoError(t, h.d.Dispatch(ctx, leaveRaw("g1", "u1", "v1")))
	h.waitHandled(t, 2)

	h.clk.Advance(confirmDelay)

	assert.Eventually(t, func() bool {
		return h.d.GetStatus().AbortedActivations == 1
	}, time.Second, time.Millisecond)
	assert.Empty(t, h.notifier.all())
	assert.Equal(t, domain.ChannelStatusEmpty, h.tracker.Status("g1", "v1"))
}

func TestConfirmedActivationNotifiesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.snap.set("v1", "u1", "u2")
	require.NoError(t, h.d.Dispatch(ctx, joinRaw("g1", "u1", "v1")))
	require.NoError(t, h.d.Dispatch(ctx, joinRaw("g1", "u2", "v1")))
	h.waitHandled(t, 2)
	assert.Equal(t, 1, h.clk.PendingCount())

	h.clk.Advance(confirmDelay - time.Second)
	assert.Empty(t, h.notifier.all())

	h.clk.Advance(time.Second)
	assert.Eventually(t, func() bool {
		return len(h.notifier.all()) == 1
	}, time.Second, time.Millisecond)

	got := h.notifier.all()[0]
	assert.Equal(t, notification{kind: notify.MessageKindActivated, community: "g1", channel: "v1", actor: "u1"}, got)
	assert.Equal(t, domain.ChannelStatusActive, h.tracker.Status("g1", "v1"))
	activated, _ := h.pub.counts()
	assert.Equal(t, 1, activated)
}

func TestActivationThenDeactivation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.snap.set("v1", "u1")
	require.NoError(t, h.d.Dispatch(ctx, joinRaw("g1", "u1", "v1")))
	h.clk.WaitForTimers(1)
	h.clk.Advance(confirmDelay + time.Second)

	assert.Eventually(t, func() bool {
		return h.d.GetStatus().Activations == 1
	}, time.Second, time.Millisecond)

	h.snap.set("v1")
	require.NoError(t, h.d.Dispatch(ctx, leaveRaw("g1", "u1", "v1")))

	assert.Eventually(t, func() bool {
		return len(h.notifier.all()) == 2
	}, time.Second, time.Millisecond)

	calls := h.notifier.all()
	assert.Equal(t, notify.MessageKindActivated, calls[0].kind)
	assert.Equal(t, notify.MessageKindDeactivated, calls[1].kind)
	assert.Equal(t, "u1", calls[1].actor)
	assert.Equal(t, domain.ChannelStatusEmpty, h.tracker.Status("g1", "v1"))

	h.pub.mu.Lock()
	defer h.pub.mu.Unlock()
	require.Len(t, h.pub.deactivated, 1)
	assert.Equal(t, "v1", h.pub.deactivated[0].ChannelID)
}

func TestMoveDeactivatesSourceAndActivatesTarget(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.snap.set("v1", "u1")
	require.NoError(t, h.d.Dispatch(ctx, joinRaw("g1", "u1", "v1")))
	h.clk.WaitForTimers(1)
	h.clk.Advance(confirmDelay)
	assert.Eventually(t, func() bool {
		return h.d.GetStatus().Activations == 1
	}, time.Second, time.Millisecond)

	h.snap.set("v1")
	h.snap.set("v2", "u1")
	move := domain.RawVoiceState{
		CommunityID:       "g1",
		UserID:            "u1",
		PreviousChannelID: "v1",
		ChannelID:         "v2",
		Member:            domain.Profile{UserID: "u1", DisplayName: "u1"},
	}
	require.NoError(t, h.d.Dispatch(ctx, move))
	h.clk.WaitForTimers(1)

	assert.Equal(t, domain.ChannelStatusEmpty, h.tracker.Status("g1", "v1"))
	assert.Equal(t, domain.ChannelStatusPendingConfirmation, h.tracker.Status("g1", "v2"))

	h.clk.Advance(confirmDelay)
	assert.Eventually(t, func() bool {
		return len(h.notifier.all()) == 3
	}, time.Second, time.Millisecond)

	calls := h.notifier.all()
	require.Len(t, calls, 3)
	assert.Equal(t, notification{kind: notify.MessageKindDeactivated, community: "g1", channel: "v1", actor: "u1"}, calls[1])
	assert.Equal(t, notification{kind: notify.MessageKindActivated, community: "g1", channel: "v2", actor: "u1"}, calls[2])
}

func TestSlowCommunityDoesNotBlockOthers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	release := make(chan struct{})
	h.notifier.mu.Lock()
	h.notifier.block["slow"] = release
	h.notifier.mu.Unlock()

	h.snap.set("slow-v", "u1")
	h.snap.set("fast-v", "u2")
	require.NoError(t, h.d.Dispatch(ctx, joinRaw("slow", "u1", "slow-v")))
	require.NoError(t, h.d.Dispatch(ctx, joinRaw("fast", "u2", "fast-v")))
	h.clk.WaitForTimers(2)
	h.clk.Advance(confirmDelay)

	assert.Eventually(t, func() bool {
		calls := h.notifier.all()
		return len(calls) == 1 && calls[0].community == "fast"
	}, time.Second, time.Millisecond)

	close(release)
	assert.Eventually(t, func() bool {
		return len(h.notifier.all()) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, 2, h.d.GetStatus().Lanes)
}

func TestPublishFailureDoesNotSuppressNotification(t *testing.T) {
	h := newHarness(t)
	h.pub.mu.Lock()
	h.pub.err = errors.New("broker unavailable")
	h.pub.mu.Unlock()

	h.snap.set("v1", "u1")
	h.d.Handle(context.Background(), joinRaw("g1", "u1", "v1"))
	h.clk.Advance(confirmDelay)

	assert.Eventually(t, func() bool {
		return len(h.notifier.all()) == 1
	}, time.Second, time.Millisecond)
}

func TestDispatchBeforeStart(t *testing.T) {
	l := logger.InitializeTestZapLogger()
	clk := clock.Fake(time.Now())
	snap := &snapshot{members: make(map[string][]string)}
	d := NewDispatcher(
		occupancy.NewTracker(snap, clk, l),
		debounce.NewGuard(clk, confirmDelay, l),
		&recordingNotifier{},
		nil,
		Config{},
		l,
	)

	err := d.Dispatch(context.Background(), joinRaw("g1", "u1", "v1"))
	assert.ErrorIs(t, err, appErrors.ErrDispatcherStopped)
	assert.Error(t, d.Stop())
}

func TestStopDropsPendingConfirmations(t *testing.T) {
	h := newHarness(t)

	h.snap.set("v1", "u1")
	h.d.Handle(context.Background(), joinRaw("g1", "u1", "v1"))
	require.Equal(t, 1, h.d.GetStatus().PendingConfirmations)

	require.NoError(t, h.d.Stop())
	assert.Zero(t, h.d.GetStatus().PendingConfirmations)
	assert.False(t, h.d.GetStatus().IsRunning)

	h.clk.Advance(confirmDelay)
	assert.Empty(t, h.notifier.all())

	assert.ErrorIs(t, h.d.Dispatch(context.Background(), joinRaw("g1", "u2", "v2")), appErrors.ErrDispatcherStopped)
	assert.Error(t, h.d.Start(context.Background()))
}

package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogiaan1904/vcping/internal/domain"
	"github.com/vogiaan1904/vcping/pkg/logger"
)

type fakeSubs struct {
	subs []domain.Subscription
	err  error
}

func (f *fakeSubs) ListSubscribers(_ context.Context, communityID string) ([]domain.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Subscription
	for _, s := range f.subs {
		if s.CommunityID == communityID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeProfiles struct {
	missing map[string]bool
}

func (f *fakeProfiles) ResolveProfile(_ context.Context, _, userID string) (domain.Profile, error) {
	if f.missing[userID] {
		return domain.Profile{}, errors.New("unknown user")
	}
	return domain.Profile{UserID: userID, DisplayName: "name-" + userID}, nil
}

type fakeDirectory struct{}

func (fakeDirectory) Community(_ context.Context, id string) (domain.Community, error) {
	return domain.Community{ID: id, Name: "Guild " + id, IconURL: "https://cdn/icon-" + id}, nil
}

func (fakeDirectory) ChannelName(_ context.Context, id string) (string, error) {
	return "Voice " + id, nil
}

type fakeInvites struct {
	mu    sync.Mutex
	count int
}

func (f *fakeInvites) CreateInvite(_ context.Context, channelID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return fmt.Sprintf("https://discord.gg/%s-%d", channelID, f.count), nil
}

type fakeSender struct {
	mu      sync.Mutex
	sent    map[string]Message
	failFor map[string]bool
	block   map[string]chan struct{}
	// hang blocks a recipient's send until its ctx is done.
	hang map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		sent:    make(map[string]Message),
		failFor: make(map[string]bool),
		block:   make(map[string]chan struct{}),
		hang:    make(map[string]bool),
	}
}

func (f *fakeSender) SendDirect(ctx context.Context, recipient domain.Profile, msg Message) error {
	f.mu.Lock()
	wait := f.block[recipient.UserID]
	fail := f.failFor[recipient.UserID]
	hang := f.hang[recipient.UserID]
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}

	if wait != nil {
		<-wait
	}
	if fail {
		return errors.New("cannot send messages to this user")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[recipient.UserID] = msg
	return nil
}

func (f *fakeSender) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for id := range f.sent {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func subscribers() []domain.Subscription {
	return []domain.Subscription{
		{UserID: "u1", CommunityID: "g1", NotifyOnLeave: true},
		{UserID: "u2", CommunityID: "g1", NotifyOnLeave: true},
		{UserID: "u3", CommunityID: "g1", NotifyOnLeave: false},
		{UserID: "u4", CommunityID: "g2", NotifyOnLeave: true},
	}
}

func newTestNotifier(subs SubscriberLister, profiles ProfileResolver, sender Sender, invites InviteCreator) *Notifier {
	return NewNotifier(subs, profiles, fakeDirectory{}, invites, sender, Config{Concurrency: 4, Timeout: time.Second}, logger.InitializeTestZapLogger())
}

func TestNotifyActivatedExcludesActor(t *testing.T) {
	sender := newFakeSender()
	invites := &fakeInvites{}
	n := newTestNotifier(&fakeSubs{subs: subscribers()}, &fakeProfiles{}, sender, invites)

	actor := domain.Profile{UserID: "u1", DisplayName: "Alice", AvatarURL: "https://cdn/alice"}
	rep, err := n.NotifyActivated(context.Background(), "g1", "v1", actor)
	require.NoError(t, err)

	assert.Equal(t, Report{Recipients: 2, Delivered: 2}, rep)
	assert.Equal(t, []string{"u2", "u3"}, sender.recipients())

	msg := sender.sent["u2"]
	assert.Equal(t, MessageKindActivated, msg.Kind)
	assert.Equal(t, "Guild g1", msg.Title)
	assert.Equal(t, "Alice", msg.AuthorName)
	assert.Equal(t, "https://cdn/alice", msg.AuthorIconURL)
	assert.Equal(t, "Alice Started VC in Voice v1", msg.Description)
	assert.Equal(t, "https://cdn/icon-g1", msg.ThumbnailURL)
	assert.Contains(t, msg.URL, "https://discord.gg/v1-")

	// Each recipient gets its own single-use invite.
	assert.Equal(t, 2, invites.count)
	assert.NotEqual(t, sender.sent["u2"].URL, sender.sent["u3"].URL)
}

func TestNotifyDeactivatedRespectsLeavePreference(t *testing.T) {
	sender := newFakeSender()
	invites := &fakeInvites{}
	n := newTestNotifier(&fakeSubs{subs: subscribers()}, &fakeProfiles{}, sender, invites)

	rep, err := n.NotifyDeactivated(context.Background(), "g1", "v1", domain.Profile{UserID: "u1", DisplayName: "Alice"})
	require.NoError(t, err)

	assert.Equal(t, Report{Recipients: 1, Delivered: 1}, rep)
	assert.Equal(t, []string{"u2"}, sender.recipients())

	msg := sender.sent["u2"]
	assert.Equal(t, MessageKindDeactivated, msg.Kind)
	assert.Equal(t, "Alice Stopped VC in Voice v1", msg.Description)
	assert.Empty(t, msg.URL)
	assert.Zero(t, invites.count)
}

func TestDeliveryFailureIsIsolated(t *testing.T) {
	subs := []domain.Subscription{
		{UserID: "a", CommunityID: "g1"},
		{UserID: "b", CommunityID: "g1"},
		{UserID: "c", CommunityID: "g1"},
		{UserID: "d", CommunityID: "g1"},
	}
	sender := newFakeSender()
	sender.failFor["b"] = true
	profiles := &fakeProfiles{missing: map[string]bool{"c": true}}
	n := newTestNotifier(&fakeSubs{subs: subs}, profiles, sender, &fakeInvites{})

	rep, err := n.NotifyActivated(context.Background(), "g1", "v1", domain.Profile{UserID: "x", DisplayName: "X"})
	require.NoError(t, err)

	assert.Equal(t, Report{Recipients: 4, Delivered: 2, Failed: 2}, rep)
	assert.Equal(t, []string{"a", "d"}, sender.recipients())
}

func TestSlowRecipientDoesNotDelayOthers(t *testing.T) {
	subs := []domain.Subscription{
		{UserID: "slow", CommunityID: "g1"},
		{UserID: "fast1", CommunityID: "g1"},
		{UserID: "fast2", CommunityID: "g1"},
	}
	sender := newFakeSender()
	release := make(chan struct{})
	sender.block["slow"] = release
	n := newTestNotifier(&fakeSubs{subs: subs}, &fakeProfiles{}, sender, &fakeInvites{})

	done := make(chan Report)
	go func() {
		rep, _ := n.NotifyActivated(context.Background(), "g1", "v1", domain.Profile{UserID: "x", DisplayName: "X"})
		done <- rep
	}()

	assert.Eventually(t, func() bool {
		return len(sender.recipients()) == 2
	}, time.Second, 5*time.Millisecond)

	close(release)
	rep := <-done
	assert.Equal(t, 3, rep.Delivered)
}

func TestSubscriberListFailureIsReported(t *testing.T) {
	n := newTestNotifier(&fakeSubs{err: errors.New("redis down")}, &fakeProfiles{}, newFakeSender(), &fakeInvites{})

	_, err := n.NotifyActivated(context.Background(), "g1", "v1", domain.Profile{UserID: "x"})
	assert.Error(t, err)
}

func TestNoRecipientsSkipsLookups(t *testing.T) {
	sender := newFakeSender()
	subs := []domain.Subscription{{UserID: "u1", CommunityID: "g1"}}
	n := newTestNotifier(&fakeSubs{subs: subs}, &fakeProfiles{}, sender, &fakeInvites{})

	rep, err := n.NotifyActivated(context.Background(), "g1", "v1", domain.Profile{UserID: "u1", DisplayName: "A"})
	require.NoError(t, err)
	assert.Zero(t, rep.Recipients)
	assert.Empty(t, sender.recipients())
}

func TestActorWithoutDisplayNameIsResolved(t *testing.T) {
	sender := newFakeSender()
	subs := []domain.Subscription{{UserID: "u2", CommunityID: "g1", NotifyOnLeave: true}}
	n := newTestNotifier(&fakeSubs{subs: subs}, &fakeProfiles{}, sender, &fakeInvites{})

	_, err := n.NotifyDeactivated(context.Background(), "g1", "v1", domain.Profile{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "name-u1", sender.sent["u2"].AuthorName)
}

func TestRecipients(t *testing.T) {
	subs := subscribers()[:3]

	activated := Recipients(subs, "u2", MessageKindActivated)
	assert.Len(t, activated, 2)

	deactivated := Recipients(subs, "u2", MessageKindDeactivated)
	require.Len(t, deactivated, 1)
	assert.Equal(t, "u1", deactivated[0].UserID)
}

func TestRecipientTimeoutDoesNotStarveOthers(t *testing.T) {
	subs := []domain.Subscription{
		{UserID: "a_slow", CommunityID: "g1"},
		{UserID: "b_fast", CommunityID: "g1"},
	}
	sender := newFakeSender()
	sender.hang["a_slow"] = true
	n := NewNotifier(&fakeSubs{subs: subs}, &fakeProfiles{}, fakeDirectory{}, &fakeInvites{}, sender,
		Config{Concurrency: 1, Timeout: 50 * time.Millisecond}, logger.InitializeTestZapLogger())

	rep, err := n.NotifyActivated(context.Background(), "g1", "v1", domain.Profile{UserID: "x", DisplayName: "X"})
	require.NoError(t, err)

	assert.Equal(t, Report{Recipients: 2, Delivered: 1, Failed: 1}, rep)
	assert.Equal(t, []string{"b_fast"}, sender.recipients())
}

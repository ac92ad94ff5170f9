package occupancy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vogiaan1904/vcping/internal/domain"
	"github.com/vogiaan1904/vcping/pkg/clock"
	"github.com/vogiaan1904/vcping/pkg/logger"
)

// SnapshotProvider reports who is physically present in a voice channel
// right now. It is authoritative over the tracker's own bookkeeping.
type SnapshotProvider interface {
	GetMembers(ctx context.Context, channelID string) ([]string, error)
}

// Tracker owns the occupancy state of every voice channel it has seen.
// All mutation goes through its methods; each community is its own
// mutual exclusion domain so communities never contend with each other.
type Tracker struct {
	snap  SnapshotProvider
	clock clock.Clock
	l     logger.Logger

	mu          sync.Mutex
	communities map[string]*community
}

type community struct {
	mu       sync.Mutex
	channels map[string]*channelState
}

type channelState struct {
	status    domain.ChannelStatus
	members   map[string]struct{}
	updatedAt time.Time
}

func NewTracker(snap SnapshotProvider, clk clock.Clock, l logger.Logger) *Tracker {
	return &Tracker{
		snap:        snap,
		clock:       clk,
		l:           l,
		communities: make(map[string]*community),
	}
}

func (t *Tracker) community(id string) *community {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.communities[id]
	if !ok {
		c = &community{channels: make(map[string]*channelState)}
		t.communities[id] = c
	}
	return c
}

// Observe applies one normalized event and reports the transition it
// caused, if any.
func (t *Tracker) Observe(ctx context.Context, ev domain.VoiceMembershipEvent) *domain.Transition {
	c := t.community(ev.CommunityID)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case ev.IsJoin():
		return t.observeJoin(ctx, c, ev)
	case ev.IsLeave():
		return t.observeLeave(ctx, c, ev)
	default:
		t.l.Warnf(ctx, "occupancy.Tracker.Observe: event for user %s is neither a join nor a leave", ev.UserID)
		return nil
	}
}

func (t *Tracker) observeJoin(ctx context.Context, c *community, ev domain.VoiceMembershipEvent) *domain.Transition {
	chID := ev.NewChannelID
	ch, ok := c.channels[chID]
	if !ok {
		ch = &channelState{
			status:  domain.ChannelStatusEmpty,
			members: make(map[string]struct{}),
		}
		c.channels[chID] = ch
	}

	ch.members[ev.UserID] = struct{}{}
	ch.updatedAt = t.clock.Now()

	if ch.status != domain.ChannelStatusEmpty {
		t.l.Debugf(ctx, "User %s joined channel %s in status %s", ev.UserID, chID, ch.status)
		return nil
	}

	if len(ch.members) != 1 {
		t.l.Debugf(ctx, "User %s joined occupied channel %s (%d members)", ev.UserID, chID, len(ch.members))
		return nil
	}

	ch.status = domain.ChannelStatusPendingConfirmation
	t.l.Debugf(ctx, "Channel %s provisionally activated by %s", chID, ev.UserID)

	return &domain.Transition{
		Kind:        domain.TransitionActivatedProvisional,
		CommunityID: ev.CommunityID,
		ChannelID:   chID,
		Actor:       ev.Actor,
	}
}

func (t *Tracker) observeLeave(ctx context.Context, c *community, ev domain.VoiceMembershipEvent) *domain.Transition {
	chID := ev.PreviousChannelID

	members, err := t.snap.GetMembers(ctx, chID)
	if err != nil {
		delete(c.channels, chID)
		t.l.Warnf(ctx, "occupancy.Tracker.observeLeave: snapshot for channel %s failed, clearing state: %v", chID, err)
		return nil
	}

	ch := c.channels[chID]
	if len(members) > 0 {
		if ch != nil {
			ch.members = toSet(members)
			ch.updatedAt = t.clock.Now()
		}
		return nil
	}

	if ch == nil || ch.status == domain.ChannelStatusEmpty {
		delete(c.channels, chID)
		t.l.Warnf(ctx, "occupancy.Tracker.observeLeave: channel %s emptied but was never confirmed active", chID)
		return nil
	}

	if ch.status == domain.ChannelStatusPendingConfirmation {
		// The pending confirmation will see the empty channel and abort.
		ch.members = make(map[string]struct{})
		ch.updatedAt = t.clock.Now()
		return nil
	}

	delete(c.channels, chID)
	t.l.Debugf(ctx, "Channel %s deactivated after %s left", chID, ev.UserID)

	return &domain.Transition{
		Kind:        domain.TransitionDeactivated,
		CommunityID: ev.CommunityID,
		ChannelID:   chID,
		Actor:       ev.Actor,
	}
}

// Confirm re-reads the snapshot for a provisionally activated channel and
// either promotes it to active or resets it to empty.
func (t *Tracker) Confirm(ctx context.Context, communityID, channelID string) domain.ConfirmOutcome {
	c := t.community(communityID)
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.channels[channelID]
	if !ok || ch.status != domain.ChannelStatusPendingConfirmation {
		t.l.Debugf(ctx, "Channel %s is no longer pending confirmation", channelID)
		return domain.Aborted
	}

	members, err := t.snap.GetMembers(ctx, channelID)
	if err != nil {
		delete(c.channels, channelID)
		t.l.Warnf(ctx, "occupancy.Tracker.Confirm: snapshot for channel %s failed, clearing state: %v", channelID, err)
		return domain.Aborted
	}

	if len(members) == 0 {
		delete(c.channels, channelID)
		t.l.Debugf(ctx, "Channel %s emptied before confirmation", channelID)
		return domain.Aborted
	}

	ch.status = domain.ChannelStatusActive
	ch.members = toSet(members)
	ch.updatedAt = t.clock.Now()

	return domain.ConfirmedActive
}

// Status returns the tracked status of a channel. Untracked channels are
// empty.
func (t *Tracker) Status(communityID, channelID string) domain.ChannelStatus {
	c := t.community(communityID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.channels[channelID]; ok {
		return ch.status
	}
	return domain.ChannelStatusEmpty
}

// Channels returns copies of every tracked channel in a community, ordered
// by channel id.
func (t *Tracker) Channels(communityID string) []domain.ChannelState {
	c := t.community(communityID)
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.ChannelState, 0, len(c.channels))
	for id, ch := range c.channels {
		members := make([]string, 0, len(ch.members))
		for m := range ch.members {
			members = append(members, m)
		}
		sort.Strings(members)

		out = append(out, domain.ChannelState{
			ChannelID:   id,
			CommunityID: communityID,
			Status:      ch.status,
			Members:     members,
			UpdatedAt:   ch.updatedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

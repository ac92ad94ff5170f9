package notify

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/vogiaan1904/vcping/internal/domain"
	"github.com/vogiaan1904/vcping/pkg/logger"
	"golang.org/x/sync/errgroup"
)

type SubscriberLister interface {
	ListSubscribers(ctx context.Context, communityID string) ([]domain.Subscription, error)
}

// ProfileResolver returns a user's profile from whichever tier can answer,
// cache first and authoritative source second. Callers never see which.
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, communityID, userID string) (domain.Profile, error)
}

type Directory interface {
	Community(ctx context.Context, communityID string) (domain.Community, error)
	ChannelName(ctx context.Context, channelID string) (string, error)
}

// InviteCreator mints a single-use invite URL for a channel.
type InviteCreator interface {
	CreateInvite(ctx context.Context, channelID string) (string, error)
}

type Sender interface {
	SendDirect(ctx context.Context, recipient domain.Profile, msg Message) error
}

type Config struct {
	Concurrency int
	// Timeout bounds each recipient's delivery separately.
	Timeout time.Duration
}

// Report summarizes one notification fan-out.
type Report struct {
	Recipients int
	Delivered  int
	Failed     int
}

type Notifier struct {
	subs     SubscriberLister
	profiles ProfileResolver
	dir      Directory
	invites  InviteCreator
	sender   Sender
	cfg      Config
	l        logger.Logger
}

func NewNotifier(
	subs SubscriberLister,
	profiles ProfileResolver,
	dir Directory,
	invites InviteCreator,
	sender Sender,
	cfg Config,
	l logger.Logger,
) *Notifier {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Notifier{
		subs:     subs,
		profiles: profiles,
		dir:      dir,
		invites:  invites,
		sender:   sender,
		cfg:      cfg,
		l:        l,
	}
}

func (n *Notifier) NotifyActivated(ctx context.Context, communityID, channelID string, actor domain.Profile) (Report, error) {
	return n.notify(ctx, MessageKindActivated, communityID, channelID, actor)
}

func (n *Notifier) NotifyDeactivated(ctx context.Context, communityID, channelID string, actor domain.Profile) (Report, error) {
	return n.notify(ctx, MessageKindDeactivated, communityID, channelID, actor)
}

func (n *Notifier) notify(ctx context.Context, kind MessageKind, communityID, channelID string, actor domain.Profile) (Report, error) {
	subs, err := n.subs.ListSubscribers(ctx, communityID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list subscribers: %w", err)
	}

	recipients := Recipients(subs, actor.UserID, kind)
	if len(recipients) == 0 {
		n.l.Debugf(ctx, "No recipients for %s notification in community %s", kind, communityID)
		return Report{}, nil
	}

	community, err := n.dir.Community(ctx, communityID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to resolve community: %w", err)
	}

	channelName, err := n.dir.ChannelName(ctx, channelID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to resolve channel: %w", err)
	}

	actor = n.completeActor(ctx, communityID, actor)

	var delivered, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(n.cfg.Concurrency)

	for _, sub := range recipients {
		g.Go(func() error {
			if err := n.deliverWithTimeout(ctx, kind, sub, community, channelID, channelName, actor); err != nil {
				failed.Add(1)
				n.l.Warnf(ctx, "notify.Notifier.deliver: %s notification to %s failed: %v", kind, sub.UserID, err)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{
		Recipients: len(recipients),
		Delivered:  int(delivered.Load()),
		Failed:     int(failed.Load()),
	}
	n.l.Infof(ctx, "Sent %s notification for channel %s: %d/%d delivered", kind, channelID, rep.Delivered, rep.Recipients)

	return rep, nil
}

// deliverWithTimeout bounds one recipient's lookups and send by cfg.Timeout.
func (n *Notifier) deliverWithTimeout(
	ctx context.Context,
	kind MessageKind,
	sub domain.Subscription,
	community domain.Community,
	channelID, channelName string,
	actor domain.Profile,
) error {
	if n.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.Timeout)
		defer cancel()
	}
	return n.deliver(ctx, kind, sub, community, channelID, channelName, actor)
}

func (n *Notifier) deliver(
	ctx context.Context,
	kind MessageKind,
	sub domain.Subscription,
	community domain.Community,
	channelID, channelName string,
	actor domain.Profile,
) error {
	recipient, err := n.profiles.ResolveProfile(ctx, sub.CommunityID, sub.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	var msg Message
	if kind == MessageKindActivated {
		invite, err := n.invites.CreateInvite(ctx, channelID)
		if err != nil {
			return fmt.Errorf("create invite: %w", err)
		}
		msg = NewActivatedMessage(community, channelName, actor, invite)
	} else {
		msg = NewDeactivatedMessage(community, channelName, actor)
	}

	return n.sender.SendDirect(ctx, recipient, msg)
}

// completeActor fills in display data the event source did not carry.
func (n *Notifier) completeActor(ctx context.Context, communityID string, actor domain.Profile) domain.Profile {
	if actor.DisplayName != "" {
		return actor
	}

	p, err := n.profiles.ResolveProfile(ctx, communityID, actor.UserID)
	if err != nil {
		n.l.Warnf(ctx, "notify.Notifier.completeActor: %v", err)
		actor.DisplayName = actor.UserID
		return actor
	}
	return p
}

// Recipients filters subscribers down to who should hear about a
// transition: never the actor, and for deactivations only those who asked
// for leave notifications.
func Recipients(subs []domain.Subscription, actorID string, kind MessageKind) []domain.Subscription {
	out := make([]domain.Subscription, 0, len(subs))
	for _, s := range subs {
		if s.UserID == actorID {
			continue
		}
		if kind == MessageKindDeactivated && !s.NotifyOnLeave {
			continue
		}
		out = append(out, s)
	}
	return out
}

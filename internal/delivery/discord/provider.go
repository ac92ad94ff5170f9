package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/vogiaan1904/vcping/internal/domain"
	appErrors "github.com/vogiaan1904/vcping/internal/errors"
	"github.com/vogiaan1904/vcping/internal/notify"
	"github.com/vogiaan1904/vcping/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// Provider answers every question the engine asks about the chat platform:
// who is in a voice channel, what a community and channel are called, who a
// user is, plus minting invites and sending direct messages. Reads go to
// the session cache first and fall back to the REST API.
type Provider struct {
	s  *discordgo.Session
	sf singleflight.Group
	l  logger.Logger
}

func NewProvider(s *discordgo.Session, l logger.Logger) *Provider {
	return &Provider{
		s: s,
		l: l,
	}
}

// GetMembers lists the users currently connected to channelID, as seen by
// the gateway cache.
func (p *Provider) GetMembers(ctx context.Context, channelID string) ([]string, error) {
	ch, err := p.channel(channelID)
	if err != nil {
		return nil, err
	}

	g, err := p.s.State.Guild(ch.GuildID)
	if err != nil {
		p.l.Warnf(ctx, "delivery.discord.Provider.GetMembers: guild %s not cached: %v", ch.GuildID, err)
		return nil, fmt.Errorf("guild %s not cached: %w", ch.GuildID, err)
	}

	p.s.State.RLock()
	defer p.s.State.RUnlock()

	var members []string
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == channelID {
			members = append(members, vs.UserID)
		}
	}
	return members, nil
}

func (p *Provider) Community(ctx context.Context, communityID string) (domain.Community, error) {
	g, err := p.s.State.Guild(communityID)
	if err != nil {
		g, err = p.s.Guild(communityID, discordgo.WithContext(ctx))
		if err != nil {
			return domain.Community{}, mapRESTError(err, appErrors.ErrCommunityNotFound)
		}
	}

	return domain.Community{
		ID:      g.ID,
		Name:    g.Name,
		IconURL: g.IconURL(""),
	}, nil
}

func (p *Provider) ChannelName(_ context.Context, channelID string) (string, error) {
	ch, err := p.channel(channelID)
	if err != nil {
		return "", err
	}
	return ch.Name, nil
}

// ResolveProfile looks a member up in the cache, then asks the API.
// Concurrent lookups for the same user share one request.
func (p *Provider) ResolveProfile(ctx context.Context, communityID, userID string) (domain.Profile, error) {
	if m, err := p.s.State.Member(communityID, userID); err == nil {
		return memberProfile(m), nil
	}

	v, err, _ := p.sf.Do(communityID+"/"+userID, func() (any, error) {
		if m, err := p.s.GuildMember(communityID, userID, discordgo.WithContext(ctx)); err == nil {
			return memberProfile(m), nil
		}

		u, err := p.s.User(userID, discordgo.WithContext(ctx))
		if err != nil {
			return domain.Profile{}, mapRESTError(err, appErrors.ErrProfileNotFound)
		}
		return userProfile(u), nil
	})
	if err != nil {
		p.l.Warnf(ctx, "delivery.discord.Provider.ResolveProfile: %s: %v", userID, err)
		return domain.Profile{}, err
	}
	return v.(domain.Profile), nil
}

// CreateInvite mints a single-use invite to channelID.
func (p *Provider) CreateInvite(ctx context.Context, channelID string) (string, error) {
	inv, err := p.s.ChannelInviteCreate(channelID, discordgo.Invite{
		MaxUses: 1,
		Unique:  true,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapRESTError(err, appErrors.ErrChannelNotFound)
	}
	return inviteBaseURL + inv.Code, nil
}

func (p *Provider) SendDirect(ctx context.Context, recipient domain.Profile, msg notify.Message) error {
	dm, err := p.s.UserChannelCreate(recipient.UserID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open direct channel: %w", err)
	}

	if _, err := p.s.ChannelMessageSendEmbed(dm.ID, toEmbed(msg), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send embed: %w", err)
	}
	return nil
}

func (p *Provider) channel(channelID string) (*discordgo.Channel, error) {
	if ch, err := p.s.State.Channel(channelID); err == nil {
		return ch, nil
	}

	ch, err := p.s.Channel(channelID)
	if err != nil {
		return nil, mapRESTError(err, appErrors.ErrChannelNotFound)
	}
	return ch, nil
}

// mapRESTError turns a 404 from the API into notFound.
func mapRESTError(err, notFound error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", notFound, err)
	}
	return err
}

package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/vogiaan1904/vcping/internal/domain"
	"github.com/vogiaan1904/vcping/internal/notify"
)

const inviteBaseURL = "https://discord.gg/"

// toRawVoiceState converts a gateway update. It reports false for updates
// outside a guild, which carry no community to track.
func toRawVoiceState(v *discordgo.VoiceStateUpdate, observedAt time.Time) (domain.RawVoiceState, bool) {
	if v == nil || v.VoiceState == nil || v.GuildID == "" {
		return domain.RawVoiceState{}, false
	}

	raw := domain.RawVoiceState{
		CommunityID: v.GuildID,
		UserID:      v.UserID,
		ChannelID:   v.ChannelID,
		ObservedAt:  observedAt,
	}
	if v.BeforeUpdate != nil {
		raw.PreviousChannelID = v.BeforeUpdate.ChannelID
	}
	if v.Member != nil {
		raw.Member = memberProfile(v.Member)
	}
	raw.Member.UserID = v.UserID

	return raw, true
}

func memberProfile(m *discordgo.Member) domain.Profile {
	if m == nil || m.User == nil {
		return domain.Profile{}
	}

	p := userProfile(m.User)
	if m.Nick != "" {
		p.DisplayName = m.Nick
	}
	p.AvatarURL = m.AvatarURL("")
	return p
}

func userProfile(u *discordgo.User) domain.Profile {
	if u == nil {
		return domain.Profile{}
	}

	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	return domain.Profile{
		UserID:      u.ID,
		DisplayName: name,
		AvatarURL:   u.AvatarURL(""),
	}
}

func toEmbed(msg notify.Message) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		URL:         msg.URL,
		Description: msg.Description,
		Author: &discordgo.MessageEmbedAuthor{
			Name:    msg.AuthorName,
			IconURL: msg.AuthorIconURL,
		},
	}
	if msg.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: msg.ThumbnailURL}
	}
	return embed
}

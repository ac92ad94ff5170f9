package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

const (
	commandName             = "vcping"
	optionDisconnectMessage = "disconnect-message"

	replyFailed    = "Something went wrong, please try again later."
	replyGuildOnly = "This command can only be used in a server."
)

var vcpingCommand = &discordgo.ApplicationCommand{
	Name:        commandName,
	Description: "Toggle notifications when someone starts a voice chat in this server",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionBoolean,
			Name:        optionDisconnectMessage,
			Description: "Also notify when the voice chat ends",
			Required:    false,
		},
	},
}

func registerCommands(s *discordgo.Session, appID string) error {
	if _, err := s.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{vcpingCommand}); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	return nil
}

func (g *Gateway) handleToggle(ctx context.Context, i *discordgo.Interaction) string {
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return replyGuildOnly
	}

	flag := disconnectOption(i.ApplicationCommandData().Options)
	res, err := g.subs.Toggle(ctx, i.GuildID, i.Member.User.ID, flag)
	if err != nil {
		g.l.Errorf(ctx, "delivery.discord.Gateway.handleToggle: %v", err)
		return replyFailed
	}

	g.l.Infof(ctx, "User %s %s in guild %s", i.Member.User.ID, res, i.GuildID)
	return res.Message()
}

// disconnectOption returns the disconnect-message flag, or nil when the
// user left it out.
func disconnectOption(opts []*discordgo.ApplicationCommandInteractionDataOption) *bool {
	for _, o := range opts {
		if o.Name == optionDisconnectMessage && o.Type == discordgo.ApplicationCommandOptionBoolean {
			v := o.BoolValue()
			return &v
		}
	}
	return nil
}

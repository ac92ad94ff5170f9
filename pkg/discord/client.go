package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

type ClientConfig struct {
	Token string
}

// NewSession builds a bot session that tracks guilds, channels and voice
// states in its local cache and runs event handlers one at a time, in
// gateway order.
func NewSession(cfg ClientConfig) (*discordgo.Session, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}

	s, err := discordgo.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	s.SyncEvents = true
	s.StateEnabled = true
	s.State.TrackChannels = true
	s.State.TrackVoice = true
	s.State.TrackMembers = true

	return s, nil
}

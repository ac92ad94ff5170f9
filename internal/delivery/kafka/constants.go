package kafka

const (
	// Raw voice-state relay, keyed by community id.
	TopicVoiceStateUpdated = "voice.state.updated"

	TopicChannelActivated   = "voice.channel.activated"
	TopicChannelDeactivated = "voice.channel.deactivated"
)

const (
	HeaderTimestamp = "timestamp"
	HeaderEventID   = "event_id"
)

package domain

import "time"

type ChannelStatus string

const (
	ChannelStatusEmpty               ChannelStatus = "empty"
	ChannelStatusPendingConfirmation ChannelStatus = "pending_confirmation"
	ChannelStatusActive              ChannelStatus = "active"
)

// Profile is the user-facing identity shown in a notification.
type Profile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// RawVoiceState is one voice-state change as reported by the real-time
// source. An empty channel id means "not in a voice channel".
type RawVoiceState struct {
	TraceID           string    `json:"trace_id,omitempty"`
	CommunityID       string    `json:"community_id"`
	UserID            string    `json:"user_id"`
	PreviousChannelID string    `json:"previous_channel_id,omitempty"`
	ChannelID         string    `json:"channel_id,omitempty"`
	Member            Profile   `json:"member"`
	ObservedAt        time.Time `json:"observed_at"`
}

// VoiceMembershipEvent is a normalized join or leave. Exactly one of
// PreviousChannelID and NewChannelID is set.
type VoiceMembershipEvent struct {
	CommunityID       string
	UserID            string
	PreviousChannelID string
	NewChannelID      string
	Actor             Profile
}

func (e VoiceMembershipEvent) IsJoin() bool {
	return e.PreviousChannelID == "" && e.NewChannelID != ""
}

func (e VoiceMembershipEvent) IsLeave() bool {
	return e.PreviousChannelID != "" && e.NewChannelID == ""
}

type TransitionKind string

const (
	TransitionActivatedProvisional TransitionKind = "activated_provisional"
	TransitionDeactivated          TransitionKind = "deactivated"
)

// Transition is what the occupancy tracker reports after observing an event.
type Transition struct {
	Kind        TransitionKind
	CommunityID string
	ChannelID   string
	Actor       Profile
}

// ConfirmOutcome is the result of re-checking a provisional activation.
type ConfirmOutcome int

const (
	Aborted ConfirmOutcome = iota
	ConfirmedActive
)

func (o ConfirmOutcome) String() string {
	if o == ConfirmedActive {
		return "confirmed_active"
	}
	return "aborted"
}

// ChannelState is a read-only copy of one tracked channel.
type ChannelState struct {
	ChannelID   string        `json:"channel_id"`
	CommunityID string        `json:"community_id"`
	Status      ChannelStatus `json:"status"`
	Members     []string      `json:"members"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Community is the display information of a guild.
type Community struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IconURL string `json:"icon_url,omitempty"`
}

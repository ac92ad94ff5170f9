package kafka

import (
	"time"

	"github.com/vogiaan1904/vcping/internal/domain"
)

// Events consumed and relayed BY the gateway

type VoiceStateEvent struct {
	TraceID           string    `json:"trace_id"`
	CommunityID       string    `json:"community_id"`
	UserID            string    `json:"user_id"`
	PreviousChannelID string    `json:"previous_channel_id,omitempty"`
	ChannelID         string    `json:"channel_id,omitempty"`
	DisplayName       string    `json:"display_name,omitempty"`
	AvatarURL         string    `json:"avatar_url,omitempty"`
	ObservedAt        time.Time `json:"observed_at"`
	Timestamp         time.Time `json:"timestamp"`
}

func NewVoiceStateEvent(raw domain.RawVoiceState) VoiceStateEvent {
	return VoiceStateEvent{
		TraceID:           raw.TraceID,
		CommunityID:       raw.CommunityID,
		UserID:            raw.UserID,
		PreviousChannelID: raw.PreviousChannelID,
		ChannelID:         raw.ChannelID,
		DisplayName:       raw.Member.DisplayName,
		AvatarURL:         raw.Member.AvatarURL,
		ObservedAt:        raw.ObservedAt,
	}
}

func (e VoiceStateEvent) ToDomain() domain.RawVoiceState {
	return domain.RawVoiceState{
		TraceID:           e.TraceID,
		CommunityID:       e.CommunityID,
		UserID:            e.UserID,
		PreviousChannelID: e.PreviousChannelID,
		ChannelID:         e.ChannelID,
		Member: domain.Profile{
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			AvatarURL:   e.AvatarURL,
		},
		ObservedAt: e.ObservedAt,
	}
}

// Events published BY the dispatcher

type ChannelTransitionEvent struct {
	EventID     string    `json:"event_id"`
	CommunityID string    `json:"community_id"`
	ChannelID   string    `json:"channel_id"`
	ActorID     string    `json:"actor_id"`
	ActorName   string    `json:"actor_name,omitempty"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewChannelTransitionEvent(tn domain.Transition, status domain.ChannelStatus) ChannelTransitionEvent {
	return ChannelTransitionEvent{
		CommunityID: tn.CommunityID,
		ChannelID:   tn.ChannelID,
		ActorID:     tn.Actor.UserID,
		ActorName:   tn.Actor.DisplayName,
		Status:      string(status),
	}
}

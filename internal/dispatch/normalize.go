package dispatch

import "github.com/vogiaan1904/vcping/internal/domain"

// Normalize turns one raw voice-state change into the joins and leaves it
// represents. Updates that keep the user in the same channel (mute, deafen,
// stream) yield nothing; a move yields the leave of the old channel
// followed by the join of the new one.
func Normalize(raw domain.RawVoiceState) []domain.VoiceMembershipEvent {
	prev, next := raw.PreviousChannelID, raw.ChannelID
	if prev == next {
		return nil
	}

	actor := raw.Member
	if actor.UserID == "" {
		actor.UserID = raw.UserID
	}

	out := make([]domain.VoiceMembershipEvent, 0, 2)
	if prev != "" {
		out = append(out, domain.VoiceMembershipEvent{
			CommunityID:       raw.CommunityID,
			UserID:            raw.UserID,
			PreviousChannelID: prev,
			Actor:             actor,
		})
	}
	if next != "" {
		out = append(out, domain.VoiceMembershipEvent{
			CommunityID:  raw.CommunityID,
			UserID:       raw.UserID,
			NewChannelID: next,
			Actor:        actor,
		})
	}
	return out
}

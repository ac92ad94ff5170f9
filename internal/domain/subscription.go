package domain

import "time"

// Subscription opts a user in to voice-activity notifications for one
// community.
type Subscription struct {
	UserID        string    `json:"user_id"`
	CommunityID   string    `json:"community_id"`
	NotifyOnLeave bool      `json:"notify_on_leave"`
	UpdatedAt     time.Time `json:"updated_at"`
}

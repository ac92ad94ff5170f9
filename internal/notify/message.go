package notify

import (
	"fmt"

	"github.com/vogiaan1904/vcping/internal/domain"
)

type MessageKind string

const (
	MessageKindActivated   MessageKind = "activated"
	MessageKindDeactivated MessageKind = "deactivated"
)

// Message is one rendered notification, laid out as a chat embed.
type Message struct {
	Kind          MessageKind
	Title         string
	URL           string
	AuthorName    string
	AuthorIconURL string
	Description   string
	ThumbnailURL  string
}

func NewActivatedMessage(c domain.Community, channelName string, actor domain.Profile, inviteURL string) Message {
	return Message{
		Kind:          MessageKindActivated,
		Title:         c.Name,
		URL:           inviteURL,
		AuthorName:    actor.DisplayName,
		AuthorIconURL: actor.AvatarURL,
		Description:   fmt.Sprintf("%s Started VC in %s", actor.DisplayName, channelName),
		ThumbnailURL:  c.IconURL,
	}
}

func NewDeactivatedMessage(c domain.Community, channelName string, actor domain.Profile) Message {
	return Message{
		Kind:          MessageKindDeactivated,
		Title:         c.Name,
		AuthorName:    actor.DisplayName,
		AuthorIconURL: actor.AvatarURL,
		Description:   fmt.Sprintf("%s Stopped VC in %s", actor.DisplayName, channelName),
		ThumbnailURL:  c.IconURL,
	}
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVoiceMembershipEventKind(t *testing.T) {
	join := VoiceMembershipEvent{NewChannelID: "v1"}
	leave := VoiceMembershipEvent{PreviousChannelID: "v1"}
	move := VoiceMembershipEvent{PreviousChannelID: "v1", NewChannelID: "v2"}

	assert.True(t, join.IsJoin())
	assert.False(t, join.IsLeave())
	assert.True(t, leave.IsLeave())
	assert.False(t, leave.IsJoin())
	assert.False(t, move.IsJoin())
	assert.False(t, move.IsLeave())
}

func TestConfirmOutcomeString(t *testing.T) {
	assert.Equal(t, "confirmed_active", ConfirmedActive.String())
	assert.Equal(t, "aborted", Aborted.String())
}

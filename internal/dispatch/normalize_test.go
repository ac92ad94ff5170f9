package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogiaan1904/vcping/internal/domain"
)

func TestNormalize(t *testing.T) {
	member := domain.Profile{UserID: "u1", DisplayName: "Alice"}

	t.Run("join", func(t *testing.T) {
		evs := Normalize(domain.RawVoiceState{CommunityID: "g1", UserID: "u1", ChannelID: "v1", Member: member})
		require.Len(t, evs, 1)
		assert.True(t, evs[0].IsJoin())
		assert.Equal(t, "v1", evs[0].NewChannelID)
		assert.Equal(t, "Alice", evs[0].Actor.DisplayName)
	})

	t.Run("leave", func(t *testing.T) {
		evs := Normalize(domain.RawVoiceState{CommunityID: "g1", UserID: "u1", PreviousChannelID: "v1"})
		require.Len(t, evs, 1)
		assert.True(t, evs[0].IsLeave())
		assert.Equal(t, "u1", evs[0].Actor.UserID)
	})

	t.Run("move is leave then join", func(t *testing.T) {
		evs := Normalize(domain.RawVoiceState{CommunityID: "g1", UserID: "u1", PreviousChannelID: "v1", ChannelID: "v2"})
		require.Len(t, evs, 2)
		assert.True(t, evs[0].IsLeave())
		assert.Equal(t, "v1", evs[0].PreviousChannelID)
		assert.True(t, evs[1].IsJoin())
		assert.Equal(t, "v2", evs[1].NewChannelID)
	})

	t.Run("same channel update", func(t *testing.T) {
		assert.Empty(t, Normalize(domain.RawVoiceState{UserID: "u1", PreviousChannelID: "v1", ChannelID: "v1"}))
	})

	t.Run("no channel at all", func(t *testing.T) {
		assert.Empty(t, Normalize(domain.RawVoiceState{UserID: "u1"}))
	})
}

package groups

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairKeyIsSymmetric(t *testing.T) {
	require.Equal(t, PairKey(3, 7), PairKey(7, 3))
	require.Equal(t, "user:3:7", PairKey(7, 3))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "user:1", UserKey(1))
	assert.Equal(t, "team:2", TeamKey(2))
	assert.Equal(t, "channel:3", ChannelKey(3))
}

func TestParse(t *testing.T) {
	id, ok := ParseTeamKey(TeamKey(12))
	require.True(t, ok)
	require.Equal(t, 12, id)

	id, ok = ParseChannelKey("channel:9")
	require.True(t, ok)
	require.Equal(t, 9, id)

	for _, key := range []string{"channel:9", "team:", "team:x", "user:1", "team:-4"} {
		_, ok := ParseTeamKey(key)
		assert.False(t, ok, key)
	}
}

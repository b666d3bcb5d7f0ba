// Package groups builds and parses the names of fan-out groups.
package groups

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	userPrefix    = "user:"
	teamPrefix    = "team:"
	channelPrefix = "channel:"
)

// UserKey is the per-user group that every connection of the user joins.
func UserKey(userID int) string {
	return userPrefix + strconv.Itoa(userID)
}

// TeamKey names the group of a team.
func TeamKey(teamID int) string {
	return teamPrefix + strconv.Itoa(teamID)
}

// ChannelKey names the group of a channel, group or DM.
func ChannelKey(channelID int) string {
	return channelPrefix + strconv.Itoa(channelID)
}

// PairKey is the legacy direct-conversation group name. Order of a and b does not matter.
func PairKey(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s%d:%d", userPrefix, a, b)
}

// ParseTeamKey returns the team id of a team group key.
func ParseTeamKey(key string) (int, bool) {
	return parse(key, teamPrefix)
}

// ParseChannelKey returns the channel id of a channel group key.
func ParseChannelKey(key string) (int, bool) {
	return parse(key, channelPrefix)
}

func parse(key, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

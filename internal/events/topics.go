package events

import "github.com/park285/cheese-arena/internal/broadcast"

func LobbyTopic(lobbyID string) string { return "lobby:" + lobbyID }

func GameTopic(gameID string) string { return "game:" + gameID }

// PlayerTopic is the player's own connections.
func PlayerTopic(playerID string) string { return "player:" + playerID }

// ActivityTopic carries presence and results to anyone watching a player.
func ActivityTopic(playerID string) string { return "activity:" + playerID }

// InvitesTopic carries lobby invitations addressed to a player.
func InvitesTopic(playerID string) string { return "invites:" + playerID }

type Target = broadcast.Target

// Channels builds a target over the given topic keys.
func Channels(keys ...string) Target {
	return Target{Channels: keys}
}

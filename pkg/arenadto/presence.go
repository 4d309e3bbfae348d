package arenadto

// PresenceStatus is the visible presence of a player.
type PresenceStatus struct {
	PlayerID string `json:"playerId"`
	Online   bool   `json:"online"`
	GameID   string `json:"gameId,omitempty"`
}

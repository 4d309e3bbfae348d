package domain

import "strings"

// Player is the identity supplied by the caller on every action. The engine
// trusts it and only ever references players by ID.
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef,omitempty"`
}

func (p Player) Valid() bool { return strings.TrimSpace(p.ID) != "" }

// Name falls back to the id when no display name was given.
func (p Player) Name() string {
	if n := strings.TrimSpace(p.DisplayName); n != "" {
		return n
	}
	return p.ID
}

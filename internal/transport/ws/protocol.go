package ws

import (
	"encoding/json"

	"github.com/park285/cheese-arena/pkg/arenadto"
)

// Request is one client call; ID is echoed on the matching Response.
type Request struct {
	ID   string          `json:"id"`
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Response struct {
	ID    string     `json:"id"`
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *WireError `json:"error,omitempty"`
}

type WireError struct {
	Code      arenadto.Code `json:"code"`
	Message   string        `json:"message"`
	Retryable bool          `json:"retryable,omitempty"`
}

type helloRequest struct {
	Player struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
		AvatarRef   string `json:"avatarRef,omitempty"`
	} `json:"player"`
}

type helloResponse struct {
	ConnectionID string                  `json:"connectionId"`
	Status       arenadto.PresenceStatus `json:"status"`
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return arenadto.ErrInvalidRequest.With("malformed data: " + err.Error())
	}
	return nil
}

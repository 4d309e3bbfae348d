package arenadto

import "errors"

// Code classifies an expected, caller-recoverable failure.
type Code string

const (
	CodeAlreadyInLobby    Code = "already_in_lobby"
	CodeAlreadyInGame     Code = "already_in_game"
	CodeSelfJoin          Code = "self_join"
	CodeNotFound          Code = "not_found"
	CodeLobbyAlreadyEnded Code = "lobby_already_ended"
	CodeWrongTurn         Code = "wrong_turn"
	CodeIllegalMove       Code = "illegal_move"
	CodeGameNotActive     Code = "game_not_active"
	CodeUnauthorized      Code = "unauthorized"
	CodeInvalidRequest    Code = "invalid_request"
	CodeInternal          Code = "internal"
)

type DomainError struct {
	Code      Code
	Message   string
	Retryable bool
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return string(e.Code)
	}
	return "arena error"
}

// Is matches any DomainError carrying the same code, so wrapped or
// re-messaged errors still satisfy errors.Is against the sentinels below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// With returns a copy of e carrying a more specific message.
func (e *DomainError) With(message string) *DomainError {
	return &DomainError{Code: e.Code, Message: message, Retryable: e.Retryable}
}

var (
	ErrAlreadyInLobby    = &DomainError{Code: CodeAlreadyInLobby, Message: "player already has an open lobby"}
	ErrAlreadyInGame     = &DomainError{Code: CodeAlreadyInGame, Message: "player already has an active game"}
	ErrSelfJoin          = &DomainError{Code: CodeSelfJoin, Message: "cannot join your own lobby"}
	ErrNotFound          = &DomainError{Code: CodeNotFound, Message: "not found"}
	ErrLobbyAlreadyEnded = &DomainError{Code: CodeLobbyAlreadyEnded, Message: "lobby already ended"}
	ErrWrongTurn         = &DomainError{Code: CodeWrongTurn, Message: "not your turn"}
	ErrIllegalMove       = &DomainError{Code: CodeIllegalMove, Message: "illegal move"}
	ErrGameNotActive     = &DomainError{Code: CodeGameNotActive, Message: "game is not active"}
	ErrUnauthorized      = &DomainError{Code: CodeUnauthorized, Message: "not a participant"}
	ErrInvalidRequest    = &DomainError{Code: CodeInvalidRequest, Message: "invalid request"}
	ErrInternal          = &DomainError{Code: CodeInternal, Message: "internal error", Retryable: true}
)

// CodeOf reports the code of err; anything that is not a DomainError is internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsDomain reports whether err is an expected failure rather than a fault.
func IsDomain(err error) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Code != CodeInternal
}

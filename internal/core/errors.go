package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeAlreadyJoined = "already_joined"
	ErrCodeDuplicateUser = "duplicate_user"
	ErrCodeNotJoined     = "not_joined"
	ErrCodeUnknownPeer   = "unknown_peer"
)

var (
	ErrAlreadyJoined = errors.New("already joined a room")
	ErrDuplicateUser = errors.New("user id already present in room")
	ErrNotJoined     = errors.New("not joined to any room")
	ErrUnknownPeer   = errors.New("no such peer in room")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

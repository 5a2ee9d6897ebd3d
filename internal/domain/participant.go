// Package domain contains value types without transport or lifecycle logic.
package domain

import (
	"errors"
	"unicode/utf8"
)

const (
	MaxUsernameLen = 36
	// UnknownSender names the author of a chat message the room could not attribute.
	UnknownSender ParticipantID = "Unknown"
	// LocalIdentity is reported for the local participant while no room is joined.
	LocalIdentity ParticipantID = "local"
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

// ParticipantID is the opaque identity a room assigns to an endpoint.
type ParticipantID string

type RoomName string

// Participant is a read-only snapshot of a remote endpoint.
type Participant struct {
	ID       ParticipantID `json:"id"`
	Username string        `json:"username,omitempty"`
	Metadata string        `json:"metadata,omitempty"`
}

// ValidateUsername applies the same limits the room server enforces on rename.
func ValidateUsername(username string) error {
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if utf8.RuneCountInString(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	return nil
}

// Package domain contains entities without logic, just meta-data
package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MaxUsernameLen = 36
	AnonymousName  = "Anonymous"
	MaxRoomIDLen   = 64
	MaxFileNameLen = 128
	MaxChatLen     = 2000
)

var (
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUsernameInvalid = errors.New("username invalid")
	ErrMessageEmpty    = errors.New("message empty")
	ErrMessageTooLong  = errors.New("message too long")
	ErrRoomIDEmpty     = errors.New("room id empty")
	ErrRoomIDTooLong   = errors.New("room id too long")
	ErrFileNameEmpty   = errors.New("file name empty")
	ErrFileNameTooLong = errors.New("file name too long")
)

// NormalizeUsername trims the name and cuts it to MaxUsernameLen runes.
// Empty names become AnonymousName.
func NormalizeUsername(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return AnonymousName
	}
	if utf8.RuneCountInString(name) > MaxUsernameLen {
		name = string([]rune(name)[:MaxUsernameLen])
	}
	return name
}

// ValidateUsername is the strict variant used by rename.
func ValidateUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrUsernameEmpty
	}
	if !utf8.ValidString(name) {
		return "", ErrUsernameInvalid
	}
	return NormalizeUsername(name), nil
}

func ValidateRoomID(id string) (RoomID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrRoomIDEmpty
	}
	if len(id) > MaxRoomIDLen {
		return "", ErrRoomIDTooLong
	}
	return RoomID(id), nil
}

func ValidateFileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrFileNameEmpty
	}
	if len(name) > MaxFileNameLen {
		return "", ErrFileNameTooLong
	}
	return name, nil
}

func ValidateChatMessage(msg string) error {
	if strings.TrimSpace(msg) == "" {
		return ErrMessageEmpty
	}
	if utf8.RuneCountInString(msg) > MaxChatLen {
		return ErrMessageTooLong
	}
	return nil
}

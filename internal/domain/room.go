package domain

import "time"

type RoomID string

// CallRoomID derives the id of the parallel call channel of a coding room.
func CallRoomID(room RoomID) RoomID {
	if room == "" {
		return ""
	}
	return room + "-call"
}

const (
	DefaultFileName     = "untitled.js"
	DefaultFileLanguage = "javascript"
)

// File is one document of a room. Code is opaque to the server.
type File struct {
	Name       string    `json:"name"`
	Code       string    `json:"code"`
	Language   string    `json:"language"`
	ModifiedAt time.Time `json:"lastModified"`
	CreatedBy  string    `json:"createdBy"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	UserName  string    `json:"userName"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

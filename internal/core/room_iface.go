package core

import (
	"github.com/dkeye/CodeRoom/internal/domain"
)

// VisibleChatWindow is how many recent chat messages a late joiner sees.
const VisibleChatWindow = 50

// RoomInfo is the read-only projection of a room. Files are sorted by name.
type RoomInfo struct {
	RoomID      domain.RoomID `json:"roomId"`
	Members     []string      `json:"members"`
	MemberCount int           `json:"memberCount"`
	Language    string        `json:"language"`
	ActiveFile  string        `json:"activeFile"`
	Files       []domain.File `json:"files"`
}

// ActiveCode returns the code of the active file.
func (i RoomInfo) ActiveCode() string {
	for _, f := range i.Files {
		if f.Name == i.ActiveFile {
			return f.Code
		}
	}
	return ""
}

type RoomSummary struct {
	RoomID      domain.RoomID `json:"roomId"`
	MemberCount int           `json:"memberCount"`
	Language    string        `json:"language"`
}

type RoomStats struct {
	TotalRooms int           `json:"totalRooms"`
	Rooms      []RoomSummary `json:"rooms"`
}

// RoomManager owns every room of the process.
// Membership is a set of display names; see Room.
type RoomManager interface {
	GetOrCreate(id domain.RoomID) *Room
	Get(id domain.RoomID) (*Room, bool)
	Delete(id domain.RoomID)
	// DeleteIfEmpty removes the room when no member names are left and reports whether it did.
	DeleteIfEmpty(id domain.RoomID) bool

	CreateFile(id domain.RoomID, name, language, creator string) error
	DeleteFile(id domain.RoomID, name string) error
	RenameFile(id domain.RoomID, oldName, newName string) error
	SetActiveFile(id domain.RoomID, name string) (domain.File, error)
	UpdateCode(id domain.RoomID, code string) (domain.File, error)
	UpdateLanguage(id domain.RoomID, language string) (domain.File, error)
	AddMessage(id domain.RoomID, userName, text string) (domain.ChatMessage, error)
	Messages(id domain.RoomID, limit int) ([]domain.ChatMessage, error)

	Snapshot(id domain.RoomID) (RoomInfo, error)
	Stats() RoomStats
}

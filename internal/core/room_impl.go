package core

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/dkeye/CodeRoom/internal/idgen"
	"github.com/rs/zerolog/log"
)

// Room is a threadsafe in-memory coding room.
//
// Invariants: at least one file exists and active always names an existing file.
// Members are display names, not connections: two connections sharing a name in one
// room collapse into a single member.
type Room struct {
	id      domain.RoomID
	now     func() time.Time
	history int

	mu      sync.RWMutex
	members map[string]struct{}
	files   map[string]*domain.File
	active  string
	chat    []domain.ChatMessage
}

// NewRoom builds a room holding the bootstrap file. history caps retained chat
// messages; it is never below VisibleChatWindow.
func NewRoom(id domain.RoomID, history int, now func() time.Time) *Room {
	if history < VisibleChatWindow {
		history = VisibleChatWindow
	}
	if now == nil {
		now = time.Now
	}
	r := &Room{
		id:      id,
		now:     now,
		history: history,
		members: make(map[string]struct{}),
		files:   make(map[string]*domain.File),
	}
	r.files[domain.DefaultFileName] = &domain.File{
		Name:       domain.DefaultFileName,
		Language:   domain.DefaultFileLanguage,
		ModifiedAt: now(),
		CreatedBy:  "system",
	}
	r.active = domain.DefaultFileName
	return r
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// AddMember adds name to the member set and returns the new member list.
// Adding a name that is already present is a no-op.
func (r *Room) AddMember(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[name] = struct{}{}
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("name", name).Msg("member added")
	return r.membersLocked()
}

func (r *Room) RemoveMember(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, name)
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("name", name).Msg("member removed")
	return r.membersLocked()
}

func (r *Room) RenameMember(oldName, newName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, oldName)
	r.members[newName] = struct{}{}
	return r.membersLocked()
}

func (r *Room) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membersLocked()
}

func (r *Room) membersLocked() []string {
	out := make([]string, 0, len(r.members))
	for name := range r.members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Room) CreateFile(name, language, creator string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[name]; ok {
		return ErrFileExists
	}
	if language == "" {
		language = domain.DefaultFileLanguage
	}
	r.files[name] = &domain.File{
		Name:       name,
		Language:   language,
		ModifiedAt: r.now(),
		CreatedBy:  creator,
	}
	return nil
}

// DeleteFile removes a file. When the active file goes, activity falls over to the
// first remaining file by name.
func (r *Room) DeleteFile(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[name]; !ok {
		return ErrFileNotFound
	}
	if len(r.files) == 1 {
		return ErrLastFile
	}
	delete(r.files, name)
	if r.active == name {
		r.active = r.sortedNamesLocked()[0]
	}
	return nil
}

func (r *Room) RenameFile(oldName, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[oldName]
	if !ok {
		return ErrFileNotFound
	}
	if oldName == newName {
		return nil
	}
	if _, ok := r.files[newName]; ok {
		return ErrFileExists
	}
	delete(r.files, oldName)
	f.Name = newName
	f.ModifiedAt = r.now()
	r.files[newName] = f
	if r.active == oldName {
		r.active = newName
	}
	return nil
}

func (r *Room) SetActiveFile(name string) (domain.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[name]
	if !ok {
		return domain.File{}, ErrFileNotFound
	}
	r.active = name
	return *f, nil
}

// UpdateCode replaces the whole text of the active file. Last write wins.
func (r *Room) UpdateCode(code string) domain.File {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.files[r.active]
	f.Code = code
	f.ModifiedAt = r.now()
	return *f
}

func (r *Room) UpdateLanguage(language string) domain.File {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.files[r.active]
	f.Language = language
	f.ModifiedAt = r.now()
	return *f
}

// AddMessage stamps the message with a server-side id and timestamp and appends it.
func (r *Room) AddMessage(userName, text string) domain.ChatMessage {
	msg := domain.ChatMessage{
		ID:        idgen.NewULID(),
		UserName:  userName,
		Message:   text,
		Timestamp: r.now(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat = append(r.chat, msg)
	if len(r.chat) > r.history {
		r.chat = append([]domain.ChatMessage(nil), r.chat[len(r.chat)-r.history:]...)
	}
	return msg
}

// Messages returns up to limit most recent messages, oldest first.
// limit is clamped to VisibleChatWindow.
func (r *Room) Messages(limit int) []domain.ChatMessage {
	if limit <= 0 || limit > VisibleChatWindow {
		limit = VisibleChatWindow
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit > len(r.chat) {
		limit = len(r.chat)
	}
	out := make([]domain.ChatMessage, limit)
	copy(out, r.chat[len(r.chat)-limit:])
	return out
}

// Snapshot is the only place the file list gets sorted.
func (r *Room) Snapshot() RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.sortedNamesLocked()
	files := make([]domain.File, 0, len(names))
	for _, name := range names {
		files = append(files, *r.files[name])
	}
	members := r.membersLocked()
	return RoomInfo{
		RoomID:      r.id,
		Members:     members,
		MemberCount: len(members),
		Language:    r.files[r.active].Language,
		ActiveFile:  r.active,
		Files:       files,
	}
}

// Summary is the statistics row of the room.
func (r *Room) Summary() RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RoomSummary{
		RoomID:      r.id,
		MemberCount: len(r.members),
		Language:    r.files[r.active].Language,
	}
}

func (r *Room) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.files))
	for name := range r.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

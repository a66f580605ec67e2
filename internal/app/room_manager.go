package app

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

type RoomManagerImpl struct {
	mu      sync.RWMutex
	rooms   map[domain.RoomID]*core.Room
	history int
	now     func() time.Time
}

// NewRoomManager returns an empty store. history is the number of chat messages
// retained per room.
func NewRoomManager(history int) *RoomManagerImpl {
	return &RoomManagerImpl{
		rooms:   make(map[domain.RoomID]*core.Room),
		history: history,
		now:     time.Now,
	}
}

var _ core.RoomManager = (*RoomManagerImpl)(nil)

func (f *RoomManagerImpl) GetOrCreate(id domain.RoomID) *core.Room {
	f.mu.RLock()
	room, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[id]; ok {
		return room
	}
	room = core.NewRoom(id, f.history, f.now)
	f.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	return room
}

func (f *RoomManagerImpl) Get(id domain.RoomID) (*core.Room, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

func (f *RoomManagerImpl) Delete(id domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, id)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room deleted")
}

func (f *RoomManagerImpl) DeleteIfEmpty(id domain.RoomID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok || room.MemberCount() > 0 {
		return false
	}
	delete(f.rooms, id)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("empty room collected")
	return true
}

func (f *RoomManagerImpl) room(id domain.RoomID) (*core.Room, error) {
	room, ok := f.Get(id)
	if !ok {
		return nil, core.ErrRoomNotFound
	}
	return room, nil
}

func (f *RoomManagerImpl) CreateFile(id domain.RoomID, name, language, creator string) error {
	room, err := f.room(id)
	if err != nil {
		return err
	}
	return room.CreateFile(name, language, creator)
}

func (f *RoomManagerImpl) DeleteFile(id domain.RoomID, name string) error {
	room, err := f.room(id)
	if err != nil {
		return err
	}
	return room.DeleteFile(name)
}

func (f *RoomManagerImpl) RenameFile(id domain.RoomID, oldName, newName string) error {
	room, err := f.room(id)
	if err != nil {
		return err
	}
	return room.RenameFile(oldName, newName)
}

func (f *RoomManagerImpl) SetActiveFile(id domain.RoomID, name string) (domain.File, error) {
	room, err := f.room(id)
	if err != nil {
		return domain.File{}, err
	}
	return room.SetActiveFile(name)
}

func (f *RoomManagerImpl) UpdateCode(id domain.RoomID, code string) (domain.File, error) {
	room, err := f.room(id)
	if err != nil {
		return domain.File{}, err
	}
	return room.UpdateCode(code), nil
}

func (f *RoomManagerImpl) UpdateLanguage(id domain.RoomID, language string) (domain.File, error) {
	room, err := f.room(id)
	if err != nil {
		return domain.File{}, err
	}
	return room.UpdateLanguage(language), nil
}

func (f *RoomManagerImpl) AddMessage(id domain.RoomID, userName, text string) (domain.ChatMessage, error) {
	room, err := f.room(id)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return room.AddMessage(userName, text), nil
}

func (f *RoomManagerImpl) Messages(id domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	room, err := f.room(id)
	if err != nil {
		return nil, err
	}
	return room.Messages(limit), nil
}

func (f *RoomManagerImpl) Snapshot(id domain.RoomID) (core.RoomInfo, error) {
	room, err := f.room(id)
	if err != nil {
		return core.RoomInfo{}, err
	}
	return room.Snapshot(), nil
}

func (f *RoomManagerImpl) Stats() core.RoomStats {
	f.mu.RLock()
	rooms := make([]*core.Room, 0, len(f.rooms))
	for _, r := range f.rooms {
		rooms = append(rooms, r)
	}
	f.mu.RUnlock()

	out := core.RoomStats{TotalRooms: len(rooms), Rooms: make([]core.RoomSummary, 0, len(rooms))}
	for _, r := range rooms {
		out.Rooms = append(out.Rooms, r.Summary())
	}
	sort.Slice(out.Rooms, func(i, j int) bool { return out.Rooms[i].RoomID < out.Rooms[j].RoomID })
	return out
}

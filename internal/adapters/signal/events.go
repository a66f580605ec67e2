package signal

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
)

// Inbound events.
const (
	EvJoinRoom       = "join-room"
	EvLeaveRoom      = "leave-room"
	EvRename         = "rename"
	EvGetRoomInfo    = "get-room-info"
	EvCodeChange     = "code-change"
	EvLanguageChange = "language-change"
	EvCreateFile     = "create-file"
	EvDeleteFile     = "delete-file"
	EvRenameFile     = "rename-file"
	EvSwitchFile     = "switch-file"
	EvTyping         = "typing"
	EvStopTyping     = "stop-typing"
	EvChatMessage    = "chat-message"
	EvJoinCall       = "join-call"
	EvSignal         = "signal"
	EvLeaveCall      = "leave-call"
	EvToggleCamera   = "toggle-camera"
	EvToggleMic      = "toggle-microphone"
	EvPing           = "ping"
	EvWhoAmI         = "whoami"
)

// Outbound events. chat-message and signal reuse their inbound names.
const (
	EvConnected         = "connected"
	EvMembershipChanged = "membership-changed"
	EvRoomState         = "room-state"
	EvRoomInfo          = "room-info"
	EvCodeUpdated       = "code-updated"
	EvLanguageUpdated   = "language-updated"
	EvFilesUpdated      = "files-updated"
	EvFileSwitched      = "file-switched"
	EvUserTyping        = "user-typing"
	EvUserStoppedTyping = "user-stopped-typing"
	EvUserJoinedCall    = "user-joined-call"
	EvUserLeftCall      = "user-left-call"
	EvCameraToggled     = "camera-toggled"
	EvMicToggled        = "microphone-toggled"
	EvPong              = "pong"
	EvError             = "error"
)

var errUnknownEvent = fmt.Errorf("%w: unknown event", core.ErrBadPayload)

type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func decodeEnvelope(raw []byte) (inbound, error) {
	var env inbound
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: %v", core.ErrBadPayload, err)
	}
	if env.Type == "" {
		return env, fmt.Errorf("%w: missing type", core.ErrBadPayload)
	}
	return env, nil
}

// decode fills v from an event payload. A missing payload leaves v zero.
func decode(data []byte, v any) error {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", core.ErrBadPayload, err)
	}
	return nil
}

// encode leaves <, > and & unescaped so relayed SDP text reaches the peer as sent.
// Payloads are still compacted.
func encode(event string, payload any) (core.Frame, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(outbound{Type: event, Data: payload}); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type joinRoomPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

type renamePayload struct {
	UserName string `json:"userName"`
}

type codeChangePayload struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

type languageChangePayload struct {
	RoomID   string `json:"roomId"`
	Language string `json:"language"`
}

type filePayload struct {
	RoomID   string `json:"roomId"`
	FileName string `json:"fileName"`
	Language string `json:"language,omitempty"`
}

type renameFilePayload struct {
	RoomID  string `json:"roomId"`
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

type typingPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

type chatPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
	Message  string `json:"message"`
}

type signalPayload struct {
	RoomID string          `json:"roomId"`
	Signal json.RawMessage `json:"signal"`
	To     string          `json:"to"`
}

type connectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

type roomStatePayload struct {
	RoomID     domain.RoomID        `json:"roomId"`
	Files      []domain.File        `json:"files"`
	ActiveFile string               `json:"activeFile"`
	Code       string               `json:"code"`
	Language   string               `json:"language"`
	Messages   []domain.ChatMessage `json:"messages"`
}

type filesUpdatedPayload struct {
	Files      []domain.File `json:"files"`
	ActiveFile string        `json:"activeFile"`
}

type fileSwitchedPayload struct {
	FileName string `json:"fileName"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

type userJoinedCallPayload struct {
	UserName     string `json:"userName"`
	ConnectionID string `json:"connectionId"`
}

type userLeftCallPayload struct {
	ConnectionID string `json:"connectionId"`
}

type signalOutPayload struct {
	Signal json.RawMessage `json:"signal"`
	From   string          `json:"from"`
}

type cameraToggledPayload struct {
	ConnectionID string `json:"connectionId"`
	CameraOn     bool   `json:"cameraOn"`
}

type micToggledPayload struct {
	ConnectionID string `json:"connectionId"`
	MicOn        bool   `json:"micOn"`
}

type whoAmIPayload struct {
	ConnectionID string        `json:"connectionId"`
	UserName     string        `json:"userName"`
	RoomID       domain.RoomID `json:"roomId"`
	CallRoomID   domain.RoomID `json:"callRoomId"`
}

type errorPayload struct {
	Event string `json:"event,omitempty"`
	Error string `json:"error"`
}

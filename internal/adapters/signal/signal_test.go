package signal

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/CodeRoom/internal/app"
	"github.com/dkeye/CodeRoom/internal/app/orch"
	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// recConn is an in-memory SignalConnection that keeps every frame it is given.
type recConn struct {
	mu     sync.Mutex
	frames []recorded
	full   bool
	closed bool
}

func (r *recConn) TrySend(f core.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.full {
		return ErrBackpressure
	}
	var env recorded
	if err := json.Unmarshal(f, &env); err != nil {
		return err
	}
	r.frames = append(r.frames, env)
	return nil
}

func (r *recConn) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *recConn) of(event string) []json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []json.RawMessage
	for _, f := range r.frames {
		if f.Type == event {
			out = append(out, f.Data)
		}
	}
	return out
}

func (r *recConn) last(t *testing.T, event string, v any) {
	t.Helper()
	got := r.of(event)
	require.NotEmpty(t, got, "no %q frame", event)
	require.NoError(t, json.Unmarshal(got[len(got)-1], v))
}

func (r *recConn) reset() {
	r.mu.Lock()
	r.frames = nil
	r.mu.Unlock()
}

type harness struct {
	t     *testing.T
	ctl   *SignalWSController
	conns map[core.SessionID]*recConn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithPolicy(t, app.SimplePolicy{})
}

func newHarnessWithPolicy(t *testing.T, policy app.Policy) *harness {
	t.Helper()
	o := orch.New(app.NewRegistry(), app.NewRoomManager(100), policy)
	opts := DefaultOptions()
	opts.ChatRateLimit = 3
	opts.ChatRateInterval = time.Minute
	return &harness{t: t, ctl: NewSignalWSController(o, opts), conns: map[core.SessionID]*recConn{}}
}

func (h *harness) connect(sid core.SessionID) *recConn {
	h.t.Helper()
	rc := &recConn{}
	require.NoError(h.t, h.ctl.Connect(sid, rc, nil))
	h.conns[sid] = rc
	return rc
}

func (h *harness) send(sid core.SessionID, event string, payload any) core.Result {
	h.t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(h.t, err)
	raw, err := json.Marshal(inbound{Type: event, Data: data})
	require.NoError(h.t, err)
	return h.ctl.Dispatch(sid, raw)
}

func (h *harness) mustSend(sid core.SessionID, event string, payload any) {
	h.t.Helper()
	res := h.send(sid, event, payload)
	require.True(h.t, res.Success, res.Error)
}

func members(t *testing.T, rc *recConn) []string {
	t.Helper()
	var m []string
	rc.last(t, EvMembershipChanged, &m)
	return m
}

func TestConnectGreetsWithID(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")

	var p connectedPayload
	a.last(t, EvConnected, &p)
	assert.Equal(t, "A", p.ConnectionID)

	require.ErrorIs(t, h.ctl.Connect("A", &recConn{}, nil), core.ErrAlreadyExists)
}

func TestScenario_JoinCodeDisconnect(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")

	h.mustSend("A", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "alice"})
	h.mustSend("B", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "bob"})
	assert.ElementsMatch(t, []string{"alice", "bob"}, members(t, a))
	assert.ElementsMatch(t, []string{"alice", "bob"}, members(t, b))

	h.mustSend("A", EvCodeChange, codeChangePayload{RoomID: "R1", Code: "print(1)"})
	var code string
	a.last(t, EvCodeUpdated, &code)
	assert.Equal(t, "print(1)", code)
	b.last(t, EvCodeUpdated, &code)
	assert.Equal(t, "print(1)", code)

	info, err := h.ctl.Orch.Rooms.Snapshot("R1")
	require.NoError(t, err)
	assert.Equal(t, "print(1)", info.ActiveCode())

	h.ctl.Disconnect("B")
	assert.Equal(t, []string{"alice"}, members(t, a))
}

func TestJoinSendsRoomStateToJoinerOnly(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.mustSend("A", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "alice"})
	h.mustSend("A", EvChatMessage, chatPayload{RoomID: "R1", Message: "hi"})
	h.mustSend("A", EvCodeChange, codeChangePayload{RoomID: "R1", Code: "x = 1"})
	a.reset()

	h.mustSend("B", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "bob"})
	assert.Empty(t, a.of(EvRoomState))

	var st roomStatePayload
	b.last(t, EvRoomState, &st)
	assert.Equal(t, "untitled.js", st.ActiveFile)
	assert.Equal(t, "x = 1", st.Code)
	assert.Equal(t, "javascript", st.Language)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "alice", st.Messages[0].UserName)
}

func TestJoinOtherRoomLeavesPrevious(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.mustSend("A", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "alice"})
	h.mustSend("B", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "bob"})

	h.mustSend("A", EvJoinRoom, joinRoomPayload{RoomID: "R2", UserName: "alice"})
	assert.Equal(t, []string{"bob"}, members(t, b))
	assert.Equal(t, []string{"alice"}, members(t, a))

	b.reset()
	h.mustSend("A", EvCodeChange, codeChangePayload{RoomID: "R2", Code: "only R2"})
	assert.Empty(t, b.of(EvCodeUpdated))
}

func TestLanguageAndTypingSkipSender(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.mustSend("A", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "alice"})
	h.mustSend("B", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "bob"})

	h.mustSend("A", EvLanguageChange, languageChangePayload{RoomID: "R1", Language: "python"})
	assert.Empty(t, a.of(EvLanguageUpdated))
	var lang string
	b.last(t, EvLanguageUpdated, &lang)
	assert.Equal(t, "python", lang)

	h.mustSend("A", EvTyping, typingPayload{RoomID: "R1", UserName: "alice"})
	assert.Empty(t, a.of(EvUserTyping))
	var name string
	b.last(t, EvUserTyping, &name)
	assert.Equal(t, "alice", name)

	h.mustSend("A", EvStopTyping, typingPayload{RoomID: "R1"})
	b.last(t, EvUserStoppedTyping, &name)
	assert.Equal(t, "alice", name)
	conn, _ := h.ctl.Orch.Registry.Lookup("A")
	assert.False(t, conn.Typing)
}

func TestCodeChangeUnknownRoomRepliesToSenderOnly(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.mustSend("B", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "bob"})

	res := h.send("A", EvCodeChange, codeChangePayload{RoomID: "nope", Code: "x"})
	assert.False(t, res.Success)
	assert.Equal(t, "room not found", res.Error)

	var e errorPayload
	a.last(t, EvError, &e)
	assert.Equal(t, EvCodeChange, e.Event)
	assert.Equal(t, "room not found", e.Error)
	assert.Empty(t, b.of(EvError))
}

func TestLeaveRoom(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")

	res := h.send("A", EvLeaveRoom, nil)
	assert.False(t, res.Success)
	assert.Empty(t, a.of(EvError), "invalid state is not relayed")

	h.mustSend("A", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "alice"})
	h.mustSend("B", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "bob"})
	h.mustSend("A", EvLeaveRoom, nil)
	assert.Equal(t, []string{"bob"}, members(t, b))

	h.mustSend("B", EvLeaveRoom, struct{}{})
	_, err := h.ctl.Orch.Rooms.Snapshot("R1")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestScenario_FileLifecycle(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	h.mustSend("A", EvJoinRoom, joinRoomPayload{RoomID: "R2", UserName: "alice"})

	h.mustSend("A", EvCreateFile, filePayload{RoomID: "R2", FileName: "b.py", Language: "python"})
	var fu filesUpdatedPayload
	a.last(t, EvFilesUpdated, &fu)
	require.Len(t, fu.Files, 2)
	assert.Equal(t, "b.py", fu.Files[0].Name)
	assert.Equal(t, "alice", fu.Files[0].CreatedBy)

	h.mustSend("A", EvSwitchFile, filePayload{RoomID: "R2", FileName: "b.py"})
	var sw fileSwitchedPayload
	a.last(t, EvFileSwitched, &sw)
	assert.Equal(t, "b.py", sw.FileName)
	assert.Equal(t, "python", sw.Language)

	h.mustSend("A", EvDeleteFile, filePayload{RoomID: "R2", FileName: "untitled.js"})

	res := h.send("A", EvDeleteFile, filePayload{RoomID: "R2", FileName: "b.py"})
	assert.False(t, res.Success)
	assert.Equal(t, "cannot delete last file", res.Error)
	var e errorPayload
	a.last(t, EvError, &e)
	assert.Equal(t, "cannot delete last file", e.Error)

	res = h.send("A", EvCreateFile, filePayload{RoomID: "R2", FileName: "b.py"})
	assert.Equal(t, "file already exists", res.Error)

	h.mustSend("A", EvRenameFile, renameFilePayload{RoomID: "R2", OldName: "b.py", NewName: "main.py"})
	a.last(t, EvFilesUpdated, &fu)
	require.Len(t, fu.Files, 1)
	assert.Equal(t, "main.py", fu.ActiveFile)
}

func TestChatBroadcastAndRateLimit(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.mustSend("A", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "alice"})
	h.mustSend("B", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "bob"})

	h.mustSend("A", EvChatMessage, chatPayload{RoomID: "R1", UserName: "alice", Message: "hello"})
	var msg struct {
		ID       string `json:"id"`
		UserName string `json:"userName"`
		Message  string `json:"message"`
	}
	a.last(t, EvChatMessage, &msg)
	assert.Equal(t, "hello", msg.Message)
	b.last(t, EvChatMessage, &msg)
	assert.Equal(t, "alice", msg.UserName)
	assert.NotEmpty(t, msg.ID)

	res := h.send("A", EvChatMessage, chatPayload{RoomID: "R1", Message: "   "})
	assert.False(t, res.Success)

	h.mustSend("A", EvChatMessage, chatPayload{RoomID: "R1", Message: "2"})
	h.mustSend("A", EvChatMessage, chatPayload{RoomID: "R1", Message: "3"})
	res = h.send("A", EvChatMessage, chatPayload{RoomID: "R1", Message: "4"})
	assert.Equal(t, "rate limited", res.Error)
	assert.Len(t, b.of(EvChatMessage), 3)
}

func TestRenameBroadcastsMembership(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.mustSend("A", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "alice"})
	h.mustSend("B", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "bob"})

	h.mustSend("A", EvRename, renamePayload{UserName: "ally"})
	assert.ElementsMatch(t, []string{"ally", "bob"}, members(t, b))

	res := h.send("A", EvRename, renamePayload{UserName: " "})
	assert.False(t, res.Success)
	assert.NotEmpty(t, a.of(EvError))
}

func TestScenario_SignalRelay(t *testing.T) {
	h := newHarness(t)
	a, b, c := h.connect("A"), h.connect("B"), h.connect("C")

	h.mustSend("A", EvJoinCall, joinRoomPayload{RoomID: "R3", UserName: "alice"})
	h.mustSend("B", EvJoinCall, joinRoomPayload{RoomID: "R3", UserName: "bob"})

	var joined userJoinedCallPayload
	a.last(t, EvUserJoinedCall, &joined)
	assert.Equal(t, "B", joined.ConnectionID)
	assert.Equal(t, "bob", joined.UserName)
	assert.Empty(t, b.of(EvUserJoinedCall))

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0 opaque"}`)
	h.mustSend("A", EvSignal, signalPayload{RoomID: "R3", Signal: offer, To: "B"})

	var got signalOutPayload
	b.last(t, EvSignal, &got)
	assert.Equal(t, "A", got.From)
	assert.JSONEq(t, string(offer), string(got.Signal))
	assert.Empty(t, c.of(EvSignal))
	assert.Empty(t, a.of(EvSignal))

	res := h.send("A", EvSignal, signalPayload{RoomID: "R3", Signal: offer, To: "ghost"})
	assert.Equal(t, "connection not found", res.Error)
	var e errorPayload
	a.last(t, EvError, &e)
	assert.Equal(t, EvSignal, e.Event)
}

func TestCallTogglesAndLeave(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")

	res := h.send("A", EvToggleCamera, nil)
	assert.False(t, res.Success)
	assert.Empty(t, a.of(EvCameraToggled))

	h.mustSend("A", EvJoinCall, joinRoomPayload{RoomID: "R3", UserName: "alice"})
	h.mustSend("B", EvJoinCall, joinRoomPayload{RoomID: "R3", UserName: "bob"})

	h.mustSend("A", EvToggleCamera, nil)
	var cam cameraToggledPayload
	b.last(t, EvCameraToggled, &cam)
	assert.Equal(t, cameraToggledPayload{ConnectionID: "A", CameraOn: false}, cam)
	a.last(t, EvCameraToggled, &cam)
	assert.False(t, cam.CameraOn)

	h.mustSend("B", EvToggleMic, nil)
	var mic micToggledPayload
	a.last(t, EvMicToggled, &mic)
	assert.Equal(t, micToggledPayload{ConnectionID: "B", MicOn: false}, mic)

	h.mustSend("A", EvLeaveCall, roomPayload{RoomID: "R3"})
	var left userLeftCallPayload
	b.last(t, EvUserLeftCall, &left)
	assert.Equal(t, "A", left.ConnectionID)
}

func TestDisconnectLeavesCallAndRoom(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	h.connect("B")
	h.mustSend("A", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "alice"})
	h.mustSend("B", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "bob"})
	h.mustSend("A", EvJoinCall, joinRoomPayload{RoomID: "R1"})
	h.mustSend("B", EvJoinCall, joinRoomPayload{RoomID: "R1"})

	h.ctl.Disconnect("B")
	var left userLeftCallPayload
	a.last(t, EvUserLeftCall, &left)
	assert.Equal(t, "B", left.ConnectionID)
	assert.Equal(t, []string{"alice"}, members(t, a))

	_, ok := h.ctl.Orch.Registry.Lookup("B")
	assert.False(t, ok)

	// a second teardown for the same connection is harmless
	h.ctl.Disconnect("B")
}

func TestCallSurvivesLeaveRoom(t *testing.T) {
	h := newHarness(t)
	h.connect("A")
	b := h.connect("B")
	h.mustSend("A", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "alice"})
	h.mustSend("A", EvJoinCall, joinRoomPayload{RoomID: "R1", UserName: "alice"})
	h.mustSend("B", EvJoinCall, joinRoomPayload{RoomID: "R1", UserName: "bob"})

	h.mustSend("A", EvLeaveRoom, nil)
	h.mustSend("B", EvSignal, signalPayload{Signal: json.RawMessage(`{"candidate":"c"}`), To: "A"})
	assert.Empty(t, b.of(EvUserLeftCall))

	conn, _ := h.ctl.Orch.Registry.Lookup("A")
	assert.Equal(t, "R1-call", string(conn.CallRoom))
}

func TestControlEvents(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")

	h.mustSend("A", EvPing, nil)
	assert.Len(t, a.of(EvPong), 1)

	h.mustSend("A", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "alice"})
	h.mustSend("A", EvWhoAmI, nil)
	var who whoAmIPayload
	a.last(t, EvWhoAmI, &who)
	assert.Equal(t, "A", who.ConnectionID)
	assert.Equal(t, "alice", who.UserName)
	assert.Equal(t, "R1", string(who.RoomID))

	h.mustSend("A", EvGetRoomInfo, roomPayload{RoomID: "R1"})
	var info core.RoomInfo
	a.last(t, EvRoomInfo, &info)
	assert.Equal(t, 1, info.MemberCount)
	assert.Equal(t, "untitled.js", info.ActiveFile)
}

func TestMalformedFrames(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")

	res := h.ctl.Dispatch("A", []byte("{not json"))
	assert.False(t, res.Success)
	var e errorPayload
	a.last(t, EvError, &e)
	assert.Equal(t, "bad payload", e.Error)

	res = h.send("A", "teleport", nil)
	assert.False(t, res.Success)
	a.last(t, EvError, &e)
	assert.Equal(t, "unknown event", e.Error)
	assert.Equal(t, "teleport", e.Event)

	res = h.ctl.Dispatch("A", []byte(`{"type":"join-room","data":"R1"}`))
	assert.False(t, res.Success)
}

func TestBackpressureKicks(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	kicked := false
	b := &recConn{}
	require.NoError(t, h.ctl.Connect("B", b, func() { kicked = true }))
	h.mustSend("A", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "alice"})
	h.mustSend("B", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "bob"})

	b.mu.Lock()
	b.full = true
	b.mu.Unlock()
	h.mustSend("A", EvCodeChange, codeChangePayload{RoomID: "R1", Code: "flood"})
	assert.True(t, kicked)
	assert.NotEmpty(t, a.of(EvCodeUpdated))
}

func TestBackpressureDropKeepsConnection(t *testing.T) {
	h := newHarnessWithPolicy(t, app.LenientPolicy{})
	a := h.connect("A")
	kicked := false
	b := &recConn{}
	require.NoError(t, h.ctl.Connect("B", b, func() { kicked = true }))
	h.mustSend("A", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "alice"})
	h.mustSend("B", EvJoinRoom, joinRoomPayload{RoomID: "R1", UserName: "bob"})

	b.mu.Lock()
	b.full = true
	b.mu.Unlock()
	h.mustSend("A", EvCodeChange, codeChangePayload{RoomID: "R1", Code: "lost for bob"})
	assert.False(t, kicked)
	assert.NotEmpty(t, a.of(EvCodeUpdated))

	b.mu.Lock()
	b.full = false
	b.mu.Unlock()
	h.mustSend("A", EvCodeChange, codeChangePayload{RoomID: "R1", Code: "seen by bob"})
	var code string
	b.last(t, EvCodeUpdated, &code)
	assert.Equal(t, "seen by bob", code)
	assert.Len(t, b.of(EvCodeUpdated), 1)
}

func TestJoinCallAgainIsNoop(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	h.connect("B")
	h.mustSend("A", EvJoinCall, joinRoomPayload{RoomID: "R3", UserName: "alice"})
	h.mustSend("B", EvJoinCall, joinRoomPayload{RoomID: "R3", UserName: "bob"})
	h.mustSend("B", EvToggleCamera, nil)

	h.mustSend("B", EvJoinCall, joinRoomPayload{RoomID: "R3", UserName: "bob"})
	assert.Len(t, a.of(EvUserJoinedCall), 1)
	assert.Len(t, a.of(EvCameraToggled), 1)

	conn, _ := h.ctl.Orch.Registry.Lookup("B")
	assert.True(t, conn.InCall)
	assert.False(t, conn.CameraOn)
	assert.True(t, conn.MicOn)
}

func TestPaddedRoomIDMatchesJoinedRoom(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.mustSend("A", EvJoinRoom, joinRoomPayload{RoomID: " R1 ", UserName: "alice"})
	h.mustSend("B", EvJoinRoom, joinRoomPayload{RoomID: " R1 ", UserName: "bob"})

	h.mustSend("A", EvTyping, typingPayload{RoomID: " R1 ", UserName: "alice"})
	var name string
	b.last(t, EvUserTyping, &name)
	assert.Equal(t, "alice", name)

	h.mustSend("A", EvStopTyping, typingPayload{RoomID: " R1 "})
	assert.Len(t, b.of(EvUserStoppedTyping), 1)

	h.mustSend("A", EvGetRoomInfo, roomPayload{RoomID: " R1 "})
	var info core.RoomInfo
	a.last(t, EvRoomInfo, &info)
	assert.Equal(t, "R1", string(info.RoomID))
	assert.Equal(t, 2, info.MemberCount)
}

func TestSignalPayloadIsNotHTMLEscaped(t *testing.T) {
	h := newHarness(t)
	h.connect("A")
	b := h.connect("B")
	h.mustSend("A", EvJoinCall, joinRoomPayload{RoomID: "R3"})
	h.mustSend("B", EvJoinCall, joinRoomPayload{RoomID: "R3"})

	sdp := `{"sdp":"a=fmtp:<x> & y"}`
	res := h.ctl.Dispatch("A", []byte(`{"type":"signal","data":{"to":"B","signal":`+sdp+`}}`))
	require.True(t, res.Success, res.Error)

	var got signalOutPayload
	b.last(t, EvSignal, &got)
	assert.Equal(t, sdp, string(got.Signal))
}

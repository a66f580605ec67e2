package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/CodeRoom/internal/app/orch"
	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// Options tune the transport side of the controller.
type Options struct {
	ReadLimit        int64
	PingPeriod       time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
	SendBuffer       int
	ChatRateLimit    int
	ChatRateInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:        1 << 20,
		PingPeriod:       54 * time.Second,
		PongWait:         60 * time.Second,
		WriteWait:        10 * time.Second,
		SendBuffer:       256,
		ChatRateLimit:    20,
		ChatRateInterval: 10 * time.Second,
	}
}

type handlerFunc func(sid core.SessionID, data []byte) error

// SignalWSController is the event dispatcher. Inbound events from every connection
// go through one mutex, so each event is applied and fanned out atomically.
type SignalWSController struct {
	Orch *orch.Orchestrator

	opts     Options
	limiter  *RoomRateLimiter
	handlers map[string]handlerFunc

	mu sync.Mutex
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	ctl := &SignalWSController{
		Orch:    o,
		opts:    opts,
		limiter: NewRoomRateLimiter(opts.ChatRateLimit, opts.ChatRateInterval),
	}
	ctl.handlers = map[string]handlerFunc{
		EvJoinRoom:       ctl.handleJoinRoom,
		EvLeaveRoom:      ctl.handleLeaveRoom,
		EvRename:         ctl.handleRename,
		EvGetRoomInfo:    ctl.handleGetRoomInfo,
		EvCodeChange:     ctl.handleCodeChange,
		EvLanguageChange: ctl.handleLanguageChange,
		EvCreateFile:     ctl.handleCreateFile,
		EvDeleteFile:     ctl.handleDeleteFile,
		EvRenameFile:     ctl.handleRenameFile,
		EvSwitchFile:     ctl.handleSwitchFile,
		EvTyping:         ctl.handleTyping,
		EvStopTyping:     ctl.handleStopTyping,
		EvChatMessage:    ctl.handleChatMessage,
		EvJoinCall:       ctl.handleJoinCall,
		EvSignal:         ctl.handleSignal,
		EvLeaveCall:      ctl.handleLeaveCall,
		EvToggleCamera:   ctl.handleToggleCamera,
		EvToggleMic:      ctl.handleToggleMic,
		EvPing:           ctl.handlePing,
		EvWhoAmI:         ctl.handleWhoAmI,
	}
	return ctl
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func NewWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// Connect registers a new connection and greets it with its id.
func (ctl *SignalWSController) Connect(sid core.SessionID, sig core.SignalConnection, cancel context.CancelFunc) error {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	if _, err := ctl.Orch.Registry.Register(sid, sig, cancel); err != nil {
		return err
	}
	ctl.sendTo(sid, EvConnected, connectedPayload{ConnectionID: string(sid)})
	return nil
}

// Disconnect runs the teardown of a gone connection. Unknown sids are ignored.
func (ctl *SignalWSController) Disconnect(sid core.SessionID) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	res, ok := ctl.Orch.Disconnect(sid)
	if !ok {
		return
	}
	ctl.limiter.Forget(sid)
	if res.Call != nil {
		ctl.sendEach(res.Call.Remaining, EvUserLeftCall, userLeftCallPayload{ConnectionID: string(sid)})
	}
	if res.Room != nil {
		ctl.broadcastRoom(res.Room.RoomID, "", EvMembershipChanged, res.Room.Members)
	}
}

// Dispatch decodes one inbound frame and runs its handler. Failures go back to the
// sender only; invalid-state failures are dropped.
func (ctl *SignalWSController) Dispatch(sid core.SessionID, raw []byte) core.Result {
	env, err := decodeEnvelope(raw)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad envelope")
		ctl.mu.Lock()
		ctl.replyError(sid, "", err)
		ctl.mu.Unlock()
		return core.ResultOf(err)
	}

	h, ok := ctl.handlers[env.Type]
	if !ok {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("type", env.Type).Msg("unknown event")
		err = errUnknownEvent
		ctl.mu.Lock()
		ctl.replyError(sid, env.Type, err)
		ctl.mu.Unlock()
		return core.ResultOf(err)
	}

	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	err = h(sid, env.Data)
	switch {
	case err == nil:
	case core.Relayable(err):
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("event", env.Type).Msg("event failed")
		ctl.replyError(sid, env.Type, err)
	default:
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("event", env.Type).Msg("event ignored")
	}
	return core.ResultOf(err)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and starts the pumps. ctx is the server's
// lifetime, not the request's.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())
	client := c.GetString("client_token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("client", client).Msg("new WS connection")

	conn := NewWsSignalConn(ws, ctl.opts.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)
	if err := ctl.Connect(sid, conn, cancel); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("register")
		cancel()
		conn.Close()
		return
	}

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}

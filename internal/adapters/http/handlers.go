package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/CodeRoom/internal/adapters/signal"
	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
)

// handlers is the read-only HTTP surface. Reads go through the stores' own locks and
// never wait on the event dispatcher.
type handlers struct {
	ctl     *signal.SignalWSController
	ice     []webrtc.ICEServer
	started time.Time
}

type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
	Uptime      string `json:"uptime"`
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Connections: h.ctl.Orch.Registry.Count(),
		Rooms:       h.ctl.Orch.Rooms.Stats().TotalRooms,
		Uptime:      time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *handlers) rooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctl.Orch.Rooms.Stats())
}

func (h *handlers) roomInfo(c *gin.Context) {
	info, err := h.ctl.Orch.Rooms.Snapshot(domain.RoomID(c.Param("roomId")))
	if errors.Is(err, core.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *handlers) iceServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.ice})
}

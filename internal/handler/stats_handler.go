package handler

import (
	"net/http"

	"nearme/internal/geo"
	"nearme/internal/presence"
	"nearme/internal/ws"

	"github.com/gin-gonic/gin"
)

type StatsHandler struct {
	hub     *ws.Hub
	tracker *presence.Tracker
	index   *geo.Index
}

func NewStatsHandler(hub *ws.Hub, tracker *presence.Tracker, index *geo.Index) *StatsHandler {
	return &StatsHandler{hub: hub, tracker: tracker, index: index}
}

func (h *StatsHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ws_clients":     h.hub.ClientCount(),
		"online_users":   len(h.tracker.OnlineSet()),
		"indexed_points": h.index.Len(),
	})
}

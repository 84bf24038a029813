package handler

import (
	"net/http"

	"nearme/internal/directory"
	"nearme/internal/middleware"
	"nearme/internal/presence"
	"nearme/internal/roster"

	"github.com/gin-gonic/gin"
)

type RosterHandler struct {
	store   *directory.Store
	tracker *presence.Tracker
}

func NewRosterHandler(store *directory.Store, tracker *presence.Tracker) *RosterHandler {
	return &RosterHandler{store: store, tracker: tracker}
}

// GetRoster is the pull-based twin of the session channel's roster push:
// directory snapshot minus the viewer, filtered by q, annotated with presence.
// Before the first directory snapshot the roster is empty, not an error.
func (h *RosterHandler) GetRoster(c *gin.Context) {
	viewerID := middleware.GetUserID(c)
	q := c.Query("q")
	users, ready := h.store.Snapshot()
	if !ready {
		c.JSON(http.StatusOK, gin.H{"entries": []roster.Entry{}, "count": 0})
		return
	}
	entries := roster.Build(users, viewerID, h.tracker.OnlineSet(), q)
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

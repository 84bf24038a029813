package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"nearme/internal/presence"
	"nearme/internal/repository"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type PresenceHandler struct {
	tracker *presence.Tracker
	repo    *repository.PresenceRepository
}

func NewPresenceHandler(tracker *presence.Tracker, repo *repository.PresenceRepository) *PresenceHandler {
	return &PresenceHandler{tracker: tracker, repo: repo}
}

// GetUserPresence reports live presence for one user, falling back to the
// archived record for last-seen when the user is offline.
func (h *PresenceHandler) GetUserPresence(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	userID := uint(id)
	if h.tracker.IsOnline(userID) {
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "is_online": true})
		return
	}
	var lastSeen *time.Time
	if t, ok := h.tracker.LastSeen(userID); ok {
		lastSeen = &t
	} else if h.repo != nil {
		p, err := h.repo.GetByUserID(userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "presence lookup failed"})
			return
		}
		if p != nil {
			lastSeen = &p.LastSeenAt
		}
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "is_online": false, "last_seen_at": lastSeen})
}

// GetOnline returns the current online-user id set.
func (h *PresenceHandler) GetOnline(c *gin.Context) {
	online := h.tracker.OnlineSet()
	ids := make([]uint, 0, len(online))
	for id := range online {
		ids = append(ids, id)
	}
	c.JSON(http.StatusOK, gin.H{"online": ids, "count": len(ids)})
}

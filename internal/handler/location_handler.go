package handler

import (
	"errors"
	"net/http"
	"time"

	"nearme/internal/geo"
	"nearme/internal/middleware"
	"nearme/internal/models"
	"nearme/internal/repository"

	"github.com/gin-gonic/gin"
)

type LocationHandler struct {
	locRepo *repository.LocationRepository
	index   *geo.Index
}

func NewLocationHandler(locRepo *repository.LocationRepository, index *geo.Index) *LocationHandler {
	return &LocationHandler{locRepo: locRepo, index: index}
}

// UpdateLocation overwrites the caller's coordinate, last write wins. Out of
// range input is rejected and leaves the stored coordinate untouched.
func (h *LocationHandler) UpdateLocation(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req struct {
		Latitude  *float64 `json:"latitude" binding:"required"`
		Longitude *float64 `json:"longitude" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	coord := geo.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if err := h.index.SetLocation(userID, coord); err != nil {
		if errors.Is(err, geo.ErrInvalidCoordinate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinate"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	loc, _ := h.locRepo.GetByUserID(userID)
	if loc == nil {
		loc = &models.UserLocation{UserID: userID}
	}
	loc.Latitude = coord.Latitude
	loc.Longitude = coord.Longitude
	loc.LastUpdatedAt = time.Now()
	if err := h.locRepo.Upsert(loc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, loc)
}

func (h *LocationHandler) GetMyLocation(c *gin.Context) {
	userID := middleware.GetUserID(c)
	loc, err := h.locRepo.GetByUserID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no location set"})
		return
	}
	c.JSON(http.StatusOK, loc)
}

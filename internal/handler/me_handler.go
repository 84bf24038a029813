package handler

import (
	"net/http"

	"nearme/internal/directory"
	"nearme/internal/middleware"
	"nearme/internal/repository"

	"github.com/gin-gonic/gin"
)

type MeHandler struct {
	userRepo *repository.UserRepository
	store    *directory.Store
}

func NewMeHandler(userRepo *repository.UserRepository, store *directory.Store) *MeHandler {
	return &MeHandler{userRepo: userRepo, store: store}
}

func (h *MeHandler) GetProfile(c *gin.Context) {
	userID := middleware.GetUserID(c)
	u, err := h.userRepo.GetByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, u)
}

// UpdateProfile replaces the mutable profile fields and pushes a fresh
// directory snapshot.
func (h *MeHandler) UpdateProfile(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req struct {
		Name       *string `json:"name"`
		PictureURL *string `json:"picture_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.userRepo.GetByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if req.Name != nil && *req.Name != "" {
		u.Name = *req.Name
	}
	if req.PictureURL != nil {
		u.PictureURL = *req.PictureURL
	}
	if err := h.userRepo.Update(u); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if err := h.store.Refresh(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "directory refresh failed"})
		return
	}
	c.JSON(http.StatusOK, u)
}

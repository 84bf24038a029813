package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"nearme/internal/directory"
	"nearme/internal/middleware"
	"nearme/internal/repository"
	"nearme/pkg/cloudinary"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	cloud    cloudinary.Client
	userRepo *repository.UserRepository
	store    *directory.Store
}

func NewUploadHandler(cloud cloudinary.Client, userRepo *repository.UserRepository, store *directory.Store) *UploadHandler {
	return &UploadHandler{cloud: cloud, userRepo: userRepo, store: store}
}

// UploadAvatar stores a new profile picture and publishes the updated profile
// record to the directory.
func (h *UploadHandler) UploadAvatar(c *gin.Context) {
	if h.cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads not configured"})
		return
	}
	userID := middleware.GetUserID(c)
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	folder := "nearme/avatars/" + strconv.FormatUint(uint64(userID), 10)
	publicID := "img_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()

	url, _, err := h.cloud.UploadImage(c.Request.Context(), f, folder, publicID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	u, err := h.userRepo.GetByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	u.PictureURL = url
	if err := h.userRepo.Update(u); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if err := h.store.Refresh(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "directory refresh failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

package handler

import (
	"net/http"
	"strconv"

	"nearme/internal/directory"
	"nearme/internal/geo"
	"nearme/internal/middleware"
	"nearme/internal/presence"

	"github.com/gin-gonic/gin"
)

type NearbyHandler struct {
	index   *geo.Index
	store   *directory.Store
	tracker *presence.Tracker
}

func NewNearbyHandler(index *geo.Index, store *directory.Store, tracker *presence.Tracker) *NearbyHandler {
	return &NearbyHandler{index: index, store: store, tracker: tracker}
}

type nearbyResult struct {
	UserID     uint    `json:"user_id"`
	Name       string  `json:"name"`
	PictureURL string  `json:"picture_url,omitempty"`
	DistanceM  float64 `json:"distance_m"`
	IsOnline   bool    `json:"is_online"`
}

// Nearby answers the on-demand "who is around this point" query: users whose
// stored coordinate lies within radius_m of (lat,lng), ascending by distance.
func (h *NearbyHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	radius, errRad := strconv.ParseFloat(c.DefaultQuery("radius_m", "5000"), 64)
	if errLat != nil || errLng != nil || errRad != nil || radius < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat, lng and radius_m must be numeric"})
		return
	}
	center := geo.Coordinate{Latitude: lat, Longitude: lng}
	if !center.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinate"})
		return
	}
	viewerID := middleware.GetUserID(c)

	profiles := make(map[uint]nearbyResult)
	if users, ready := h.store.Snapshot(); ready {
		for _, u := range users {
			profiles[u.ID] = nearbyResult{UserID: u.ID, Name: u.Name, PictureURL: u.PictureURL}
		}
	}
	online := h.tracker.OnlineSet()

	results := []nearbyResult{}
	for userID, dist := range h.index.QueryNearbyDist(center, radius) {
		if userID == viewerID {
			continue
		}
		r, ok := profiles[userID]
		if !ok {
			// Indexed but no longer in the directory; never surface it.
			continue
		}
		r.DistanceM = dist
		r.IsOnline = online[userID]
		results = append(results, r)
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

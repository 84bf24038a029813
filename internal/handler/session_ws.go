package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"nearme/config"
	"nearme/internal/auth"
	"nearme/internal/directory"
	"nearme/internal/geo"
	"nearme/internal/models"
	"nearme/internal/presence"
	"nearme/internal/repository"
	"nearme/internal/roster"
	"nearme/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// sessionMessage is the small inbound protocol of the session channel.
type sessionMessage struct {
	Type      string  `json:"type"` // search | location | disconnect
	Text      string  `json:"text,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// UpgradeSessionWS upgrades to the per-client session channel; query: token.
// The connection carries presence (connect on upgrade, heartbeat via pong,
// explicit disconnect message for graceful shutdown), inbound location updates
// and search text, and outbound roster snapshots. An abrupt close is not a
// disconnect: the session's lease keeps the user Online until the grace period
// runs out, so a quick reconnect never flickers Offline.
func UpgradeSessionWS(cfg *config.Config, hub *ws.Hub, tracker *presence.Tracker, store *directory.Store, index *geo.Index, locRepo *repository.LocationRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		claims, err := auth.ParseAccessToken(&cfg.JWT, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		conn, err := ws.Upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		userID := claims.UserID
		session := tracker.Connect(userID)
		client := &ws.Client{UserID: userID, Hub: hub, Send: make(chan []byte, 256)}
		hub.Register(client)

		rosterSync := roster.NewSynchronizer(userID, func(entries []roster.Entry) {
			client.Enqueue(gin.H{"type": "roster", "entries": entries})
		})
		rosterSync.Attach(store, tracker)
		defer func() {
			rosterSync.Close()
			client.Close()
		}()

		conn.SetReadDeadline(time.Now().Add(cfg.Presence.PongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(cfg.Presence.PongWait))
			tracker.Heartbeat(session)
			return nil
		})
		go ws.WritePump(client, conn, cfg.Presence.WriteWait, cfg.Presence.PingPeriod)

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					tracker.Disconnect(session)
				}
				// Any other read error is channel loss; the disconnect
				// watcher owns the Offline transition.
				return
			}
			conn.SetReadDeadline(time.Now().Add(cfg.Presence.PongWait))
			var msg sessionMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				client.Enqueue(gin.H{"type": "error", "error": "malformed message"})
				continue
			}
			switch msg.Type {
			case "search":
				rosterSync.SetQuery(msg.Text)
			case "location":
				coord := geo.Coordinate{Latitude: msg.Latitude, Longitude: msg.Longitude}
				if err := index.SetLocation(userID, coord); err != nil {
					client.Enqueue(gin.H{"type": "error", "error": "invalid coordinate"})
					continue
				}
				persistLocation(locRepo, userID, coord)
			case "disconnect":
				tracker.Disconnect(session)
				return
			default:
				client.Enqueue(gin.H{"type": "error", "error": "unknown message type"})
			}
		}
	}
}

func persistLocation(locRepo *repository.LocationRepository, userID uint, coord geo.Coordinate) {
	if locRepo == nil {
		return
	}
	loc, _ := locRepo.GetByUserID(userID)
	if loc == nil {
		loc = &models.UserLocation{UserID: userID}
	}
	loc.Latitude = coord.Latitude
	loc.Longitude = coord.Longitude
	loc.LastUpdatedAt = time.Now()
	if err := locRepo.Upsert(loc); err != nil {
		log.Printf("[location] persist for user %d: %v", userID, err)
	}
}

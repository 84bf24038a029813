package router

import (
	"log"
	"time"

	"nearme/config"
	"nearme/internal/directory"
	"nearme/internal/geo"
	"nearme/internal/handler"
	"nearme/internal/middleware"
	"nearme/internal/presence"
	"nearme/internal/repository"
	"nearme/internal/service"
	"nearme/internal/ws"
	"nearme/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, cloud cloudinary.Client) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Skip gin.Logger() to reduce log noise; use gin.Default() if you need request logging
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	locRepo := repository.NewLocationRepository(db)
	presenceRepo := repository.NewPresenceRepository(db)

	// Geospatial index, seeded from persisted coordinates
	index := geo.NewIndex()
	if locs, err := locRepo.ListAll(); err != nil {
		log.Printf("[geo] seed from store failed: %v", err)
	} else {
		for _, l := range locs {
			if err := index.SetLocation(l.UserID, geo.Coordinate{Latitude: l.Latitude, Longitude: l.Longitude}); err != nil {
				log.Printf("[geo] skip stored coordinate for user %d: %v", l.UserID, err)
			}
		}
	}

	// Disconnect watchers: Redis-backed leases when configured, otherwise
	// in-process timers.
	var leases presence.LeaseManager
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		leases = presence.NewRedisLeaseManager(client, cfg.Presence.SweepInterval)
		log.Printf("[presence] redis leases at %s", cfg.Redis.Addr)
	} else {
		leases = presence.NewMemoryLeaseManager()
	}
	tracker := presence.NewTracker(cfg.Presence.GracePeriod, leases, presenceRepo)
	if rlm, ok := leases.(*presence.RedisLeaseManager); ok {
		// Leases inherited from a crashed run fire through the tracker so
		// their users still transition Offline.
		rlm.SetOrphanHandler(tracker.RecoverLease)
	}

	// Live directory
	store := directory.NewStore(userRepo)
	store.MustRefresh()

	hub := ws.NewHub()

	// Services
	authSvc := service.NewAuthService(cfg, userRepo)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, store)
	meHandler := handler.NewMeHandler(userRepo, store)
	locationHandler := handler.NewLocationHandler(locRepo, index)
	nearbyHandler := handler.NewNearbyHandler(index, store, tracker)
	presenceHandler := handler.NewPresenceHandler(tracker, presenceRepo)
	rosterHandler := handler.NewRosterHandler(store, tracker)
	uploadHandler := handler.NewUploadHandler(cloud, userRepo, store)
	statsHandler := handler.NewStatsHandler(hub, tracker, index)

	authMw := middleware.AuthRequired(&cfg.JWT)
	locationLimiter := middleware.NewInMemoryRateLimiter(60, time.Minute)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMw, authHandler.Logout)
		}

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("/profile", meHandler.GetProfile)
			me.PATCH("/profile", meHandler.UpdateProfile)
			me.POST("/avatar", uploadHandler.UploadAvatar)
			me.PATCH("/location", middleware.RateLimitByUser(locationLimiter), locationHandler.UpdateLocation)
			me.GET("/location", locationHandler.GetMyLocation)
		}

		api.GET("/roster", authMw, rosterHandler.GetRoster)
		api.GET("/nearby", authMw, nearbyHandler.Nearby)
		api.GET("/users/:id/presence", authMw, presenceHandler.GetUserPresence)
		api.GET("/presence/online", authMw, presenceHandler.GetOnline)
		api.GET("/stats", statsHandler.GetStats)

		api.GET("/ws/session", handler.UpgradeSessionWS(cfg, hub, tracker, store, index, locRepo))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

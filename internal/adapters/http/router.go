package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/campuslink/realtime/internal/adapters/ws"
	"github.com/campuslink/realtime/internal/config"
	"github.com/campuslink/realtime/internal/hub"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware pins a long-lived token to the browser session. It
// identifies the client across reconnects; it is NOT the connection id,
// which is minted per WebSocket connection.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, h *hub.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("RealtimeSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := ws.NewController(h, cfg)

	api := r.Group("/api")

	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("session", c.GetString("client_token")).Msg("ws endpoint hit")
		ctrl.HandleWS(ctx, c)
	})

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Read-only views. Live feed de-dup against these snapshots is the
	// client's job: delivery across the two paths is at-least-once.
	api.GET("/presence", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"online": h.OnlineUsers()})
	})

	api.GET("/calls", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": h.CallRooms()})
	})

	return r
}

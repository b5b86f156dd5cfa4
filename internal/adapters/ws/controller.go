package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/campuslink/realtime/internal/config"
	"github.com/campuslink/realtime/internal/core"
	"github.com/campuslink/realtime/internal/hub"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	hub     *hub.Hub
	limiter *RateLimiter

	readLimit  int64
	pingPeriod time.Duration
	sendBuffer int
}

func NewController(h *hub.Hub, cfg *config.Config) *Controller {
	return &Controller{
		hub:        h,
		limiter:    NewRateLimiter(cfg.RateLimit, cfg.RateInterval),
		readLimit:  cfg.ReadLimit,
		pingPeriod: cfg.PingPeriod,
		sendBuffer: cfg.SendBuffer,
	}
}

// HandleWS upgrades the request and attaches the new connection to the hub.
// Connection ids are minted per transport connection, not per session
// cookie: two tabs are two connections.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("ws upgrade")
		return
	}

	id := core.ConnID(uuid.NewString())
	log.Info().Str("module", "ws").Str("conn", string(id)).Str("session", c.GetString("client_token")).Msg("new WS connection")

	conn := newWsConn(ws, ctl.sendBuffer)
	ctl.hub.Connect(id, conn)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		ctl.writePump(ctx, conn)
	}()
	go func() {
		defer cancel()
		ctl.readPump(ctx, id, conn)
	}()
}

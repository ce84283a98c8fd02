package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/okdoc/teleconsult/internal/adapters/signal"
	"github.com/okdoc/teleconsult/internal/app"
	"github.com/okdoc/teleconsult/internal/config"
)

// ClientTokenMiddleware assigns a stable per-client token cookie used as the
// websocket session id.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("TeleconsultSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/status", func(c *gin.Context) {
		doctors, waiting, active := orch.Counts()
		c.JSON(http.StatusOK, gin.H{
			"connectedDoctors":    doctors,
			"waitingPatients":     waiting,
			"activeConsultations": active,
		})
	})

	ctl := signal.NewWSController(orch, cfg)
	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws endpoint hit")
		ctl.HandleWS(ctx, c)
	})

	return r
}

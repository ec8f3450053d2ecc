package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avolkov/peergate/internal/adapters/signal"
	"github.com/avolkov/peergate/internal/app"
	"github.com/avolkov/peergate/internal/config"
	"github.com/avolkov/peergate/internal/domain"
)

// ClientTokenMiddleware tags every browser with a stable token used only
// for log correlation; peer identity stays the registry-issued PeerID.
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

// SetupRouter wires the WS signaling endpoints (one per topology), the
// REST introspection API and optional static hosting.
func SetupRouter(ctx context.Context, cfg *config.Config, coord *app.Coordinator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("PeergateSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	ctl := signal.NewController(coord, cfg)
	for _, topology := range []domain.Topology{domain.OneToOne, domain.OneToMany, domain.ManyToMany} {
		topology := topology
		r.GET("/"+string(topology), func(c *gin.Context) {
			ctl.Handle(ctx, c, topology)
		})
	}

	api := r.Group("/api")

	// GET /api/sessions — list live sessions.
	api.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": coord.Sessions.List()})
	})

	// GET /api/sessions/:topology/:id — session detail.
	api.GET("/sessions/:topology/:id", func(c *gin.Context) {
		topology := domain.Topology(c.Param("topology"))
		if !topology.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown topology"})
			return
		}
		detail, ok := coord.Sessions.Get(topology, domain.SessionID(c.Param("id")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such session"})
			return
		}
		c.JSON(http.StatusOK, detail)
	})

	// DELETE /api/sessions/:topology/:id — administrative teardown.
	api.DELETE("/sessions/:topology/:id", func(c *gin.Context) {
		topology := domain.Topology(c.Param("topology"))
		if !topology.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown topology"})
			return
		}
		if !coord.DestroySession(topology, domain.SessionID(c.Param("id"))) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such session"})
			return
		}
		c.Status(http.StatusNoContent)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}

package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/auth"
	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/config"
	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/core"
)

// NewServer builds the HTTP server: signaling WebSocket plus the REST
// boundary that hands out tokens and connection URLs.
func NewServer(hub *core.Hub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	wsHandler := NewWSHandler(hub, cfg.AllowedOrigins, logger)
	router.GET("/ws", gin.WrapH(wsHandler))

	api := NewAPIHandlers(authService, hub, cfg, logger)
	router.POST("/api/auth/guest", api.GuestToken)

	authorized := router.Group("/api")
	authorized.Use(AuthMiddleware(authService, logger))
	authorized.POST("/rooms/:room/join", api.JoinRoom)
	authorized.GET("/stats", api.Stats)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

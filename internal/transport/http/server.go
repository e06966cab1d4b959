package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lawfx/ScrumPokerServer/internal/auth"
	"github.com/lawfx/ScrumPokerServer/internal/config"
	"github.com/lawfx/ScrumPokerServer/internal/core"
)

// authRequestsPerMinute caps registration/login attempts process-wide.
const authRequestsPerMinute = 60

// NewServer builds the HTTP server: REST endpoints for auth and room
// management plus the WebSocket upgrade route.
func NewServer(lobby *core.Lobby, sessions *SessionServer, authService *auth.Service, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	authHandlers := NewAuthHandlers(authService, logger)
	roomHandlers := NewRoomHandlers(lobby, logger)

	limiter := newRateLimiter(authRequestsPerMinute)
	limiter.startReset(make(chan struct{}))

	authGroup := router.Group("/auth", limiter.middleware())
	{
		authGroup.POST("/register", authHandlers.Register)
		authGroup.POST("/login", authHandlers.Login)
		authGroup.POST("/login/guest", authHandlers.GuestLogin)
	}

	api := router.Group("/api", AuthMiddleware(authService, logger))
	{
		api.PUT("/rooms/create", roomHandlers.CreateRoom)
		api.PATCH("/rooms/connect", roomHandlers.ConnectToRoom)
		api.PATCH("/rooms/disconnect", roomHandlers.DisconnectFromRoom)
		api.DELETE("/rooms/destroy", roomHandlers.DestroyRoom)
	}

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(sessions))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

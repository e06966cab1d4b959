package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lawfx/ScrumPokerServer/internal/auth"
)

// ContextKeyUsername is the gin context key carrying the authenticated username.
const ContextKeyUsername = "username"

// AuthMiddleware creates a middleware that validates Bearer JWT tokens and
// stores the username in the request context.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug().Msg("missing authorization header")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.Debug().Msg("invalid authorization header format")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "invalid authorization header format"})
			c.Abort()
			return
		}

		username, err := authService.VerifyToken(parts[1])
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "invalid token"})
			c.Abort()
			return
		}

		c.Set(ContextKeyUsername, username)
		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

// usernameFromContext extracts the username set by AuthMiddleware.
func usernameFromContext(c *gin.Context) (string, bool) {
	value, exists := c.Get(ContextKeyUsername)
	if !exists {
		return "", false
	}
	username, ok := value.(string)
	return username, ok && username != ""
}

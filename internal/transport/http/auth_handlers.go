package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lawfx/ScrumPokerServer/internal/auth"
)

// AuthHandlers provides HTTP handlers for registration and login.
type AuthHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAuthHandlers creates a new auth handlers instance.
func NewAuthHandlers(authService *auth.Service, logger *zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		log:         logger,
	}
}

// CredentialsRequest represents the register/login request body.
type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// GuestLoginRequest represents the guest login request body.
type GuestLoginRequest struct {
	Username string `json:"username" binding:"required"`
}

// AuthResponse represents the token response body.
type AuthResponse struct {
	Token string `json:"token"`
}

// Register handles user registration.
// POST /auth/register
func (h *AuthHandlers) Register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	if err := h.authService.Register(c.Request.Context(), req.Username, req.Password); err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, ErrorResponse{Message: "user already exists"})
		case errors.Is(err, auth.ErrUsernameEmpty),
			errors.Is(err, auth.ErrUsernameTooLong),
			errors.Is(err, auth.ErrPasswordEmpty):
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		default:
			h.log.Error().Err(err).Str("username", req.Username).Msg("failed to register user")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
		}
		return
	}

	h.log.Info().Str("username", req.Username).Msg("user registered")
	c.Status(http.StatusCreated)
}

// Login handles user login.
// POST /auth/login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWrongCredentials) || errors.Is(err, auth.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "wrong credentials"})
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to login user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
		return
	}

	h.log.Info().Str("username", req.Username).Msg("user logged in")
	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

// GuestLogin issues a short-lived token for an unregistered username.
// POST /auth/login/guest
func (h *AuthHandlers) GuestLogin(c *gin.Context) {
	var req GuestLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid guest login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	token, err := h.authService.GuestLogin(c.Request.Context(), req.Username)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, ErrorResponse{Message: "username is registered"})
		case errors.Is(err, auth.ErrUsernameEmpty), errors.Is(err, auth.ErrUsernameTooLong):
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		default:
			h.log.Error().Err(err).Str("username", req.Username).Msg("failed to issue guest token")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
		}
		return
	}

	h.log.Info().Str("username", req.Username).Msg("guest logged in")
	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

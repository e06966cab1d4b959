package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lawfx/ScrumPokerServer/internal/core"
)

// RoomHandlers provides HTTP handlers for room management endpoints. Room
// membership changes take effect on the caller's live WebSocket connection;
// the REST side only carries the intent.
type RoomHandlers struct {
	lobby *core.Lobby
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(lobby *core.Lobby, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		lobby: lobby,
		log:   logger,
	}
}

// RoomRequest represents a request body naming a room.
type RoomRequest struct {
	Roomname string `json:"roomname" binding:"required"`
}

// CreateRoom handles room creation; the caller becomes the room admin.
// PUT /api/rooms/create
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	username, ok := usernameFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized"})
		return
	}

	var req RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	if err := h.lobby.CreateRoom(username, req.Roomname); err != nil {
		h.log.Debug().Err(err).Str("username", username).Str("roomname", req.Roomname).Msg("create room rejected")
		c.JSON(statusFromError(err), errorBody(err))
		return
	}

	h.log.Info().Str("username", username).Str("roomname", req.Roomname).Msg("room created")
	c.Status(http.StatusCreated)
}

// ConnectToRoom joins the caller to an existing room.
// PATCH /api/rooms/connect
func (h *RoomHandlers) ConnectToRoom(c *gin.Context) {
	username, ok := usernameFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized"})
		return
	}

	var req RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid connect request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	if err := h.lobby.ConnectToRoom(username, req.Roomname); err != nil {
		h.log.Debug().Err(err).Str("username", username).Str("roomname", req.Roomname).Msg("connect rejected")
		c.JSON(statusFromError(err), errorBody(err))
		return
	}

	c.Status(http.StatusOK)
}

// DisconnectFromRoom removes the caller from their current room.
// PATCH /api/rooms/disconnect
func (h *RoomHandlers) DisconnectFromRoom(c *gin.Context) {
	username, ok := usernameFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized"})
		return
	}

	if err := h.lobby.DisconnectFromRoom(username); err != nil {
		h.log.Debug().Err(err).Str("username", username).Msg("disconnect rejected")
		c.JSON(statusFromError(err), errorBody(err))
		return
	}

	c.Status(http.StatusOK)
}

// DestroyRoom destroys the caller's current room; admin only.
// DELETE /api/rooms/destroy
func (h *RoomHandlers) DestroyRoom(c *gin.Context) {
	username, ok := usernameFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized"})
		return
	}

	if err := h.lobby.DestroyRoomOrderedByUser(username); err != nil {
		h.log.Debug().Err(err).Str("username", username).Msg("destroy rejected")
		c.JSON(statusFromError(err), errorBody(err))
		return
	}

	h.log.Info().Str("username", username).Msg("room destroyed by admin")
	c.Status(http.StatusOK)
}

package http

import (
	"errors"
	"net/http"

	"github.com/lawfx/ScrumPokerServer/internal/core"
)

// ErrorResponse is the failure body for every REST endpoint.
type ErrorResponse struct {
	Message string `json:"message"`
}

// statusFromError maps a lobby outcome onto an HTTP status. Unknown errors are
// treated as internal.
func statusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, core.ErrRoomNameEmpty),
		errors.Is(err, core.ErrRoomNameTooLong),
		errors.Is(err, core.ErrTaskNameEmpty),
		errors.Is(err, core.ErrTaskNameTooLong):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUserNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrUserNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, core.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrRoomAlreadyExists),
		errors.Is(err, core.ErrRoomAlreadyHasAdmin),
		errors.Is(err, core.ErrUserAlreadyInRoom),
		errors.Is(err, core.ErrUserNotInRoom),
		errors.Is(err, core.ErrUserAlreadyConnected),
		errors.Is(err, core.ErrTaskInProgress),
		errors.Is(err, core.ErrNoActiveTask),
		errors.Is(err, core.ErrAlreadyEstimated):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorBody builds the response body for a failed lobby operation.
func errorBody(err error) ErrorResponse {
	if statusFromError(err) == http.StatusInternalServerError {
		return ErrorResponse{Message: "internal server error"}
	}
	return ErrorResponse{Message: err.Error()}
}

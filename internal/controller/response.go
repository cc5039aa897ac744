package controller

import (
	"errors"
	"net/http"

	"github.com/lockstep/server/internal/service/auth"
	"github.com/lockstep/server/internal/service/room"
	"github.com/lockstep/server/pkg/rest"
)

const (
	codeOK   = 0
	codeFail = 1
)

func (c controller) ok(w http.ResponseWriter, msg string, data any) {
	body := rest.Envelope{"code": codeOK, "msg": msg}
	if data != nil {
		body["data"] = data
	}

	if err := rest.WriteJSON(w, http.StatusOK, body); err != nil {
		c.logger.Warn("failed to write response", "error", err)
	}
}

func (c controller) fail(w http.ResponseWriter, status int, msg string) {
	if err := rest.WriteJSON(w, status, rest.Envelope{"code": codeFail, "msg": msg}); err != nil {
		c.logger.Warn("failed to write response", "error", err)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrUserAlreadyExists),
		errors.Is(err, room.ErrRoomAlreadyExists),
		errors.Is(err, room.ErrAlreadyMember):
		return http.StatusConflict
	case errors.Is(err, room.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, room.ErrInvalidRoomID),
		errors.Is(err, room.ErrInvalidMediaRef),
		errors.Is(err, room.ErrInvalidTabID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// failWith answers with the service error, hiding unexpected ones.
func (c controller) failWith(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		c.logger.ErrorContext(r.Context(), "request failed", "error", err)
		c.fail(w, status, "internal error")
		return
	}

	c.logger.DebugContext(r.Context(), "request rejected", "error", err)
	c.fail(w, status, err.Error())
}

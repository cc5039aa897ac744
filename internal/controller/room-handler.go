package controller

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lockstep/server/internal/service/room"
	"github.com/lockstep/server/pkg/rest"
	"github.com/lockstep/server/pkg/validator"
)

// tabId arrives as a number from some clients and as a string from others.
type createRoomRequest struct {
	RoomNumber string      `json:"roomNumber" validate:"required,max=64"`
	RoomURL    string      `json:"roomUrl" validate:"required,max=2048"`
	TabID      json.Number `json:"tabId" validate:"required,numeric"`
}

type joinRoomRequest struct {
	RoomNumber string      `json:"roomNumber" validate:"required,max=64"`
	TabID      json.Number `json:"tabId" validate:"required,numeric"`
}

type leaveRoomRequest struct {
	RoomNumber string `json:"roomNumber" validate:"required"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.fail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.fail(w, http.StatusBadRequest, validator.Summary(validationErrors))
		return
	}

	resp, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		User:     c.getUserFromCtx(r.Context()),
		RoomID:   req.RoomNumber,
		MediaRef: req.RoomURL,
		TabID:    req.TabID.String(),
	})
	if err != nil {
		c.failWith(w, r, err)
		return
	}

	c.ok(w, "room created", resp.Room)
}

func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.fail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.fail(w, http.StatusBadRequest, validator.Summary(validationErrors))
		return
	}

	resp, err := c.roomService.JoinRoom(r.Context(), &room.JoinRoomParams{
		User:   c.getUserFromCtx(r.Context()),
		RoomID: req.RoomNumber,
		TabID:  req.TabID.String(),
	})
	if err != nil {
		c.failWith(w, r, err)
		return
	}

	c.ok(w, "room joined", resp.Room)
}

func (c controller) leaveRoom(w http.ResponseWriter, r *http.Request) {
	var req leaveRoomRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.fail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.fail(w, http.StatusBadRequest, validator.Summary(validationErrors))
		return
	}

	resp, err := c.roomService.LeaveRoom(r.Context(), &room.LeaveRoomParams{
		User:   c.getUserFromCtx(r.Context()),
		RoomID: req.RoomNumber,
	})
	if err != nil {
		c.failWith(w, r, err)
		return
	}

	c.ok(w, "room left", rest.Envelope{"room_deleted": resp.IsRoomDeleted})
}

func (c controller) roomState(w http.ResponseWriter, r *http.Request) {
	resp, err := c.roomService.GetRoomState(r.Context(), chi.URLParam(r, "room-id"))
	if err != nil {
		c.failWith(w, r, err)
		return
	}

	c.ok(w, "", rest.Envelope{
		"room":    resp.Room,
		"barrier": resp.Barrier,
	})
}

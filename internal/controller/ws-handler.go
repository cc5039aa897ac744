package controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lockstep/server/internal/domain"
	"github.com/lockstep/server/internal/service/room"
	"github.com/lockstep/server/pkg/wsrouter"
)

// serveWS runs one websocket connection. authMw has already rejected anonymous callers,
// so every connection here belongs to a known user.
func (c controller) serveWS(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	user := c.getUserFromCtx(ctx)

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(c.cfg.ReadLimit)
	c.extendReadDeadline(conn)
	conn.SetPongHandler(func(string) error {
		c.extendReadDeadline(conn)
		return nil
	})

	if err := c.connRepo.Add(conn, user.ID); err != nil {
		c.logger.WarnContext(ctx, "failed to add connection", "error", err)
		return
	}

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		if err := c.connRepo.WritePump(ctx, conn); err != nil {
			c.logger.DebugContext(ctx, "write pump stopped", "error", err)
			// unblocks the read loop below
			conn.Close()
		}
	}()

	defer func() {
		c.roomService.Disconnect(ctx, &room.DisconnectParams{
			User: user,
			Conn: conn,
		})
		if err := c.connRepo.Remove(conn); err != nil {
			c.logger.DebugContext(ctx, "failed to remove connection", "error", err)
		}
		<-pumpDone
		c.logger.InfoContext(ctx, "websocket disconnected")
	}()

	connectResp, err := c.roomService.Connect(ctx, &room.ConnectParams{
		User: user,
		Conn: conn,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to connect user", "error", err)
		return
	}
	c.logger.InfoContext(ctx, "websocket connected", "room_id", connectResp.RoomID)

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			c.logger.InfoContext(ctx, "websocket closed unexpectedly", "error", err)
		}
	}
}

func (c controller) extendReadDeadline(conn *websocket.Conn) {
	if c.cfg.PongWait > 0 {
		conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	}
}

func isClientError(err error) bool {
	for _, target := range []error{
		wsrouter.ErrUnknownMessageType,
		wsrouter.ErrInvalidMessage,
		wsrouter.ErrInvalidPayload,
		room.ErrInvalidPayload,
		room.ErrUnknownAction,
		room.ErrNotInRoom,
		domain.ErrNotMember,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// wsErrorHandler reports a failed message back to its sender only.
func (c controller) wsErrorHandler(ctx context.Context, conn *websocket.Conn, err error) {
	message := err.Error()
	if isClientError(err) {
		c.logger.InfoContext(ctx, "websocket message rejected", "error", err)
	} else {
		c.logger.ErrorContext(ctx, "websocket handler failed", "error", err)
		message = "internal error"
	}

	if err := c.connRepo.EmitTo(conn, &domain.Message{
		Type:    domain.EventError,
		Payload: errorOutput{Message: message},
	}); err != nil {
		c.logger.DebugContext(ctx, "failed to emit error", "error", err)
	}
}

type errorOutput struct {
	Message string `json:"message"`
}

type emptyInput struct{}

func (c controller) handleAlive(_ context.Context, conn *websocket.Conn, _ emptyInput) error {
	c.extendReadDeadline(conn)
	return nil
}

// seconds truncates a client-side media time to whole seconds.
func seconds(v *float64) (*int, error) {
	if v == nil {
		return nil, nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil, fmt.Errorf("%w: time must be finite", room.ErrInvalidPayload)
	}
	if *v > math.MaxInt32 || *v < math.MinInt32 {
		return nil, fmt.Errorf("%w: time is too large", room.ErrInvalidPayload)
	}

	s := int(math.Floor(*v))
	return &s, nil
}

type updateUserInfoInput struct {
	CurrentState    *string  `json:"currentState"`
	CurrentProgress *float64 `json:"currentProgress"`
	CurrentSocketio *bool    `json:"currentSocketio"`
}

func (c controller) handleUpdateUserInfo(ctx context.Context, _ *websocket.Conn, input updateUserInfoInput) error {
	position, err := seconds(input.CurrentProgress)
	if err != nil {
		return err
	}

	if err := c.roomService.UpdateParticipantInfo(ctx, &room.UpdateParticipantInfoParams{
		User:      c.getUserFromCtx(ctx),
		Phase:     input.CurrentState,
		Position:  position,
		Connected: input.CurrentSocketio,
	}); err != nil {
		return fmt.Errorf("failed to update user info: %w", err)
	}

	return nil
}

type syncEventInput struct {
	Action string   `json:"action"`
	Time   *float64 `json:"time"`
	State  *int     `json:"state"`
	URL    *string  `json:"url"`
}

func (c controller) handleSyncEvent(ctx context.Context, _ *websocket.Conn, input syncEventInput) error {
	t, err := seconds(input.Time)
	if err != nil {
		return err
	}

	if _, err := c.roomService.SyncEvent(ctx, &room.SyncEventParams{
		User:   c.getUserFromCtx(ctx),
		Action: input.Action,
		Time:   t,
		State:  input.State,
		URL:    input.URL,
	}); err != nil {
		return fmt.Errorf("failed to handle sync event: %w", err)
	}

	return nil
}

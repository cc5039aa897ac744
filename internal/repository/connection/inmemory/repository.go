package inmemory

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lockstep/server/internal/domain"
	"github.com/lockstep/server/internal/repository/connection"
	"github.com/lockstep/server/pkg/metrics"
)

type client struct {
	id     string
	conn   *websocket.Conn
	userID string
	roomID string
	send   chan []byte
	done   chan struct{}
}

type Config struct {
	SendBuffer int
	WriteWait  time.Duration
	PingPeriod time.Duration
}

// repo tracks open websocket connections and the room channel each one listens to.
// Writes never happen on the caller's goroutine: messages are queued and drained by
// WritePump, so Broadcast is safe to call while a room lock is held.
type repo struct {
	mu      sync.RWMutex
	conns   map[*websocket.Conn]*client
	rooms   map[string]map[*client]struct{}
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewRepo(cfg Config, m *metrics.Metrics, logger *slog.Logger) *repo {
	return &repo{
		conns:   make(map[*websocket.Conn]*client),
		rooms:   make(map[string]map[*client]struct{}),
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

func (r *repo) Add(conn *websocket.Conn, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn]; ok {
		r.logger.Info("connection.inmemory.Add", "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	c := &client{
		id:     uuid.NewString(),
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, r.cfg.SendBuffer),
		done:   make(chan struct{}),
	}
	r.conns[conn] = c
	r.metrics.Connections.Inc()

	r.logger.Debug("connection.inmemory.Add", "conn_id", c.id, "user_id", userID)
	return nil
}

// Remove forgets the connection and stops its write pump. It does not close conn.
func (r *repo) Remove(conn *websocket.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[conn]
	if !ok {
		return connection.ErrNotFound
	}

	r.unsubscribeLocked(c)
	delete(r.conns, conn)
	close(c.done)
	r.metrics.Connections.Dec()

	r.logger.Debug("connection.inmemory.Remove", "conn_id", c.id, "user_id", c.userID)
	return nil
}

func (r *repo) GetUserID(conn *websocket.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return c.userID, nil
}

// RoomConns returns how many connections listen to roomID.
func (r *repo) RoomConns(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[roomID])
}

func (r *repo) unsubscribeLocked(c *client) {
	if c.roomID == "" {
		return
	}

	if subs, ok := r.rooms[c.roomID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(r.rooms, c.roomID)
		}
	}
	c.roomID = ""
}

// Subscribe moves conn onto roomID's channel, leaving any previous one.
func (r *repo) Subscribe(conn *websocket.Conn, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[conn]
	if !ok {
		return connection.ErrNotFound
	}

	r.unsubscribeLocked(c)

	subs, ok := r.rooms[roomID]
	if !ok {
		subs = make(map[*client]struct{})
		r.rooms[roomID] = subs
	}
	subs[c] = struct{}{}
	c.roomID = roomID

	r.logger.Debug("connection.inmemory.Subscribe", "conn_id", c.id, "room_id", roomID)
	return nil
}

func (r *repo) Unsubscribe(conn *websocket.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[conn]
	if !ok {
		return connection.ErrNotFound
	}

	r.unsubscribeLocked(c)
	return nil
}

// UnsubscribeUser takes every connection of userID off its room channel.
func (r *repo) UnsubscribeUser(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.conns {
		if c.userID == userID {
			r.unsubscribeLocked(c)
		}
	}
}

// SubscribeUser puts every connection of userID onto roomID's channel and returns how
// many were moved.
func (r *repo) SubscribeUser(userID, roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.conns {
		if c.userID != userID {
			continue
		}

		r.unsubscribeLocked(c)
		subs, ok := r.rooms[roomID]
		if !ok {
			subs = make(map[*client]struct{})
			r.rooms[roomID] = subs
		}
		subs[c] = struct{}{}
		c.roomID = roomID
		n++
	}

	return n
}

func (r *repo) enqueue(c *client, msgType string, data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		r.metrics.MessagesSent.WithLabelValues(msgType).Inc()
		return true
	default:
		r.metrics.MessagesDropped.Inc()
		r.logger.Warn("dropping message, send queue full", "conn_id", c.id, "user_id", c.userID, "type", msgType)
		return false
	}
}

func (r *repo) Broadcast(roomID string, msg *domain.Message, excludeUserID string) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("failed to marshal broadcast", "room_id", roomID, "type", msg.Type, "error", err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.rooms[roomID] {
		if excludeUserID != "" && c.userID == excludeUserID {
			continue
		}

		r.enqueue(c, msg.Type, data)
	}
}

func (r *repo) EmitTo(conn *websocket.Conn, msg *domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[conn]
	if !ok {
		return connection.ErrNotFound
	}

	if !r.enqueue(c, msg.Type, data) {
		return connection.ErrQueueFull
	}

	return nil
}

// WritePump drains conn's queue and pings it until the connection is removed,
// ctx is done or a write fails.
func (r *repo) WritePump(ctx context.Context, conn *websocket.Conn) error {
	r.mu.RLock()
	c, ok := r.conns[conn]
	r.mu.RUnlock()
	if !ok {
		return connection.ErrNotFound
	}

	ticker := time.NewTicker(r.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(r.cfg.WriteWait))
			return nil
		case data := <-c.send:
			if err := conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteWait)); err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(r.cfg.WriteWait)); err != nil {
				return err
			}
		}
	}
}

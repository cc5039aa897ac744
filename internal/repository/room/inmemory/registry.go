package inmemory

import (
	"log/slog"
	"sync"

	"github.com/lockstep/server/internal/domain"
	"github.com/lockstep/server/internal/repository/room"
)

// Registry maps room ids to rooms and user ids to the one room each user is in.
// Invariant: userID is a key of users iff it is a member of users[userID].
// Callers keep the membership side in step with Bind/Unbind.
type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]*domain.Room
	users       map[string]*domain.Room
	broadcaster domain.Broadcaster
	logger      *slog.Logger
}

func NewRegistry(broadcaster domain.Broadcaster, logger *slog.Logger) *Registry {
	return &Registry{
		rooms:       make(map[string]*domain.Room),
		users:       make(map[string]*domain.Room),
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func (r *Registry) CreateRoom(roomID, mediaRef string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("called", "method", "CreateRoom", "room_id", roomID)
	if _, ok := r.rooms[roomID]; ok {
		r.logger.Debug("returned", "method", "CreateRoom", "error", room.ErrAlreadyExists)
		return nil, room.ErrAlreadyExists
	}

	rm := domain.NewRoom(roomID, mediaRef, r.broadcaster)
	r.rooms[roomID] = rm
	return rm, nil
}

func (r *Registry) GetRoom(roomID string) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, room.ErrNotFound
	}

	return rm, nil
}

func (r *Registry) DeleteRoom(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("called", "method", "DeleteRoom", "room_id", roomID)
	if _, ok := r.rooms[roomID]; !ok {
		return false
	}

	delete(r.rooms, roomID)
	return true
}

// BindUserToRoom is the only place the one-room-per-user rule is enforced.
func (r *Registry) BindUserToRoom(userID string, rm *domain.Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("called", "method", "BindUserToRoom", "user_id", userID, "room_id", rm.ID())
	if _, ok := r.users[userID]; ok {
		r.logger.Debug("returned", "method", "BindUserToRoom", "result", false)
		return false
	}

	r.users[userID] = rm
	return true
}

func (r *Registry) UnbindUser(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("called", "method", "UnbindUser", "user_id", userID)
	if _, ok := r.users[userID]; !ok {
		return false
	}

	delete(r.users, userID)
	return true
}

func (r *Registry) RoomOf(userID string) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.users[userID]
	if !ok {
		return nil, room.ErrNotFound
	}

	return rm, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

// Reset drops every room and binding.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms = make(map[string]*domain.Room)
	r.users = make(map[string]*domain.Room)
}

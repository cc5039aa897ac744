package room

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/lockstep/server/internal/domain"
	"github.com/lockstep/server/pkg/metrics"
)

var (
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrRoomNotFound      = errors.New("room does not exist")
	ErrAlreadyMember     = errors.New("user is already in a room")
	ErrNotMember         = errors.New("user is not in the room")
	ErrNotInRoom         = errors.New("user has not joined any room")
	ErrInvalidRoomID     = errors.New("room id must not be empty")
	ErrInvalidMediaRef   = errors.New("room url must not be empty")
	ErrInvalidTabID      = errors.New("tab id must be numeric")
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrUnknownAction     = errors.New("unknown sync action")
)

type iRegistry interface {
	CreateRoom(roomID, mediaRef string) (*domain.Room, error)
	GetRoom(roomID string) (*domain.Room, error)
	DeleteRoom(roomID string) bool
	BindUserToRoom(userID string, rm *domain.Room) bool
	UnbindUser(userID string) bool
	RoomOf(userID string) (*domain.Room, error)
}

type iConnRepo interface {
	Subscribe(*websocket.Conn, string) error
	Unsubscribe(*websocket.Conn) error
	UnsubscribeUser(string)
	SubscribeUser(userID, roomID string) int
}

type service struct {
	// membership changes hold mu exclusively; connection events hold it shared so
	// they never act on a room a concurrent leave is tearing down
	mu       sync.RWMutex
	registry iRegistry
	connRepo iConnRepo
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(registry iRegistry, connRepo iConnRepo, m *metrics.Metrics, logger *slog.Logger) *service {
	return &service{
		registry: registry,
		connRepo: connRepo,
		metrics:  m,
		logger:   logger,
	}
}

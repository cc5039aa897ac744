package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lockstep/server/internal/domain"
	"github.com/lockstep/server/internal/service/auth"
	"github.com/lockstep/server/internal/service/room"
	"github.com/lockstep/server/pkg/metrics"
	"github.com/lockstep/server/pkg/validator"
	"github.com/lockstep/server/pkg/wsrouter"
)

type iAuthService interface {
	SignUp(context.Context, *auth.SignUpParams) (auth.SignUpResponse, error)
	SignIn(context.Context, *auth.SignInParams) (auth.SignInResponse, error)
	SignOut(context.Context, auth.Identity) error
	Authenticate(context.Context, string) (auth.Identity, error)
}

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) (room.LeaveRoomResponse, error)
	GetProfile(context.Context, room.User) room.GetProfileResponse
	GetRoomState(context.Context, string) (room.GetRoomStateResponse, error)
	Connect(context.Context, *room.ConnectParams) (room.ConnectResponse, error)
	Disconnect(context.Context, *room.DisconnectParams)
	UpdateParticipantInfo(context.Context, *room.UpdateParticipantInfoParams) error
	SyncEvent(context.Context, *room.SyncEventParams) (room.SyncEventResponse, error)
}

type iConnRepo interface {
	Add(*websocket.Conn, string) error
	Remove(*websocket.Conn) error
	EmitTo(*websocket.Conn, *domain.Message) error
	WritePump(context.Context, *websocket.Conn) error
}

type Config struct {
	// ReadLimit caps inbound websocket frames in bytes.
	ReadLimit int64
	// PongWait is how long a connection may stay silent before it is dropped.
	PongWait     time.Duration
	SecureCookie bool
}

type controller struct {
	authService iAuthService
	roomService iRoomService
	connRepo    iConnRepo
	metrics     *metrics.Metrics
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsmux       *wsrouter.WSRouter
	cfg         Config
	logger      *slog.Logger
}

func NewController(
	authService iAuthService,
	roomService iRoomService,
	connRepo iConnRepo,
	m *metrics.Metrics,
	cfg Config,
	logger *slog.Logger,
) *controller {
	c := &controller{
		authService: authService,
		roomService: roomService,
		connRepo:    connRepo,
		metrics:     m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.NewValidator(),
		cfg:      cfg,
		logger:   logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}

package room

import (
	"github.com/gorilla/websocket"
	"github.com/lockstep/server/internal/domain"
)

// User is the authenticated caller as supplied by the identity provider.
type User struct {
	ID          string
	DisplayName string
}

type CreateRoomParams struct {
	User     User
	RoomID   string
	MediaRef string
	TabID    string
}

type CreateRoomResponse struct {
	Room domain.RoomView
}

type JoinRoomParams struct {
	User   User
	RoomID string
	TabID  string
}

type JoinRoomResponse struct {
	Room domain.RoomView
}

type LeaveRoomParams struct {
	User   User
	RoomID string
}

type LeaveRoomResponse struct {
	IsRoomDeleted bool
}

type GetProfileResponse struct {
	Participant *domain.ParticipantView
	Room        *domain.RoomView
}

type GetRoomStateResponse struct {
	Room    domain.RoomView
	Barrier domain.BarrierView
}

type ConnectParams struct {
	User User
	Conn *websocket.Conn
}

type ConnectResponse struct {
	RoomID string
}

type DisconnectParams struct {
	User User
	Conn *websocket.Conn
}

type UpdateParticipantInfoParams struct {
	User      User
	Phase     *string
	Position  *int
	Connected *bool
}

const (
	ActionStartBarrier     = "start-barrier"
	ActionInitNewSyncState = "init new sync state"
	ActionReportReady      = "report-ready"
	ActionUpdateSyncState  = "update sync state"
	ActionUpdateURL        = "update-url"
	ActionUpdateURLLegacy  = "update url"
)

type SyncEventParams struct {
	User   User
	Action string
	Time   *int
	State  *int
	URL    *string
}

type SyncEventResponse struct {
	Accepted  bool
	Satisfied bool
}

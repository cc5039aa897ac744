package domain

const (
	EventRoomPanel   = "room-panel"
	EventVideoAction = "video-action"
	EventError       = "error"

	ActionPlay         = "play"
	ActionPauseAndJump = "pause-and-jump"
	ActionUpdateURL    = "updateUrl"
)

// Message is the {type, payload} frame written to websocket clients.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type RoomView struct {
	RoomID   string                     `json:"room_id"`
	MediaRef string                     `json:"media_ref"`
	Members  map[string]ParticipantView `json:"members"`
}

type VideoAction struct {
	Action string `json:"action"`
	Time   *int   `json:"time,omitempty"`
	URL    string `json:"url,omitempty"`
}

type BarrierView struct {
	Generation int      `json:"generation"`
	Target     int      `json:"target"`
	Ready      int      `json:"ready"`
	Total      int      `json:"total"`
	Satisfied  bool     `json:"satisfied"`
	Pending    []string `json:"pending"`
}

// Broadcaster delivers a message to every connection subscribed to roomID,
// skipping connections of excludeUserID when it is not empty. It must not block.
type Broadcaster interface {
	Broadcast(roomID string, msg *Message, excludeUserID string)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, *Message, string) {}

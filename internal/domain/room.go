package domain

import (
	"slices"
	"sync"

	"golang.org/x/exp/maps"
)

// Room is one shared-playback session. All state is guarded by mu, and every
// broadcast is handed to the Broadcaster while mu is still held so that clients
// observe mutations in the order they happened.
type Room struct {
	mu          sync.Mutex
	id          string
	mediaRef    string
	members     map[string]*Participant
	generations []*generation
	broadcaster Broadcaster
}

func NewRoom(id, mediaRef string, broadcaster Broadcaster) *Room {
	if broadcaster == nil {
		broadcaster = nopBroadcaster{}
	}

	return &Room{
		id:          id,
		mediaRef:    mediaRef,
		members:     make(map[string]*Participant),
		broadcaster: broadcaster,
	}
}

func (r *Room) ID() string {
	return r.id
}

func (r *Room) MediaRef() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.mediaRef
}

func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.members)
}

func (r *Room) IsMember(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.members[userID]
	return ok
}

func (r *Room) MemberIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := maps.Keys(r.members)
	slices.Sort(ids)
	return ids
}

func (r *Room) Participant(userID string) (ParticipantView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.members[userID]
	if !ok {
		return ParticipantView{}, false
	}

	return p.View(), true
}

func (r *Room) snapshotLocked() RoomView {
	members := make(map[string]ParticipantView, len(r.members))
	for id, p := range r.members {
		members[id] = p.View()
	}

	return RoomView{
		RoomID:   r.id,
		MediaRef: r.mediaRef,
		Members:  members,
	}
}

func (r *Room) Snapshot() RoomView {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshotLocked()
}

// notifyLocked broadcasts the post-mutation room state. Every mutator ends with it.
func (r *Room) notifyLocked() {
	view := r.snapshotLocked()
	r.broadcaster.Broadcast(r.id, &Message{
		Type:    EventRoomPanel,
		Payload: view,
	}, "")
}

func (r *Room) AddMember(p *Participant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[p.userID]; ok {
		return false
	}

	r.members[p.userID] = p
	r.notifyLocked()
	return true
}

// RemoveMember drops the participant. Generations already started keep the user in
// their snapshot.
func (r *Room) RemoveMember(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[userID]; !ok {
		return false
	}

	delete(r.members, userID)
	r.notifyLocked()
	return true
}

func (r *Room) latestLocked() *generation {
	if len(r.generations) == 0 {
		return nil
	}

	return r.generations[len(r.generations)-1]
}

// StartNewGeneration opens a barrier over the current members and tells every client
// to pause and buffer to target.
func (r *Room) StartNewGeneration(target int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.generations = append(r.generations, newGeneration(target, maps.Keys(r.members)))
	r.broadcaster.Broadcast(r.id, &Message{
		Type: EventVideoAction,
		Payload: VideoAction{
			Action: ActionPauseAndJump,
			Time:   &target,
		},
	}, "")
}

// ReportReady marks userID ready in the latest generation. satisfied is true only for
// the call that closed the barrier; that call also broadcasts play.
func (r *Room) ReportReady(userID string) (accepted, satisfied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.latestLocked()
	if g == nil {
		return false, false
	}

	accepted, satisfied = g.mark(userID)
	if satisfied {
		r.broadcaster.Broadcast(r.id, &Message{
			Type:    EventVideoAction,
			Payload: VideoAction{Action: ActionPlay},
		}, "")
	}

	return accepted, satisfied
}

func (r *Room) Barrier() BarrierView {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.latestLocked()
	if g == nil {
		return BarrierView{Pending: []string{}}
	}

	pending := g.pending()
	return BarrierView{
		Generation: len(r.generations),
		Target:     g.target,
		Ready:      len(g.ready) - len(pending),
		Total:      len(g.ready),
		Satisfied:  g.satisfied,
		Pending:    pending,
	}
}

func (r *Room) updateParticipant(userID string, fn func(p *Participant)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.members[userID]
	if !ok {
		return ErrNotMember
	}

	fn(p)
	r.notifyLocked()
	return nil
}

func (r *Room) SetPhase(userID string, phase Phase) error {
	return r.updateParticipant(userID, func(p *Participant) {
		p.phase = phase
	})
}

func (r *Room) SetPosition(userID string, position int) error {
	if position < 0 {
		return ErrInvalidPosition
	}

	return r.updateParticipant(userID, func(p *Participant) {
		p.position = position
	})
}

func (r *Room) SetConnected(userID string, connected bool) error {
	return r.updateParticipant(userID, func(p *Participant) {
		p.connected = connected
	})
}

// ChangeMedia switches the room to another video. Everyone but the sender is told to
// load it, then the new room state is broadcast.
func (r *Room) ChangeMedia(userID, mediaRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[userID]; !ok {
		return ErrNotMember
	}

	r.mediaRef = mediaRef
	r.broadcaster.Broadcast(r.id, &Message{
		Type: EventVideoAction,
		Payload: VideoAction{
			Action: ActionUpdateURL,
			URL:    mediaRef,
		},
	}, userID)
	r.notifyLocked()
	return nil
}

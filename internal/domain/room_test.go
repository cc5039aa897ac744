package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoom(t *testing.T, members ...string) (*Room, *recorder) {
	t.Helper()
	rec := &recorder{}
	room := NewRoom("42", "http://x/video.mp4", rec)
	for _, m := range members {
		require.True(t, room.AddMember(NewParticipant(m, m+"-nick", "1")))
	}
	rec.reset()

	return room, rec
}

func TestAddMember(t *testing.T) {
	room, rec := newTestRoom(t)

	assert.True(t, room.AddMember(NewParticipant("alice", "Alice", "1")))
	sent := rec.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "42", sent[0].roomID)
	assert.Equal(t, EventRoomPanel, sent[0].msg.Type)
	view := sent[0].msg.Payload.(RoomView)
	assert.Equal(t, "http://x/video.mp4", view.MediaRef)
	assert.Contains(t, view.Members, "alice")
	assert.Equal(t, PhaseIdle, view.Members["alice"].Phase)

	rec.reset()
	assert.False(t, room.AddMember(NewParticipant("alice", "Alice again", "2")), "duplicate join must fail")
	assert.Empty(t, rec.all(), "failed add must not broadcast")

	p, ok := room.Participant("alice")
	require.True(t, ok)
	assert.Equal(t, "Alice", p.DisplayName)
}

func TestRemoveMember(t *testing.T) {
	room, rec := newTestRoom(t, "alice", "bob")

	assert.True(t, room.RemoveMember("bob"))
	sent := rec.all()
	require.Len(t, sent, 1)
	view := sent[0].msg.Payload.(RoomView)
	assert.NotContains(t, view.Members, "bob")
	assert.Equal(t, 1, room.Len())

	rec.reset()
	assert.False(t, room.RemoveMember("bob"))
	assert.Empty(t, rec.all())
}

func TestSettersBroadcastPostMutationState(t *testing.T) {
	room, rec := newTestRoom(t, "alice")

	require.NoError(t, room.SetPhase("alice", PhasePlaying))
	require.NoError(t, room.SetPosition("alice", 95))
	require.NoError(t, room.SetConnected("alice", true))

	sent := rec.all()
	require.Len(t, sent, 3, "one room-panel per setter")

	assert.Equal(t, PhasePlaying, sent[0].msg.Payload.(RoomView).Members["alice"].Phase)
	assert.Equal(t, 95, sent[1].msg.Payload.(RoomView).Members["alice"].Position)
	last := sent[2].msg.Payload.(RoomView).Members["alice"]
	assert.True(t, last.Connected)
	assert.Equal(t, PhasePlaying, last.Phase)
	assert.Equal(t, 95, last.Position)
}

func TestSettersRejectNonMembers(t *testing.T) {
	room, rec := newTestRoom(t, "alice")

	assert.ErrorIs(t, room.SetPhase("mallory", PhasePaused), ErrNotMember)
	assert.ErrorIs(t, room.SetPosition("mallory", 3), ErrNotMember)
	assert.ErrorIs(t, room.SetConnected("mallory", true), ErrNotMember)
	assert.ErrorIs(t, room.SetPosition("alice", -1), ErrInvalidPosition)
	assert.Empty(t, rec.all())
}

func TestBackwardSeekAccepted(t *testing.T) {
	room, _ := newTestRoom(t, "alice")

	require.NoError(t, room.SetPosition("alice", 300))
	require.NoError(t, room.SetPosition("alice", 10))

	p, _ := room.Participant("alice")
	assert.Equal(t, 10, p.Position)
}

func TestSnapshotIsDetached(t *testing.T) {
	room, _ := newTestRoom(t, "alice")

	view := room.Snapshot()
	require.NoError(t, room.SetPosition("alice", 50))

	assert.Equal(t, 0, view.Members["alice"].Position)
	assert.Equal(t, []string{"alice"}, room.MemberIDs())
}

func TestChangeMediaExcludesSender(t *testing.T) {
	room, rec := newTestRoom(t, "alice", "bob")

	require.NoError(t, room.ChangeMedia("alice", "http://x/other.mp4"))

	sent := rec.all()
	require.Len(t, sent, 2)
	assert.Equal(t, EventVideoAction, sent[0].msg.Type)
	assert.Equal(t, "alice", sent[0].exclude)
	assert.Equal(t, VideoAction{Action: ActionUpdateURL, URL: "http://x/other.mp4"}, sent[0].msg.Payload)
	assert.Equal(t, EventRoomPanel, sent[1].msg.Type)
	assert.Equal(t, "http://x/other.mp4", room.MediaRef())

	assert.ErrorIs(t, room.ChangeMedia("mallory", "http://x/evil.mp4"), ErrNotMember)
}

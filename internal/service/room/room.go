package room

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lockstep/server/internal/domain"
	roomRepo "github.com/lockstep/server/internal/repository/room"
)

func validateTabID(tabID string) error {
	if tabID == "" {
		return ErrInvalidTabID
	}
	if _, err := strconv.ParseUint(tabID, 10, 64); err != nil {
		return ErrInvalidTabID
	}

	return nil
}

// addMember binds the user to rm, moves sockets they opened before joining onto the
// room channel and adds the participant. Caller holds s.mu.
func (s *service) addMember(rm *domain.Room, user User, tabID string) error {
	if !s.registry.BindUserToRoom(user.ID, rm) {
		current := rm.ID()
		if bound, err := s.registry.RoomOf(user.ID); err == nil {
			current = bound.ID()
		}

		return fmt.Errorf("room(%s): %w", current, ErrAlreadyMember)
	}

	conns := s.connRepo.SubscribeUser(user.ID, rm.ID())
	if !rm.AddMember(domain.NewParticipant(user.ID, user.DisplayName, tabID)) {
		s.connRepo.UnsubscribeUser(user.ID)
		s.registry.UnbindUser(user.ID)
		return fmt.Errorf("room(%s): %w", rm.ID(), ErrAlreadyMember)
	}

	if conns > 0 {
		_ = rm.SetConnected(user.ID, true)
	}

	return nil
}

func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	roomID := strings.TrimSpace(params.RoomID)
	if roomID == "" {
		return CreateRoomResponse{}, ErrInvalidRoomID
	}
	if strings.TrimSpace(params.MediaRef) == "" {
		return CreateRoomResponse{}, ErrInvalidMediaRef
	}
	if err := validateTabID(params.TabID); err != nil {
		return CreateRoomResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rm, err := s.registry.CreateRoom(roomID, params.MediaRef)
	if err != nil {
		if errors.Is(err, roomRepo.ErrAlreadyExists) {
			return CreateRoomResponse{}, fmt.Errorf("room(%s): %w", roomID, ErrRoomAlreadyExists)
		}

		s.logger.ErrorContext(ctx, "failed to create room", "room_id", roomID, "error", err)
		return CreateRoomResponse{}, err
	}

	if err := s.addMember(rm, params.User, params.TabID); err != nil {
		s.registry.DeleteRoom(roomID)
		return CreateRoomResponse{}, err
	}
	s.metrics.RoomsActive.Inc()

	s.logger.InfoContext(ctx, "room created", "room_id", roomID, "user_id", params.User.ID)
	return CreateRoomResponse{
		Room: rm.Snapshot(),
	}, nil
}

func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	roomID := strings.TrimSpace(params.RoomID)
	if roomID == "" {
		return JoinRoomResponse{}, ErrInvalidRoomID
	}
	if err := validateTabID(params.TabID); err != nil {
		return JoinRoomResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rm, err := s.registry.GetRoom(roomID)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("room(%s): %w", roomID, ErrRoomNotFound)
	}

	if err := s.addMember(rm, params.User, params.TabID); err != nil {
		return JoinRoomResponse{}, err
	}

	s.logger.InfoContext(ctx, "room joined", "room_id", roomID, "user_id", params.User.ID)
	return JoinRoomResponse{
		Room: rm.Snapshot(),
	}, nil
}

// LeaveRoom removes the caller from the room and deletes the room once it is empty.
func (s *service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (LeaveRoomResponse, error) {
	roomID := strings.TrimSpace(params.RoomID)
	if roomID == "" {
		return LeaveRoomResponse{}, ErrInvalidRoomID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rm, err := s.registry.GetRoom(roomID)
	if err != nil {
		return LeaveRoomResponse{}, fmt.Errorf("room(%s): %w", roomID, ErrRoomNotFound)
	}
	if !rm.IsMember(params.User.ID) {
		return LeaveRoomResponse{}, fmt.Errorf("room(%s): %w", roomID, ErrNotMember)
	}

	// the leaver gets no further room traffic, including the panel for their own removal
	s.connRepo.UnsubscribeUser(params.User.ID)
	rm.RemoveMember(params.User.ID)
	s.registry.UnbindUser(params.User.ID)

	if rm.Len() > 0 {
		s.logger.InfoContext(ctx, "room left", "room_id", roomID, "user_id", params.User.ID)
		return LeaveRoomResponse{}, nil
	}

	s.registry.DeleteRoom(roomID)
	s.metrics.RoomsActive.Dec()
	s.logger.InfoContext(ctx, "room deleted", "room_id", roomID)
	return LeaveRoomResponse{
		IsRoomDeleted: true,
	}, nil
}

func (s *service) GetProfile(ctx context.Context, user User) GetProfileResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm, err := s.registry.RoomOf(user.ID)
	if err != nil {
		return GetProfileResponse{}
	}

	view := rm.Snapshot()
	participant, ok := view.Members[user.ID]
	if !ok {
		return GetProfileResponse{Room: &view}
	}

	return GetProfileResponse{
		Participant: &participant,
		Room:        &view,
	}
}

func (s *service) GetRoomState(ctx context.Context, roomID string) (GetRoomStateResponse, error) {
	rm, err := s.registry.GetRoom(roomID)
	if err != nil {
		return GetRoomStateResponse{}, fmt.Errorf("room(%s): %w", roomID, ErrRoomNotFound)
	}

	return GetRoomStateResponse{
		Room:    rm.Snapshot(),
		Barrier: rm.Barrier(),
	}, nil
}

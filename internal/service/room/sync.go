package room

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lockstep/server/internal/domain"
	"github.com/lockstep/server/pkg/ctxlogger"
)

// Connect subscribes conn to the caller's room, if any, and marks the caller connected.
func (s *service) Connect(ctx context.Context, params *ConnectParams) (ConnectResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm, err := s.registry.RoomOf(params.User.ID)
	if err != nil {
		s.logger.DebugContext(ctx, "connected outside of a room", "user_id", params.User.ID)
		return ConnectResponse{}, nil
	}

	if err := s.connRepo.Subscribe(params.Conn, rm.ID()); err != nil {
		return ConnectResponse{}, fmt.Errorf("failed to subscribe connection: %w", err)
	}

	if err := rm.SetConnected(params.User.ID, true); err != nil {
		return ConnectResponse{}, err
	}
	if err := rm.SetPhase(params.User.ID, domain.PhaseIdle); err != nil {
		return ConnectResponse{}, err
	}

	return ConnectResponse{
		RoomID: rm.ID(),
	}, nil
}

// Disconnect marks the caller disconnected and rewinds their position. Membership and
// any barrier the caller is part of are left untouched.
func (s *service) Disconnect(ctx context.Context, params *DisconnectParams) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.connRepo.Unsubscribe(params.Conn); err != nil {
		s.logger.DebugContext(ctx, "failed to unsubscribe connection", "error", err)
	}

	rm, err := s.registry.RoomOf(params.User.ID)
	if err != nil {
		return
	}

	for _, fn := range []func() error{
		func() error { return rm.SetConnected(params.User.ID, false) },
		func() error { return rm.SetPhase(params.User.ID, domain.PhaseDisconnected) },
		func() error { return rm.SetPosition(params.User.ID, 0) },
	} {
		if err := fn(); err != nil {
			s.logger.WarnContext(ctx, "failed to update participant on disconnect", "room_id", rm.ID(), "error", err)
			return
		}
	}
}

func (s *service) UpdateParticipantInfo(ctx context.Context, params *UpdateParticipantInfoParams) error {
	var phase domain.Phase
	if params.Phase != nil {
		var err error
		phase, err = domain.ParsePhase(*params.Phase)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
	}
	if params.Position != nil && *params.Position < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, domain.ErrInvalidPosition)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rm, err := s.registry.RoomOf(params.User.ID)
	if err != nil {
		return ErrNotInRoom
	}

	if params.Position != nil {
		if err := rm.SetPosition(params.User.ID, *params.Position); err != nil {
			return err
		}
	}
	if params.Phase != nil {
		if err := rm.SetPhase(params.User.ID, phase); err != nil {
			return err
		}
	}
	if params.Connected != nil {
		if err := rm.SetConnected(params.User.ID, *params.Connected); err != nil {
			return err
		}
	}

	return nil
}

// SyncEvent drives the readiness barrier of the caller's room.
func (s *service) SyncEvent(ctx context.Context, params *SyncEventParams) (SyncEventResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm, err := s.registry.RoomOf(params.User.ID)
	if err != nil {
		return SyncEventResponse{}, ErrNotInRoom
	}
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", rm.ID()))

	switch strings.TrimSpace(params.Action) {
	case ActionStartBarrier, ActionInitNewSyncState:
		if params.Time == nil || *params.Time < 0 {
			return SyncEventResponse{}, fmt.Errorf("%w: time must be a non-negative number of seconds", ErrInvalidPayload)
		}

		rm.StartNewGeneration(*params.Time)
		s.metrics.BarriersStarted.Inc()
		s.logger.InfoContext(ctx, "barrier started", "target", *params.Time, "user_id", params.User.ID)
		return SyncEventResponse{Accepted: true}, nil
	case ActionReportReady, ActionUpdateSyncState:
		if params.State != nil && *params.State == 0 {
			s.logger.DebugContext(ctx, "not-ready report ignored", "user_id", params.User.ID)
			return SyncEventResponse{}, nil
		}

		accepted, satisfied := rm.ReportReady(params.User.ID)
		if !accepted {
			s.logger.DebugContext(ctx, "ready report ignored", "user_id", params.User.ID)
		}
		if satisfied {
			s.metrics.BarriersSatisfied.Inc()
			s.logger.InfoContext(ctx, "barrier satisfied")
		}

		return SyncEventResponse{
			Accepted:  accepted,
			Satisfied: satisfied,
		}, nil
	case ActionUpdateURL, ActionUpdateURLLegacy:
		if params.URL == nil || strings.TrimSpace(*params.URL) == "" {
			return SyncEventResponse{}, fmt.Errorf("%w: url must not be empty", ErrInvalidPayload)
		}

		if err := rm.ChangeMedia(params.User.ID, *params.URL); err != nil {
			return SyncEventResponse{}, err
		}

		s.logger.InfoContext(ctx, "media changed", "media_ref", *params.URL, "user_id", params.User.ID)
		return SyncEventResponse{Accepted: true}, nil
	default:
		return SyncEventResponse{}, fmt.Errorf("%w: %q", ErrUnknownAction, params.Action)
	}
}

package controller

import (
	"context"

	"github.com/lockstep/server/internal/service/auth"
	"github.com/lockstep/server/internal/service/room"
)

type contextKey int

const (
	identityCtxKey contextKey = iota
)

func (c controller) getIdentityFromCtx(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey).(auth.Identity)
	return identity, ok
}

func (c controller) getUserFromCtx(ctx context.Context) room.User {
	identity, _ := c.getIdentityFromCtx(ctx)
	return room.User{
		ID:          identity.UserID,
		DisplayName: identity.DisplayName,
	}
}

package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/lockstep/server/internal/repository/user"
	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc     *redis.Client
	logger *slog.Logger
}

func NewRepo(rc *redis.Client, logger *slog.Logger) *repo {
	return &repo{
		rc:     rc,
		logger: logger,
	}
}

func (r repo) getUserKey(email string) string {
	return "user:" + email
}

func (r repo) getRevokedTokenKey(tokenID string) string {
	return "revoked-token:" + tokenID
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}

func (r repo) SetUser(ctx context.Context, params *user.SetUserParams) error {
	r.logger.DebugContext(ctx, "called", "email", params.Email)
	userKey := r.getUserKey(params.Email)

	// the email field doubles as the uniqueness claim
	claimed, err := r.rc.HSetNX(ctx, userKey, "email", params.Email).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if !claimed {
		r.logger.DebugContext(ctx, "returned", "error", user.ErrUserAlreadyExists)
		return user.ErrUserAlreadyExists
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, userKey,
		"nickname", params.Nickname,
		"password_hash", params.PasswordHash,
		"created_at", params.CreatedAt,
	)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		r.rc.Del(ctx, userKey)
		return err
	}

	return nil
}

func (r repo) GetUser(ctx context.Context, email string) (user.User, error) {
	r.logger.DebugContext(ctx, "called", "email", email)
	var u user.User
	if err := r.rc.HGetAll(ctx, r.getUserKey(email)).Scan(&u); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return user.User{}, err
	}

	if u.Email == "" {
		r.logger.DebugContext(ctx, "returned", "error", user.ErrUserNotFound)
		return user.User{}, user.ErrUserNotFound
	}

	return u, nil
}

func (r repo) RevokeToken(ctx context.Context, params *user.RevokeTokenParams) error {
	r.logger.DebugContext(ctx, "called", "token_id", params.TokenID)
	ttl := time.Until(time.Unix(params.ExpiresAt, 0))
	if ttl <= 0 {
		return nil
	}

	return r.rc.Set(ctx, r.getRevokedTokenKey(params.TokenID), 1, ttl).Err()
}

func (r repo) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rc.Exists(ctx, r.getRevokedTokenKey(tokenID)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, err
	}

	return n > 0, nil
}

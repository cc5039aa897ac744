package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lockstep/server/internal/repository/user"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExists  = errors.New("account already registered")
)

type iUserRepo interface {
	SetUser(context.Context, *user.SetUserParams) error
	GetUser(context.Context, string) (user.User, error)
	RevokeToken(context.Context, *user.RevokeTokenParams) error
	IsTokenRevoked(context.Context, string) (bool, error)
}

type Config struct {
	Secret   string
	TokenTTL time.Duration
	HashCost int
}

type service struct {
	userRepo iUserRepo
	secret   []byte
	tokenTTL time.Duration
	hashCost int
	logger   *slog.Logger
}

func NewService(userRepo iUserRepo, cfg *Config, logger *slog.Logger) *service {
	hashCost := cfg.HashCost
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}

	return &service{
		userRepo: userRepo,
		secret:   []byte(cfg.Secret),
		tokenTTL: cfg.TokenTTL,
		hashCost: hashCost,
		logger:   logger,
	}
}

// Identity is the authenticated (user id, display name) pair the room core trusts.
type Identity struct {
	UserID      string `json:"email"`
	DisplayName string `json:"nickname"`
	TokenID     string `json:"-"`
	ExpiresAt   int64  `json:"-"`
}

func normEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type SignUpParams struct {
	Email    string
	Password string
	Nickname string
}

type SignUpResponse struct {
	Identity Identity
	Token    string
}

func (s service) SignUp(ctx context.Context, params *SignUpParams) (SignUpResponse, error) {
	email := normEmail(params.Email)

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.hashCost)
	if err != nil {
		return SignUpResponse{}, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.SetUser(ctx, &user.SetUserParams{
		Email:        email,
		Nickname:     params.Nickname,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().Unix(),
	}); err != nil {
		if errors.Is(err, user.ErrUserAlreadyExists) {
			return SignUpResponse{}, ErrUserAlreadyExists
		}

		return SignUpResponse{}, fmt.Errorf("failed to set user: %w", err)
	}

	token, identity, err := s.issueToken(email, params.Nickname)
	if err != nil {
		return SignUpResponse{}, err
	}

	s.logger.InfoContext(ctx, "user signed up", "user_id", email)
	return SignUpResponse{
		Identity: identity,
		Token:    token,
	}, nil
}

type SignInParams struct {
	Email    string
	Password string
}

type SignInResponse struct {
	Identity Identity
	Token    string
}

func (s service) SignIn(ctx context.Context, params *SignInParams) (SignInResponse, error) {
	u, err := s.userRepo.GetUser(ctx, normEmail(params.Email))
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return SignInResponse{}, ErrInvalidCredentials
		}

		return SignInResponse{}, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(params.Password)); err != nil {
		return SignInResponse{}, ErrInvalidCredentials
	}

	token, identity, err := s.issueToken(u.Email, u.Nickname)
	if err != nil {
		return SignInResponse{}, err
	}

	return SignInResponse{
		Identity: identity,
		Token:    token,
	}, nil
}

// SignOut denies the token until it would have expired anyway.
func (s service) SignOut(ctx context.Context, identity Identity) error {
	if err := s.userRepo.RevokeToken(ctx, &user.RevokeTokenParams{
		TokenID:   identity.TokenID,
		ExpiresAt: identity.ExpiresAt,
	}); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	return nil
}

func (s service) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}

	identity, err := s.parseToken(token)
	if err != nil {
		s.logger.DebugContext(ctx, "failed to parse token", "error", err)
		return Identity{}, ErrUnauthenticated
	}

	revoked, err := s.userRepo.IsTokenRevoked(ctx, identity.TokenID)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to check token: %w", err)
	}

	if revoked {
		return Identity{}, ErrUnauthenticated
	}

	return identity, nil
}

package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	userRedis "github.com/lockstep/server/internal/repository/user/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *service {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(userRedis.NewRepo(rc, logger), &Config{
		Secret:   "test-secret",
		TokenTTL: time.Hour,
		HashCost: bcrypt.MinCost,
	}, logger)
}

func TestSignUpSignIn(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	signUpResp, err := s.SignUp(ctx, &SignUpParams{
		Email:    " Alice@X.io ",
		Password: "correct horse",
		Nickname: "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@x.io", signUpResp.Identity.UserID)
	assert.Equal(t, "Alice", signUpResp.Identity.DisplayName)
	assert.NotEmpty(t, signUpResp.Token)

	_, err = s.SignUp(ctx, &SignUpParams{Email: "alice@x.io", Password: "x", Nickname: "Other"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	signInResp, err := s.SignIn(ctx, &SignInParams{Email: "ALICE@x.io", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "alice@x.io", signInResp.Identity.UserID)
	assert.NotEqual(t, signUpResp.Identity.TokenID, signInResp.Identity.TokenID)

	_, err = s.SignIn(ctx, &SignInParams{Email: "alice@x.io", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.SignIn(ctx, &SignInParams{Email: "bob@x.io", Password: "whatever"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	resp, err := s.SignUp(ctx, &SignUpParams{Email: "bob@x.io", Password: "pw", Nickname: "Bob"})
	require.NoError(t, err)

	identity, err := s.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.Identity, identity)

	_, err = s.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = s.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, s.SignOut(ctx, identity))
	_, err = s.Authenticate(ctx, resp.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated, "revoked token")
}

func TestAuthenticateRejectsForeignTokens(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        "t1",
		Subject:   "mallory@x.io",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = s.Authenticate(ctx, forged)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        "t2",
		Subject:   "mallory@x.io",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = s.Authenticate(ctx, expired)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

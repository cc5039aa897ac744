package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type claims struct {
	Nickname string `json:"nickname"`
	jwt.RegisteredClaims
}

func (s service) issueToken(email, nickname string) (string, Identity, error) {
	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)

	c := claims{
		Nickname: nickname,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", Identity{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return token, Identity{
		UserID:      email,
		DisplayName: nickname,
		TokenID:     c.ID,
		ExpiresAt:   expiresAt.Unix(),
	}, nil
}

func (s service) parseToken(tokenString string) (Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, err
	}

	if !token.Valid || c.Subject == "" || c.ID == "" {
		return Identity{}, errors.New("invalid token")
	}

	return Identity{
		UserID:      c.Subject,
		DisplayName: c.Nickname,
		TokenID:     c.ID,
		ExpiresAt:   c.ExpiresAt.Unix(),
	}, nil
}

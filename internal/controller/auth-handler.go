package controller

import (
	"net/http"
	"time"

	"github.com/lockstep/server/internal/service/auth"
	"github.com/lockstep/server/internal/service/room"
	"github.com/lockstep/server/pkg/rest"
	"github.com/lockstep/server/pkg/validator"
)

type signUpRequest struct {
	Account  string `json:"account" validate:"required,email,max=64"`
	Password string `json:"password" validate:"required,min=6,max=64"`
	Nickname string `json:"nickname" validate:"required,max=32"`
}

type signInRequest struct {
	Account  string `json:"account" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Account  string `json:"account"`
	Nickname string `json:"nickname"`
	Token    string `json:"token"`
}

func (c controller) setTokenCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		Secure:   c.cfg.SecureCookie,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c controller) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.fail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.fail(w, http.StatusBadRequest, validator.Summary(validationErrors))
		return
	}

	resp, err := c.authService.SignUp(r.Context(), &auth.SignUpParams{
		Email:    req.Account,
		Password: req.Password,
		Nickname: req.Nickname,
	})
	if err != nil {
		c.failWith(w, r, err)
		return
	}

	c.setTokenCookie(w, resp.Token, time.Unix(resp.Identity.ExpiresAt, 0))
	c.ok(w, "sign up succeeded", sessionResponse{
		Account:  resp.Identity.UserID,
		Nickname: resp.Identity.DisplayName,
		Token:    resp.Token,
	})
}

func (c controller) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.fail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.fail(w, http.StatusBadRequest, validator.Summary(validationErrors))
		return
	}

	resp, err := c.authService.SignIn(r.Context(), &auth.SignInParams{
		Email:    req.Account,
		Password: req.Password,
	})
	if err != nil {
		c.failWith(w, r, err)
		return
	}

	c.setTokenCookie(w, resp.Token, time.Unix(resp.Identity.ExpiresAt, 0))
	c.ok(w, "sign in succeeded", sessionResponse{
		Account:  resp.Identity.UserID,
		Nickname: resp.Identity.DisplayName,
		Token:    resp.Token,
	})
}

func (c controller) signOut(w http.ResponseWriter, r *http.Request) {
	identity, _ := c.getIdentityFromCtx(r.Context())

	if err := c.authService.SignOut(r.Context(), identity); err != nil {
		c.failWith(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   tokenCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	c.ok(w, "signed out", nil)
}

type profileResponse struct {
	Account     string `json:"account"`
	Nickname    string `json:"nickname"`
	Participant any    `json:"participant,omitempty"`
	Room        any    `json:"room,omitempty"`
}

func (c controller) profile(w http.ResponseWriter, r *http.Request) {
	identity, _ := c.getIdentityFromCtx(r.Context())

	resp := c.roomService.GetProfile(r.Context(), room.User{
		ID:          identity.UserID,
		DisplayName: identity.DisplayName,
	})

	out := profileResponse{
		Account:  identity.UserID,
		Nickname: identity.DisplayName,
	}
	if resp.Participant != nil {
		out.Participant = resp.Participant
	}
	if resp.Room != nil {
		out.Room = resp.Room
	}

	c.ok(w, "", out)
}

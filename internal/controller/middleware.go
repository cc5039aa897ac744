package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/lockstep/server/internal/service/auth"
	"github.com/lockstep/server/pkg/ctxlogger"
)

const tokenCookieName = "lockstep-token"

func (c controller) requestIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := ctxlogger.AppendCtx(r.Context(), slog.String("request_id", uuid.NewString()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c controller) requestLoggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		c.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"url", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"status", ww.Status(),
			"duration_us", time.Since(start).Microseconds(),
		)
	})
}

// tokenFromRequest looks at the Authorization header, then the session cookie, then the
// token query parameter which browsers need for websocket upgrades.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	if cookie, err := r.Cookie(tokenCookieName); err == nil {
		return cookie.Value
	}

	return r.URL.Query().Get("token")
}

func (c controller) authMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		identity, err := c.authService.Authenticate(ctx, tokenFromRequest(r))
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				c.fail(w, http.StatusUnauthorized, "please sign in first")
				return
			}

			c.logger.ErrorContext(ctx, "failed to authenticate", "error", err)
			c.fail(w, http.StatusInternalServerError, "internal error")
			return
		}

		ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", identity.UserID))
		ctx = context.WithValue(ctx, identityCtxKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

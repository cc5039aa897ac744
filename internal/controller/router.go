package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	r.Handle("/metrics", c.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Post("/sign-up", c.signUp)
		r.Post("/sign-in", c.signIn)

		r.Group(func(r chi.Router) {
			r.Use(c.authMw)

			r.Post("/sign-out", c.signOut)
			r.Get("/profile", c.profile)

			r.Route("/room", func(r chi.Router) {
				r.Post("/create", c.createRoom)
				r.Post("/join", c.joinRoom)
				r.Post("/leave", c.leaveRoom)
				r.Get("/{room-id}", c.roomState)
			})

			r.Get("/ws", c.serveWS)
		})
	})

	return r
}

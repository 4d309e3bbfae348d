package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/msgcat"
)

// SetupRoutes mounts the websocket endpoint and the read-only JSON queries.
func SetupRoutes(a *arena.Arena, ws http.Handler, messages *msgcat.Catalog, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handlers{arena: a, messages: messages, logger: logger.Named("http")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	if ws != nil {
		r.Handle("/ws", ws)
	}
	r.Get("/lobbies", h.listLobbies)
	r.Get("/lobbies/{id}", h.getLobby)
	r.Get("/games", h.listGames)
	r.Get("/games/{id}", h.getGame)
	r.Get("/players/{id}/status", h.playerStatus)
	r.Get("/players/{id}/history", h.playerHistory)
	return r
}

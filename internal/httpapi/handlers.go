package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

type handlers struct {
	arena    *arena.Arena
	messages *msgcat.Catalog
	logger   *zap.Logger
}

type errorBody struct {
	Code    arenadto.Code `json:"code"`
	Message string        `json:"message"`
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) listLobbies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.arena.ListLobbies())
}

func (h *handlers) getLobby(w http.ResponseWriter, r *http.Request) {
	res, err := h.arena.QueryLobby(arenadto.QueryLobbyRequest{LobbyID: chi.URLParam(r, "id")})
	h.respond(w, r, res, err)
}

func (h *handlers) listGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.arena.ListGames())
}

func (h *handlers) getGame(w http.ResponseWriter, r *http.Request) {
	res, err := h.arena.QueryGame(arenadto.QueryGameRequest{GameID: chi.URLParam(r, "id")})
	h.respond(w, r, res, err)
}

func (h *handlers) playerStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.arena.GetStatus(arenadto.StatusRequest{PlayerID: chi.URLParam(r, "id")})
	h.respond(w, r, res, err)
}

func (h *handlers) playerHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	res, err := h.arena.History(r.Context(), arenadto.HistoryRequest{PlayerID: chi.URLParam(r, "id"), Limit: limit})
	h.respond(w, r, res, err)
}

func (h *handlers) respond(w http.ResponseWriter, r *http.Request, body any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, body)
		return
	}
	code := arenadto.CodeOf(err)
	if !arenadto.IsDomain(err) {
		h.logger.Error("http_query_error", zap.String("path", r.URL.Path), zap.Error(err))
	}
	msg := string(code)
	if h.messages != nil {
		msg = h.messages.ErrorText(err)
	}
	writeJSON(w, statusOf(code), errorBody{Code: code, Message: msg})
}

func statusOf(code arenadto.Code) int {
	switch code {
	case arenadto.CodeNotFound:
		return http.StatusNotFound
	case arenadto.CodeInvalidRequest:
		return http.StatusBadRequest
	case arenadto.CodeUnauthorized:
		return http.StatusForbidden
	case arenadto.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusConflict
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

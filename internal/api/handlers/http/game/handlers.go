package game

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jcuenca6779/urbandrive/internal/domain"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type GameReader interface {
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	Profile(ctx context.Context, userID int64) (domain.UserProfile, error)
}

type Handler struct {
	logger *slog.Logger
	Game   GameReader
}

func NewHandler(logger *slog.Logger, game GameReader) *Handler {
	return &Handler{
		logger: logger,
		Game:   game,
	}
}

func (h *Handler) GameLeaderboard(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("GameLeaderboard", slog.String("query", r.URL.RawQuery), slog.String("remote", r.RemoteAddr))

	limit := parseInt(r.URL.Query().Get("limit"), 10)

	entries, err := h.Game.Leaderboard(r.Context(), limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

func (h *Handler) GameProfile(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("GameProfile", slog.String("remote", r.RemoteAddr))

	idStr := chi.URLParam(r, "user_id")
	userID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || userID <= 0 {
		l.Warn("invalid user id", slog.String("user_id", idStr))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}

	profile, err := h.Game.Profile(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, profile)
}

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"upholdAPI/internal/leaderboard"
	"upholdAPI/middleware"
	"upholdAPI/services"
)

type LeaderboardHandler struct {
	leaderboardService *services.LeaderboardService
}

func NewLeaderboardHandler(leaderboardService *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboardService: leaderboardService,
	}
}

func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if _, ok := middleware.GetUserID(ctx); !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	key := leaderboard.Key{
		Type:   leaderboard.TypeGlobal,
		Metric: leaderboard.MetricPoints,
		Period: leaderboard.PeriodAllTime,
	}
	if v := r.URL.Query().Get("type"); v != "" {
		key.Type = leaderboard.Type(v)
	}
	if v := r.URL.Query().Get("metric"); v != "" {
		key.Metric = leaderboard.Metric(v)
	}
	if v := r.URL.Query().Get("period"); v != "" {
		key.Period = leaderboard.Period(v)
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	snapshot, err := h.leaderboardService.GetLeaderboard(ctx, key, limit)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, snapshot)
}

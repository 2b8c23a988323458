package handlers

import (
	"context"
	"net/http"
	"time"

	"upholdAPI/internal/progression"
	"upholdAPI/middleware"
	"upholdAPI/services"
)

type ProgressionHandler struct {
	progressionService *services.ProgressionService
	achievementService *services.AchievementService
}

func NewProgressionHandler(progressionService *services.ProgressionService, achievementService *services.AchievementService) *ProgressionHandler {
	return &ProgressionHandler{
		progressionService: progressionService,
		achievementService: achievementService,
	}
}

type progressionSummary struct {
	*progression.UserProgression
	AchievementsUnlocked int `json:"achievements_unlocked"`
}

func (h *ProgressionHandler) GetProgression(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	p, err := h.progressionService.GetProgression(ctx, userID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	unlocked, err := h.achievementService.CountUnlocked(ctx, userID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, progressionSummary{
		UserProgression:      p,
		AchievementsUnlocked: unlocked,
	})
}

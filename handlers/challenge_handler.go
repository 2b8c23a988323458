package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"upholdAPI/internal/challenge"
	"upholdAPI/internal/reward"
	"upholdAPI/middleware"
	"upholdAPI/services"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
}

func NewChallengeHandler(challengeService *services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
	}
}

type updateProgressRequest struct {
	NewValue  float64    `json:"new_value"`
	Stage     int        `json:"stage"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type updateProgressResponse struct {
	Participation *challenge.Participation `json:"participation"`
	Grants        []*reward.Grant          `json:"grants,omitempty"`
}

func (h *ChallengeHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	participationID, err := uuid.Parse(mux.Vars(r)["participationId"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid participation id")
		return
	}

	var req updateProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("UpdateProgress Handler: Failed to decode request body: %v", err)
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	at := time.Now()
	if req.Timestamp != nil {
		at = *req.Timestamp
	}

	participation, grants, err := h.challengeService.UpdateChallengeProgress(ctx, userID, participationID, challenge.ProgressUpdate{
		ParticipationID: participationID,
		NewValue:        req.NewValue,
		Stage:           req.Stage,
		Timestamp:       at,
	})
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, updateProgressResponse{
		Participation: participation,
		Grants:        grants,
	})
}

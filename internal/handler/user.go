package handler

import (
	"errors"
	"net/http"

	"github.com/commitmentparties/engine/internal/repository"
	"github.com/commitmentparties/engine/internal/service"
)

type UserHandler struct {
	pools *service.PoolService
}

func NewUserHandler(pools *service.PoolService) *UserHandler {
	return &UserHandler{pools: pools}
}

// Stats returns a wallet's lifetime challenge record.
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet")

	user, err := h.pools.Stats(wallet)
	if errors.Is(err, repository.ErrUserNotFound) {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"wallet":          user.WalletAddress,
		"total_games":     user.TotalGames,
		"games_completed": user.GamesCompleted,
		"total_earned":    user.TotalEarned,
		"streak_count":    user.StreakCount,
		"github_verified": user.VerifiedGitHubUsername.Valid,
	})
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/commitmentparties/engine/internal/model"
	"github.com/commitmentparties/engine/internal/repository"
	"github.com/commitmentparties/engine/internal/service"
)

type PoolHandler struct {
	pools        *service.PoolService
	poolRepo     repository.PoolRepository
	participants repository.ParticipantRepository
}

func NewPoolHandler(
	pools *service.PoolService,
	poolRepo repository.PoolRepository,
	participants repository.ParticipantRepository,
) *PoolHandler {
	return &PoolHandler{pools: pools, poolRepo: poolRepo, participants: participants}
}

type registerPoolRequest struct {
	PoolID                 int64          `json:"pool_id"`
	PoolPubkey             string         `json:"pool_pubkey"`
	CreatorWallet          string         `json:"creator_wallet"`
	Name                   string         `json:"name"`
	Description            string         `json:"description"`
	GoalSpec               model.GoalSpec `json:"goal_spec"`
	StakeAmount            uint64         `json:"stake_amount"`
	DurationDays           int            `json:"duration_days"`
	MinParticipants        int            `json:"min_participants"`
	MaxParticipants        int            `json:"max_participants"`
	DistributionMode       string         `json:"distribution_mode"`
	WinnerPercent          int            `json:"winner_percent"`
	CharityAddress         string         `json:"charity_address"`
	RecruitmentHours       int            `json:"recruitment_hours"`
	RequireMinParticipants bool           `json:"require_min_participants"`
	IsPublic               bool           `json:"is_public"`
}

func (h *PoolHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pool := &model.Pool{
		PoolID:                 req.PoolID,
		PoolPubkey:             req.PoolPubkey,
		CreatorWallet:          req.CreatorWallet,
		Name:                   req.Name,
		Description:            req.Description,
		GoalSpec:               req.GoalSpec,
		StakeAmount:            req.StakeAmount,
		DurationDays:           req.DurationDays,
		MinParticipants:        req.MinParticipants,
		MaxParticipants:        req.MaxParticipants,
		DistributionMode:       req.DistributionMode,
		WinnerPercent:          req.WinnerPercent,
		CharityAddress:         req.CharityAddress,
		RecruitmentHours:       req.RecruitmentHours,
		RequireMinParticipants: req.RequireMinParticipants,
		IsPublic:               req.IsPublic,
	}
	if req.RecruitmentHours > 0 {
		deadline := time.Now().Add(time.Duration(req.RecruitmentHours) * time.Hour).Unix()
		pool.ScheduledStartTime.Int64 = deadline
		pool.ScheduledStartTime.Valid = true
	}

	if err := h.pools.Register(pool); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"pool_id": pool.PoolID})
}

func (h *PoolHandler) Show(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDFromPath(w, r)
	if !ok {
		return
	}

	pool, err := h.poolRepo.ByID(poolID)
	if errors.Is(err, repository.ErrPoolNotFound) {
		respondError(w, http.StatusNotFound, "pool not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	participants, err := h.participants.ByPool(poolID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"pool_id":           pool.PoolID,
		"name":              pool.Name,
		"status":            pool.Status,
		"goal_kind":         pool.GoalKind,
		"stake_amount":      pool.StakeAmount,
		"duration_days":     pool.DurationDays,
		"participant_count": pool.ParticipantCount,
		"total_staked":      pool.TotalStaked,
		"distribution_mode": pool.DistributionMode,
		"start_timestamp":   pool.StartTimestamp,
		"end_timestamp":     pool.EndTimestamp,
		"participants":      participantSummaries(participants),
	})
}

type joinRequest struct {
	Wallet     string `json:"wallet"`
	InviteCode string `json:"invite_code,omitempty"`
}

func (h *PoolHandler) Join(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDFromPath(w, r)
	if !ok {
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	participant, err := h.pools.Join(poolID, req.Wallet, req.InviteCode)
	switch {
	case err == nil:
		respondJSON(w, http.StatusCreated, map[string]any{
			"pool_id": participant.PoolID,
			"wallet":  participant.WalletAddress,
			"status":  participant.Status,
		})
	case errors.Is(err, repository.ErrPoolNotFound):
		respondError(w, http.StatusNotFound, "pool not found")
	case errors.Is(err, service.ErrPoolFull),
		errors.Is(err, service.ErrAlreadyJoined),
		errors.Is(err, service.ErrInviteRequired),
		errors.Is(err, service.ErrPoolNotOpen),
		errors.Is(err, repository.ErrInviteNotFound),
		errors.Is(err, repository.ErrInviteUsed):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusBadRequest, err.Error())
	}
}

type forfeitRequest struct {
	Wallet string `json:"wallet"`
}

func (h *PoolHandler) Forfeit(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDFromPath(w, r)
	if !ok {
		return
	}

	var req forfeitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.pools.Forfeit(poolID, req.Wallet)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"status": model.ParticipantStatusForfeit})
	case errors.Is(err, repository.ErrPoolNotFound):
		respondError(w, http.StatusNotFound, "pool not found")
	case errors.Is(err, service.ErrCannotForfeit):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "forfeit failed")
	}
}

type inviteRequest struct {
	Wallet string `json:"wallet"`
}

func (h *PoolHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDFromPath(w, r)
	if !ok {
		return
	}

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	invite, err := h.pools.CreateInvite(poolID, req.Wallet)
	switch {
	case err == nil:
		respondJSON(w, http.StatusCreated, map[string]string{"code": invite.Code})
	case errors.Is(err, repository.ErrPoolNotFound):
		respondError(w, http.StatusNotFound, "pool not found")
	default:
		respondError(w, http.StatusForbidden, err.Error())
	}
}

type checkNowRequest struct {
	Wallet string `json:"wallet"`
}

func (h *PoolHandler) CheckNow(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDFromPath(w, r)
	if !ok {
		return
	}

	var req checkNowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.pools.CheckNow(r.Context(), poolID, req.Wallet, time.Now())
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]any{
			"verdict": result.Verdict.String(),
			"details": result.Details,
		})
	case errors.Is(err, repository.ErrPoolNotFound),
		errors.Is(err, repository.ErrParticipantNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrPoolNotOpen),
		errors.Is(err, service.ErrNotParticipant):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusBadGateway, err.Error())
	}
}

func poolIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	poolID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pool id")
		return 0, false
	}
	return poolID, true
}

func participantSummaries(participants []*model.Participant) []map[string]any {
	out := make([]map[string]any, len(participants))
	for i, p := range participants {
		out[i] = map[string]any{
			"wallet":        p.WalletAddress,
			"status":        p.Status,
			"days_verified": p.DaysVerified,
		}
	}
	return out
}

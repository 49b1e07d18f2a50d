package handler

import (
	"errors"
	"net/http"

	"github.com/commitmentparties/engine/internal/service"
	"github.com/commitmentparties/engine/internal/validation"
)

type AuthHandler struct {
	identity *service.IdentityService
}

func NewAuthHandler(identity *service.IdentityService) *AuthHandler {
	return &AuthHandler{identity: identity}
}

// Begin starts the GitHub OAuth flow for a wallet and redirects to GitHub.
func (h *AuthHandler) Begin(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if err := validation.WalletAddress(wallet); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	http.Redirect(w, r, h.identity.BeginOAuth(wallet), http.StatusTemporaryRedirect)
}

// Callback completes the OAuth flow and pins the GitHub login to the wallet.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		respondError(w, http.StatusBadRequest, "state and code are required")
		return
	}

	wallet, username, err := h.identity.CompleteOAuth(r.Context(), state, code)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{
			"wallet":          wallet,
			"github_username": username,
		})
	case errors.Is(err, service.ErrInvalidOAuthState):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusBadGateway, "github verification failed")
	}
}

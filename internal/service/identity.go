package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"

	"github.com/commitmentparties/engine/internal/cache"
	"github.com/commitmentparties/engine/internal/github"
	"github.com/commitmentparties/engine/internal/model"
	"github.com/commitmentparties/engine/internal/repository"
)

var ErrInvalidOAuthState = errors.New("unknown or expired oauth state")

// IdentityService links a wallet to a GitHub account via the OAuth code
// flow. The commit adapter only trusts usernames verified here; a
// self-reported username would let anyone pass on a stranger's commits.
type IdentityService struct {
	users  repository.UserRepository
	config *oauth2.Config
	states *cache.TTL[string, string] // state token -> wallet
	log    *slog.Logger
}

func NewIdentityService(
	users repository.UserRepository,
	clientID, clientSecret, redirectURL string,
	stateTTL time.Duration,
	log *slog.Logger,
) *IdentityService {
	return &IdentityService{
		users: users,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user"},
			Endpoint:     oauthgithub.Endpoint,
		},
		states: cache.NewTTL[string, string](stateTTL),
		log:    log,
	}
}

// BeginOAuth issues a one-shot state token bound to the wallet and returns
// the GitHub authorization URL to redirect the user to.
func (s *IdentityService) BeginOAuth(wallet string) string {
	state := uuid.New().String()
	s.states.Set(state, wallet)
	return s.config.AuthCodeURL(state)
}

// CompleteOAuth consumes the callback: validates the state, exchanges the
// code, resolves the GitHub login, and pins it to the wallet.
func (s *IdentityService) CompleteOAuth(ctx context.Context, state, code string) (wallet, username string, err error) {
	wallet, ok := s.states.Take(state)
	if !ok {
		return "", "", ErrInvalidOAuthState
	}

	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return "", "", fmt.Errorf("oauth exchange: %w", err)
	}

	username, err = github.UserLogin(ctx, s.config.Client(ctx, token))
	if err != nil {
		return "", "", fmt.Errorf("resolve github login: %w", err)
	}

	if err := s.setVerifiedUsername(wallet, username); err != nil {
		return "", "", err
	}

	s.log.Info("github identity verified", "wallet", wallet, "github_username", username)
	return wallet, username, nil
}

func (s *IdentityService) setVerifiedUsername(wallet, username string) error {
	err := s.users.SetVerifiedGitHubUsername(wallet, username)
	if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}

	now := time.Now()
	user := &model.User{
		WalletAddress:          wallet,
		VerifiedGitHubUsername: sql.NullString{String: username, Valid: true},
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	return s.users.Create(user)
}

package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/commitmentparties/engine/internal/chain"
	"github.com/commitmentparties/engine/internal/classify"
	"github.com/commitmentparties/engine/internal/config"
	"github.com/commitmentparties/engine/internal/db"
	"github.com/commitmentparties/engine/internal/github"
	"github.com/commitmentparties/engine/internal/logger"
	"github.com/commitmentparties/engine/internal/model"
	"github.com/commitmentparties/engine/internal/monitor"
	"github.com/commitmentparties/engine/internal/proof"
	"github.com/commitmentparties/engine/internal/repository"
	"github.com/commitmentparties/engine/internal/service"
	"github.com/commitmentparties/engine/internal/storage"
)

type App struct {
	Cfg *config.Config
	DB  *sqlx.DB

	PoolRepo        repository.PoolRepository
	ParticipantRepo repository.ParticipantRepository

	LedgerService     *service.LedgerService
	LifecycleService  *service.LifecycleService
	SettlementService *service.SettlementService
	PoolService       *service.PoolService
	CheckinService    *service.CheckinService
	IdentityService   *service.IdentityService

	Loops []*monitor.Loop
}

func New(cfg *config.Config) (*App, error) {
	log := logger.Default()

	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Repositories
	poolRepository := repository.NewPoolRepository(database)
	participantRepository := repository.NewParticipantRepository(database)
	verificationRepository := repository.NewVerificationRepository(database)
	payoutRepository := repository.NewPayoutRepository(database)
	checkinRepository := repository.NewCheckinRepository(database)
	userRepository := repository.NewUserRepository(database)
	inviteRepository := repository.NewInviteRepository(database)

	// Solana
	chainClient, err := chain.NewClient(cfg.SolanaRPCURL, cfg.ProgramID,
		cfg.AgentPrivateKey, cfg.AgentKeypairPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chain client: %v", err)
	}

	// Storage
	screenshotStorage, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %v", err)
	}

	// Classifiers (optional in development)
	var commitJudge proof.CommitJudge
	var screenshotReader service.ScreenshotReader
	if cfg.GeminiAPIKey != "" {
		classifier, err := classify.NewClient(context.Background(),
			cfg.GeminiAPIKey, cfg.CommitModel, cfg.ScreenTimeModel)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize classifier: %v", err)
		}
		commitJudge = classifier
		screenshotReader = classifier
	} else {
		log.Warn("no GEMINI_API_KEY set, commit quality checks and screenshot verification disabled")
	}

	// Proof adapters
	githubClient := github.NewClient(cfg.GitHubToken)
	adapters := map[model.GoalKind]proof.Adapter{
		model.GoalGitHubCommits: proof.NewCommitsAdapter(githubClient, commitJudge, userRepository, log),
		model.GoalScreenTime:    proof.NewScreenTimeAdapter(checkinRepository),
		model.GoalHodlToken:     proof.NewBalanceAdapter(chainClient),
		model.GoalDailyTrade:    proof.NewActivityAdapter(chainClient),
	}

	// Services
	ledgerService := service.NewLedgerService(verificationRepository, participantRepository)
	lifecycleService := service.NewLifecycleService(poolRepository, participantRepository,
		chainClient, cfg.RefundMaxAttempts, log)
	settlementService := service.NewSettlementService(poolRepository, participantRepository,
		payoutRepository, userRepository, ledgerService, chainClient, log)
	poolService := service.NewPoolService(poolRepository, participantRepository,
		inviteRepository, userRepository, ledgerService, adapters, chainClient, log)
	checkinService := service.NewCheckinService(poolRepository, participantRepository,
		checkinRepository, screenshotStorage, screenshotReader, log)
	identityService := service.NewIdentityService(userRepository,
		cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.OAuthRedirectURL, cfg.OAuthStateTTL, log)

	// Monitor loops: one verifier per challenge family, plus lifecycle and
	// settlement timers.
	lifestyleVerifier := monitor.NewVerifier(poolRepository, participantRepository,
		ledgerService, chainClient, adapters,
		[]model.GoalKind{model.GoalGitHubCommits, model.GoalScreenTime},
		cfg.GracePeriod, cfg.ExternalCallTimeout, log)
	hodlVerifier := monitor.NewVerifier(poolRepository, participantRepository,
		ledgerService, chainClient, adapters,
		[]model.GoalKind{model.GoalHodlToken},
		0, cfg.ExternalCallTimeout, log)
	tradeVerifier := monitor.NewVerifier(poolRepository, participantRepository,
		ledgerService, chainClient, adapters,
		[]model.GoalKind{model.GoalDailyTrade},
		0, cfg.ExternalCallTimeout, log)

	loops := []*monitor.Loop{
		monitor.NewLoop("lifestyle", cfg.LifestyleCheckInterval, lifestyleVerifier.Tick, log),
		monitor.NewLoop("hodl", cfg.HodlCheckInterval, hodlVerifier.Tick, log),
		monitor.NewLoop("trade", cfg.TradeCheckInterval, tradeVerifier.Tick, log),
		monitor.NewLoop("lifecycle", cfg.LifecycleCheckInterval, lifecycleService.Tick, log),
		monitor.NewLoop("settlement", cfg.DistributionCheckInterval, settlementService.Tick, log),
	}

	return &App{
		Cfg:               cfg,
		DB:                database,
		PoolRepo:          poolRepository,
		ParticipantRepo:   participantRepository,
		LedgerService:     ledgerService,
		LifecycleService:  lifecycleService,
		SettlementService: settlementService,
		PoolService:       poolService,
		CheckinService:    checkinService,
		IdentityService:   identityService,
		Loops:             loops,
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

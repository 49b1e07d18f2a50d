package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Solana
	SolanaRPCURL     string
	ProgramID        string
	AgentPrivateKey  string // base58-encoded; takes precedence over keypair path
	AgentKeypairPath string

	// Verification classifiers (Gemini)
	GeminiAPIKey    string
	CommitModel     string
	ScreenTimeModel string

	// GitHub
	GitHubToken        string // optional, raises API rate limits
	GitHubClientID     string
	GitHubClientSecret string
	OAuthRedirectURL   string
	OAuthStateTTL      time.Duration

	// Monitoring intervals per challenge family
	LifestyleCheckInterval    time.Duration
	HodlCheckInterval         time.Duration
	TradeCheckInterval        time.Duration
	LifecycleCheckInterval    time.Duration
	DistributionCheckInterval time.Duration

	// Grace window after a challenge day ends (lifestyle loop only)
	GracePeriod time.Duration

	// External call budget (proof sources, RPC)
	ExternalCallTimeout time.Duration

	// Refund retry bound before an expiring pool is declared stuck
	RefundMaxAttempts int

	// Observability (optional)
	SentryDSN string

	// Storage for check-in screenshots (S3-compatible)
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string        // Optional: for S3-compatible services (MinIO, R2, etc.)
	S3Presign   time.Duration // Expiry for presigned screenshot URLs
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "commitment-agent"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		Port:    envString("PORT", "8080"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/agent.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		// Solana
		SolanaRPCURL:     envString("SOLANA_RPC_URL", "https://api.devnet.solana.com"),
		ProgramID:        envRequired("PROGRAM_ID"),
		AgentPrivateKey:  envString("AGENT_PRIVATE_KEY", ""),
		AgentKeypairPath: envString("AGENT_KEYPAIR_PATH", ""),

		// Classifiers (optional in development: commit quality checks are
		// skipped and screenshot verification is unavailable without a key)
		GeminiAPIKey:    envString("GEMINI_API_KEY", ""),
		CommitModel:     envString("COMMIT_MODEL", "gemini-2.0-flash"),
		ScreenTimeModel: envString("SCREEN_TIME_MODEL", "gemini-2.0-flash"),

		// GitHub
		GitHubToken:        envString("GITHUB_TOKEN", ""),
		GitHubClientID:     envString("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: envString("GITHUB_CLIENT_SECRET", ""),
		OAuthRedirectURL:   envString("OAUTH_REDIRECT_URL", ""),
		OAuthStateTTL:      envDuration("OAUTH_STATE_TTL", 10*time.Minute),

		// Intervals
		LifestyleCheckInterval:    envDuration("LIFESTYLE_CHECK_INTERVAL", 5*time.Minute),
		HodlCheckInterval:         envDuration("HODL_CHECK_INTERVAL", 1*time.Hour),
		TradeCheckInterval:        envDuration("TRADE_CHECK_INTERVAL", 1*time.Hour),
		LifecycleCheckInterval:    envDuration("LIFECYCLE_CHECK_INTERVAL", 1*time.Minute),
		DistributionCheckInterval: envDuration("DISTRIBUTION_CHECK_INTERVAL", 1*time.Hour),

		GracePeriod:         envDuration("GRACE_PERIOD", 30*time.Minute),
		ExternalCallTimeout: envDuration("EXTERNAL_CALL_TIMEOUT", 30*time.Second),
		RefundMaxAttempts:   envInt("REFUND_MAX_ATTEMPTS", 5),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage
		S3Region:    envString("S3_REGION", ""),
		S3Bucket:    envString("S3_BUCKET", ""),
		S3AccessKey: envString("S3_ACCESS_KEY", ""),
		S3SecretKey: envString("S3_SECRET_KEY", ""),
		S3Endpoint:  envString("S3_ENDPOINT", ""),
		S3Presign:   envDuration("S3_PRESIGN_EXPIRY", 24*time.Hour),
	}

	validate(cfg)

	return cfg
}

// validate enforces relationships between settings that a single env helper
// cannot check. The lifestyle cadence must be strictly finer than the grace
// window or a late-arriving proof could be missed between ticks.
func validate(cfg *Config) {
	if cfg.LifestyleCheckInterval >= cfg.GracePeriod {
		slog.Error("config LIFESTYLE_CHECK_INTERVAL must be shorter than GRACE_PERIOD",
			"interval", cfg.LifestyleCheckInterval, "grace", cfg.GracePeriod)
		os.Exit(1)
	}
	if cfg.RefundMaxAttempts < 1 {
		slog.Error("config REFUND_MAX_ATTEMPTS must be at least 1", "value", cfg.RefundMaxAttempts)
		os.Exit(1)
	}
	if cfg.IsProduction() {
		if cfg.AgentPrivateKey == "" && cfg.AgentKeypairPath == "" {
			slog.Error("production deployment requires AGENT_PRIVATE_KEY or AGENT_KEYPAIR_PATH")
			os.Exit(1)
		}
		if cfg.GeminiAPIKey == "" {
			slog.Error("production deployment requires GEMINI_API_KEY",
				"hint", "set APP_ENV=development to run without classifiers")
			os.Exit(1)
		}
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

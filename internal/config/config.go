package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/constants"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/ledger"
	"github.com/shopspring/decimal"
)

type Config struct {
	// RPC settings
	RPCUrl       string
	Commitment   string
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	RPCRateLimit float64

	// Ledger
	TokenMint          string
	ContestReceiver    string
	TreasuryPrivateKey string
	ConfirmTimeout     time.Duration

	// Airdrop guard
	AirdropLockTTL      time.Duration
	AirdropLockWait     time.Duration
	PendingSignatureTTL time.Duration

	// Rewards
	AirdropAmount decimal.Decimal
	ContestFee    decimal.Decimal
	TaskReward    decimal.Decimal
	TaskXP        int64

	// Sessions
	BalanceRefreshInterval time.Duration
	AvatarBaseURL          string

	// Redis settings, empty address keeps everything in memory
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ClickHouse settings, empty address disables the event sink
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// HTTP API
	APIAddr          string
	APIKey           string
	DevMode          bool
	AirdropRateLimit float64

	// Quiz backend
	QuizAPIURL string
	QuizAPIKey string

	LogLevel string
}

func Load() *Config {
	return &Config{
		// RPC
		RPCUrl:       getEnv("SOLANA_RPC_URL", constants.DefaultRPCURL),
		Commitment:   getEnv("COMMITMENT", constants.DefaultCommitment),
		HTTPTimeout:  getDurationEnv("RPC_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 3),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", time.Second),
		RPCRateLimit: getFloatEnv("RPC_RATE_LIMIT", 10),

		// Ledger
		TokenMint:          getEnv("TOKEN_MINT_ADDRESS", constants.DefaultTokenMint),
		ContestReceiver:    getEnv("CONTEST_RECEIVER_ADDRESS", constants.DefaultContestReceiver),
		TreasuryPrivateKey: getEnv("TREASURY_PRIVATE_KEY", ""),
		ConfirmTimeout:     getDurationEnv("CONFIRM_TIMEOUT", constants.DefaultConfirmTimeout),

		// Airdrop guard
		AirdropLockTTL:      getDurationEnv("AIRDROP_LOCK_TTL", constants.AirdropLockTTL),
		AirdropLockWait:     getDurationEnv("AIRDROP_LOCK_WAIT", constants.DefaultAirdropLockWait),
		PendingSignatureTTL: getDurationEnv("PENDING_SIGNATURE_TTL", constants.PendingSignatureTTL),

		// Rewards
		AirdropAmount: getDecimalEnv("AIRDROP_AMOUNT", constants.DefaultAirdropAmount),
		ContestFee:    getDecimalEnv("CONTEST_FEE", constants.DefaultContestFee),
		TaskReward:    getDecimalEnv("TASK_REWARD", constants.DefaultTaskReward),
		TaskXP:        int64(getIntEnv("TASK_XP", constants.DefaultTaskXP)),

		// Sessions
		BalanceRefreshInterval: getDurationEnv("BALANCE_REFRESH_INTERVAL", constants.DefaultBalanceRefresh),
		AvatarBaseURL:          getEnv("AVATAR_BASE_URL", constants.DefaultAvatarBaseURL),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "rewards"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// HTTP API
		APIAddr:          getEnv("API_ADDR", ":8090"),
		APIKey:           getEnv("API_KEY", ""),
		DevMode:          getBoolEnv("DEV_MODE", false),
		AirdropRateLimit: getFloatEnv("AIRDROP_RATE_LIMIT", 0.5),

		// Quiz
		QuizAPIURL: getEnv("QUIZ_API_URL", ""),
		QuizAPIKey: getEnv("QUIZ_API_KEY", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	errs := []error{c.ValidateServices()}
	if !c.DevMode && c.APIKey == "" {
		errs = append(errs, errors.New("API_KEY: required unless DEV_MODE is set"))
	}
	return errors.Join(errs...)
}

// ValidateServices checks the ledger, reward and session settings only.
// Binaries without an HTTP listener use it.
func (c *Config) ValidateServices() error {
	var errs []error

	if _, err := ledger.ParseAddress(c.TokenMint); err != nil {
		errs = append(errs, fmt.Errorf("TOKEN_MINT_ADDRESS: %w", err))
	}
	if _, err := ledger.ParseAddress(c.ContestReceiver); err != nil {
		errs = append(errs, fmt.Errorf("CONTEST_RECEIVER_ADDRESS: %w", err))
	}
	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		errs = append(errs, fmt.Errorf("COMMITMENT: unsupported level %q", c.Commitment))
	}
	if c.AirdropAmount.Sign() <= 0 {
		errs = append(errs, errors.New("AIRDROP_AMOUNT: must be positive"))
	}
	if c.ContestFee.Sign() <= 0 {
		errs = append(errs, errors.New("CONTEST_FEE: must be positive"))
	}
	if c.TaskReward.Sign() < 0 || c.TaskXP < 0 {
		errs = append(errs, errors.New("TASK_REWARD and TASK_XP: must not be negative"))
	}
	if c.ConfirmTimeout <= 0 {
		errs = append(errs, errors.New("CONFIRM_TIMEOUT: must be positive"))
	}
	if c.BalanceRefreshInterval <= 0 {
		errs = append(errs, errors.New("BALANCE_REFRESH_INTERVAL: must be positive"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("MAX_RETRIES: must not be negative"))
	}
	if c.AirdropLockTTL < constants.MinAirdropLockTTL {
		errs = append(errs, fmt.Errorf("AIRDROP_LOCK_TTL: must be at least %s", constants.MinAirdropLockTTL))
	}
	if c.AirdropLockWait <= 0 {
		errs = append(errs, errors.New("AIRDROP_LOCK_WAIT: must be positive"))
	}
	if c.PendingSignatureTTL < constants.BlockhashLifetime {
		errs = append(errs, fmt.Errorf("PENDING_SIGNATURE_TTL: must be at least the blockhash lifetime (%s)", constants.BlockhashLifetime))
	}

	return errors.Join(errs...)
}

// RPCBudget is the longest a single RPC call can take with every retry and
// backoff used up.
func (c *Config) RPCBudget() time.Duration {
	retries := min(max(c.MaxRetries, 0), 16)
	attempts := time.Duration(retries + 1)
	backoff := c.RetryBackoff * time.Duration((1<<retries)-1)
	return c.HTTPTimeout*attempts + backoff
}

// SubmitTimeout bounds one send plus the confirmation wait.
func (c *Config) SubmitTimeout() time.Duration {
	return c.RPCBudget() + c.ConfirmTimeout
}

// AirdropTimeout bounds a full dispense: waiting for the owner's lock, one
// slow RPC round while preparing, then the send and confirmation.
func (c *Config) AirdropTimeout() time.Duration {
	return c.AirdropLockWait + c.RPCBudget() + c.SubmitTimeout()
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getDecimalEnv falls back to defaultVal when the variable is unset or not a
// number. Validate catches non-positive values.
func getDecimalEnv(key, defaultVal string) decimal.Decimal {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if d, err := decimal.NewFromString(val); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(defaultVal)
}

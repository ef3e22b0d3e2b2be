package config

import (
	"testing"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"SOLANA_RPC_URL", "TOKEN_MINT_ADDRESS", "AIRDROP_AMOUNT", "REDIS_ADDR", "DEV_MODE", "BALANCE_REFRESH_INTERVAL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, constants.DefaultRPCURL, cfg.RPCUrl)
	assert.Equal(t, constants.DefaultTokenMint, cfg.TokenMint)
	assert.Equal(t, "200", cfg.AirdropAmount.String())
	assert.Equal(t, 30*time.Second, cfg.BalanceRefreshInterval)
	assert.Empty(t, cfg.RedisAddr, "in-memory stores by default")
	assert.False(t, cfg.DevMode)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AIRDROP_AMOUNT", "12.5")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("CONFIRM_TIMEOUT", "90s")
	t.Setenv("RPC_RATE_LIMIT", "2.5")
	t.Setenv("MAX_RETRIES", "7")

	cfg := Load()
	assert.Equal(t, "12.5", cfg.AirdropAmount.String())
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 90*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 2.5, cfg.RPCRateLimit)
	assert.Equal(t, 7, cfg.MaxRetries)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("AIRDROP_AMOUNT", "lots")
	t.Setenv("DEV_MODE", "maybe")
	t.Setenv("CONFIRM_TIMEOUT", "soon")

	cfg := Load()
	assert.Equal(t, "200", cfg.AirdropAmount.String())
	assert.False(t, cfg.DevMode)
	assert.Equal(t, constants.DefaultConfirmTimeout, cfg.ConfirmTimeout)
}

func TestValidate(t *testing.T) {
	t.Setenv("DEV_MODE", "true")
	t.Setenv("COMMITMENT", "")
	valid := func() *Config { return Load() }

	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"bad mint":        func(c *Config) { c.TokenMint = "not-a-key" },
		"bad receiver":    func(c *Config) { c.ContestReceiver = "" },
		"bad commitment":  func(c *Config) { c.Commitment = "eventually" },
		"zero airdrop":    func(c *Config) { c.AirdropAmount = c.AirdropAmount.Sub(c.AirdropAmount) },
		"no api key":      func(c *Config) { c.DevMode = false; c.APIKey = "" },
		"zero refresh":    func(c *Config) { c.BalanceRefreshInterval = 0 },
		"negative retry":  func(c *Config) { c.MaxRetries = -1 },
		"zero confirm":    func(c *Config) { c.ConfirmTimeout = 0 },
		"negative reward": func(c *Config) { c.TaskXP = -1 },
		"short lock ttl":  func(c *Config) { c.AirdropLockTTL = time.Second },
		"zero lock wait":  func(c *Config) { c.AirdropLockWait = 0 },
		"short pending":   func(c *Config) { c.PendingSignatureTTL = 30 * time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidateServices_IgnoresAPIKey(t *testing.T) {
	t.Setenv("DEV_MODE", "false")
	t.Setenv("API_KEY", "")
	t.Setenv("COMMITMENT", "")
	c := Load()

	assert.NoError(t, c.ValidateServices())
	assert.ErrorContains(t, c.Validate(), "API_KEY")
}

func TestTimeoutsFollowConfirmTimeout(t *testing.T) {
	c := &Config{
		HTTPTimeout:     10 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    time.Second,
		ConfirmTimeout:  60 * time.Second,
		AirdropLockWait: 5 * time.Second,
	}

	// 3 attempts of 10s plus 1s and 2s of backoff.
	assert.Equal(t, 33*time.Second, c.RPCBudget())
	assert.Equal(t, 93*time.Second, c.SubmitTimeout())
	assert.Equal(t, 131*time.Second, c.AirdropTimeout())

	c.ConfirmTimeout = 3 * time.Minute
	assert.Greater(t, c.AirdropTimeout(), c.ConfirmTimeout+c.AirdropLockWait)

	c.MaxRetries = -1
	assert.Equal(t, 10*time.Second, c.RPCBudget())
}

package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/config"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/constants"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/flags"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/identity"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/profile"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/wallet"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		RPCUrl:                 "http://127.0.0.1:1",
		Commitment:             constants.DefaultCommitment,
		HTTPTimeout:            time.Second,
		TokenMint:              constants.DefaultTokenMint,
		ContestReceiver:        constants.DefaultContestReceiver,
		ConfirmTimeout:         time.Second,
		AirdropLockTTL:         constants.AirdropLockTTL,
		AirdropLockWait:        time.Second,
		PendingSignatureTTL:    constants.PendingSignatureTTL,
		AirdropAmount:          decimal.NewFromInt(200),
		ContestFee:             decimal.NewFromInt(10),
		TaskReward:             decimal.NewFromInt(10),
		TaskXP:                 50,
		BalanceRefreshInterval: time.Minute,
		AvatarBaseURL:          constants.DefaultAvatarBaseURL,
		DevMode:                true,
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNew_InMemory(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(), quietLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Redis)
	assert.Nil(t, a.ClickHouse)
	assert.Nil(t, a.Airdrops, "no treasury configured")
	assert.Nil(t, a.Quiz)
	assert.IsType(t, &profile.MemoryStore{}, a.Profiles)
	assert.NotNil(t, a.Feed)

	for key, def := range flags.Defaults {
		f, err := a.Flags.Get(ctx, key)
		require.NoError(t, err, key)
		assert.Equal(t, def, f.Value, key)
	}
}

func TestNew_SessionSyncUsesSharedStores(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(), quietLogger())
	require.NoError(t, err)
	defer a.Close()

	kp, err := wallet.NewRandomKeypair()
	require.NoError(t, err)

	view, err := a.Sessions.Open(ctx, identity.AuthenticatedWithWallet{Subject: "sub-1", OwnerKey: kp.Address()})
	require.NoError(t, err)
	require.NotNil(t, view.Sync)
	assert.True(t, view.Sync.Created)

	u, err := a.Profiles.Get(ctx, kp.Address())
	require.NoError(t, err)
	assert.Equal(t, int64(100), u.XP)

	recent, err := a.Feed.Recent(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, recent, "daily login event reaches the feed")
}

func TestNew_WithTreasuryAndQuiz(t *testing.T) {
	kp, err := wallet.NewRandomKeypair()
	require.NoError(t, err)

	cfg := testConfig()
	cfg.TreasuryPrivateKey = kp.Export()
	cfg.QuizAPIURL = "http://127.0.0.1:8000/api"

	a, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Airdrops)
	assert.True(t, a.Airdrops.Amount().Equal(decimal.NewFromInt(200)))
	assert.Equal(t, kp.Address(), a.Treasury.Address())
	require.NotNil(t, a.Quiz)
	assert.Equal(t, "http://127.0.0.1:8000/api", a.Quiz.BaseURL)
}

func TestNew_Errors(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := New(context.Background(), nil, nil)
		assert.Error(t, err)
	})

	t.Run("bad treasury key", func(t *testing.T) {
		cfg := testConfig()
		cfg.TreasuryPrivateKey = "not-a-key"
		_, err := New(context.Background(), cfg, quietLogger())
		assert.ErrorContains(t, err, "treasury key")
	})

	t.Run("bad mint", func(t *testing.T) {
		cfg := testConfig()
		cfg.TokenMint = "nope"
		_, err := New(context.Background(), cfg, quietLogger())
		assert.Error(t, err)
	})

	t.Run("unreachable redis", func(t *testing.T) {
		cfg := testConfig()
		cfg.RedisAddr = "127.0.0.1:1"
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_, err := New(ctx, cfg, quietLogger())
		assert.ErrorContains(t, err, "connect redis")
	})
}

func TestClose_Idempotent(t *testing.T) {
	a, err := New(context.Background(), testConfig(), quietLogger())
	require.NoError(t, err)
	a.Close()
	assert.NotPanics(t, a.Close)
	assert.Equal(t, 0, a.Sessions.Len())
}

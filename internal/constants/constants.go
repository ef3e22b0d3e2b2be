package constants

import "time"

// Redis keys
const (
	RedisKeyUserPrefix     = "users:"
	RedisKeyAirdropLock    = "airdrop:lock:"
	RedisKeyAirdropPending = "airdrop:pending:"
	RedisKeyRecentRewards  = "rewards:recent"
	RedisKeyFlagsPrefix    = "flags:"
)

// Redis Pub/Sub channels
const (
	PubSubChannelRewards    = "rewards:live"
	PubSubChannelKindPrefix = "rewards:kind:"
)

// Ledger defaults (devnet)
const (
	DefaultRPCURL          = "https://api.devnet.solana.com"
	DefaultTokenMint       = "FGn3YwW5iMDe2Sz7ekYTV8ZvAdmQmzeSGpFEsAjHEQnm"
	DefaultContestReceiver = "EhFTWzaEXM9baSFSMM22cJiG8KjmsMLiFWi27DVc2Zq6"
	DefaultCommitment      = "confirmed"
)

// Rewards
const (
	DefaultAirdropAmount = "200"
	DefaultContestFee    = "10"
	DefaultTaskReward    = "10"
	DefaultTaskXP        = 50
	DefaultAvatarBaseURL = "https://api.dicebear.com/6.x/avataaars/svg"
	AvatarSeedLength     = 8
)

// Limits
const (
	MaxRecentRewards = 100
	MaxUsernameLen   = 32
)

// Timing
const (
	DefaultBalanceRefresh  = 30 * time.Second
	AirdropLockTTL         = 2 * time.Minute
	MinAirdropLockTTL      = 3 * time.Second
	DefaultAirdropLockWait = 5 * time.Second
	BlockhashLifetime      = 90 * time.Second
	PendingSignatureTTL    = 2 * time.Minute
	DefaultConfirmTimeout  = 60 * time.Second
)

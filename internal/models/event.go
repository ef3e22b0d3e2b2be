package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RewardKind identifies what credited a user.
type RewardKind string

const (
	RewardDailyLogin   RewardKind = "daily_login"
	RewardXPGrant      RewardKind = "xp_grant"
	RewardTask         RewardKind = "task"
	RewardAirdrop      RewardKind = "airdrop"
	RewardContestEntry RewardKind = "contest_entry"
	RewardLevelUp      RewardKind = "level_up"
)

// RewardEvent records one credited reward or token movement.
type RewardEvent struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      RewardKind      `json:"kind"`
	Address   string          `json:"address"`
	XP        int64           `json:"xp,omitempty"`
	Level     int             `json:"level,omitempty"`
	Streak    int             `json:"streak,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Signature string          `json:"signature,omitempty"`
}

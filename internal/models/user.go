package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used for LastLogin.
const DateLayout = "2006-01-02"

// Stage is a display tier derived from level.
type Stage string

const (
	StageSpark     Stage = "Spark"
	StageEmber     Stage = "Ember"
	StageFlame     Stage = "Flame"
	StageBlaze     Stage = "Blaze"
	StageNova      Stage = "Nova"
	StageSupernova Stage = "Supernova"
)

// UserRecord is the persisted profile of one owner key.
type UserRecord struct {
	ID                 string          `json:"id"`
	Address            string          `json:"address"`
	XP                 int64           `json:"xp"`
	Level              int             `json:"level"`
	Stage              Stage           `json:"stage"`
	LoginStreak        int             `json:"loginStreak"`
	LastLogin          string          `json:"lastLogin,omitempty"` // DateLayout, empty if never
	HasReceivedAirdrop bool            `json:"hasReceivedAirdrop"`
	TokensEarned       decimal.Decimal `json:"tokensEarned"`
	TasksCompleted     int             `json:"tasksCompleted"`
	AvatarURL          string          `json:"avatarUrl,omitempty"`
	Username           string          `json:"username,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// NewUserRecord returns the default record for a first-seen owner.
func NewUserRecord(address string, now time.Time) *UserRecord {
	return &UserRecord{
		ID:           address,
		Address:      address,
		Level:        1,
		Stage:        StageSpark,
		TokensEarned: decimal.Zero,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
}

// Clone returns a copy safe to mutate independently.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

package server

import (
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/airdrop"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/models"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/quiz"
	"github.com/shopspring/decimal"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK bool `json:"ok"`
}

// UserResponse is a user record plus its next stage milestone.
type UserResponse struct {
	*models.UserRecord
	NextStage      models.Stage  `json:"nextStage,omitempty"`
	NextStageLevel int           `json:"nextStageLevel,omitempty"`
	XPForNextLevel int64         `json:"xpForNextLevel"`
	AirdropState   airdrop.State `json:"airdropState"`
}

type BalanceResponse struct {
	Address string          `json:"address"`
	Mint    string          `json:"mint"`
	Balance decimal.Decimal `json:"balance"`
}

// SessionRequest carries what the identity provider reported. An empty
// address means the identity has no ledger account yet.
type SessionRequest struct {
	Subject string `json:"subject"`
	Address string `json:"address"`
}

type XPGrantRequest struct {
	Amount int64 `json:"amount"`
}

type XPGrantResponse struct {
	User          *models.UserRecord `json:"user"`
	XPAwarded     int64              `json:"xpAwarded"`
	LeveledUp     bool               `json:"leveledUp"`
	PreviousLevel int                `json:"previousLevel"`
}

type UsernameRequest struct {
	Username string `json:"username"`
}

type AirdropRequest struct {
	Address string `json:"address"`
}

// ContestPrepareRequest asks for an unsigned contest entry envelope paid by
// Address.
type ContestPrepareRequest struct {
	Address string `json:"address"`
}

type PreparedTransactionResponse struct {
	Transaction          string          `json:"transaction"` // base64, signatures zeroed
	LastValidBlockHeight uint64          `json:"lastValidBlockHeight"`
	Source               string          `json:"source"`
	Destination          string          `json:"destination"`
	Amount               decimal.Decimal `json:"amount"`
	CreatedAccounts      []string        `json:"createdAccounts,omitempty"`
}

// SubmitTransactionRequest carries a client-signed envelope. Kind and
// Address label the reward event published once it confirms.
type SubmitTransactionRequest struct {
	Transaction string            `json:"transaction"`
	Kind        models.RewardKind `json:"kind,omitempty"`
	Address     string            `json:"address,omitempty"`
}

type SubmitTransactionResponse struct {
	Signature string `json:"signature"`
	Status    string `json:"status"`
}

type SignatureStatusResponse struct {
	Signature string `json:"signature"`
	Status    string `json:"status"`
}

type QuizVerifyResponse struct {
	Result    *quiz.VerifyResponse `json:"result"`
	XPAwarded int64                `json:"xpAwarded,omitempty"`
	Tokens    *decimal.Decimal     `json:"tokens,omitempty"`
	LeveledUp bool                 `json:"leveledUp,omitempty"`
}

type RecentRewardsResponse struct {
	Items []*models.RewardEvent `json:"items"`
	AsOf  time.Time             `json:"asOf"`
}

// FlagUpsertRequest represents a request to create or update a feature flag
type FlagUpsertRequest struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

// FlagUpdateRequest represents a request to update an existing feature flag
type FlagUpdateRequest struct {
	Value bool `json:"value"`
}

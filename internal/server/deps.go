package server

import (
	"context"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/airdrop"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/identity"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/ledger"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/models"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/progression"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/quiz"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/session"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Users is implemented by identity.Service.
type Users interface {
	User(ctx context.Context, owner string) (*models.UserRecord, error)
	GrantXP(ctx context.Context, owner string, amount int64) (progression.Outcome, error)
	RecordTaskReward(ctx context.Context, owner string, xp int64, tokens decimal.Decimal) (progression.Outcome, error)
	UpdateUsername(ctx context.Context, owner, username string) (*models.UserRecord, error)
}

// Sessions is implemented by session.Manager.
type Sessions interface {
	Open(ctx context.Context, p identity.Principal) (*session.View, error)
	Update(ctx context.Context, id string, p identity.Principal) (*session.View, error)
	Get(id string) (*session.View, error)
	Close(id string) error
}

// Ledger is implemented by ledger.Client.
type Ledger interface {
	GetBalance(ctx context.Context, owner string) (decimal.Decimal, error)
	Prepare(ctx context.Context, intent ledger.TransferIntent, payer solana.PublicKey) (*ledger.PreparedTransfer, error)
	SubmitEncoded(ctx context.Context, encoded string) (string, error)
	SignatureStatus(ctx context.Context, sig string) (ledger.Status, error)
}

// Airdrops is implemented by airdrop.Dispenser.
type Airdrops interface {
	Dispense(ctx context.Context, user *models.UserRecord) (*airdrop.Result, error)
	Amount() decimal.Decimal
}

// Quizzes is implemented by quiz.Client.
type Quizzes interface {
	GenerateQuiz(ctx context.Context, req quiz.GenerateRequest) (*quiz.GenerateResponse, error)
	Verify(ctx context.Context, req quiz.VerifyRequest) (*quiz.VerifyResponse, error)
}

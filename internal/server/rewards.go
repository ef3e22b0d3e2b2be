package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/airdrop"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/flags"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/ledger"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/models"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/quiz"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const confirmRouteTimeout = 90 * time.Second

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// Airdrop dispenses the welcome airdrop to an existing user. Repeated calls
// return already_dispensed.
func (h *Handlers) Airdrop(c echo.Context) error {
	var req AirdropRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	addr := strings.TrimSpace(req.Address)
	if !validAddress(addr) {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": "must be a base58 public key"})
	}
	if h.Airdrops == nil {
		return h.err(c, http.StatusNotFound, "airdrop treasury is not configured", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), orDefault(h.AirdropTimeout, confirmRouteTimeout))
	defer cancel()

	if !h.enabled(ctx, flags.AirdropEnabled) {
		return h.err(c, http.StatusForbidden, "airdrop is disabled", nil)
	}

	u, err := h.Users.User(ctx, addr)
	if err != nil {
		return h.fail(c, err, nil)
	}
	if airdrop.Eligibility(true, u) == airdrop.StateDispensed {
		return c.JSON(http.StatusOK, &airdrop.Result{Outcome: airdrop.OutcomeAlreadyDispensed, Amount: h.Airdrops.Amount()})
	}

	res, err := h.Airdrops.Dispense(ctx, u)
	if err != nil {
		details := map[string]any{}
		if res != nil && res.Signature != "" {
			details["signature"] = res.Signature
		}
		return h.fail(c, err, details)
	}

	code := http.StatusOK
	if res.Outcome == airdrop.OutcomeDispensed {
		code = http.StatusCreated
	}
	return c.JSON(code, res)
}

// PrepareContestEntry returns an unsigned envelope paying the contest fee
// from the user to the contest receiver. The user signs it in their wallet
// and posts it to SubmitTransaction.
func (h *Handlers) PrepareContestEntry(c echo.Context) error {
	var req ContestPrepareRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	addr := strings.TrimSpace(req.Address)
	payer, err := ledger.ParseAddress(addr)
	if err != nil {
		return h.fail(c, err, map[string]any{"address": "must be a base58 public key"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if !h.enabled(ctx, flags.ContestsEnabled) {
		return h.err(c, http.StatusForbidden, "contests are disabled", nil)
	}

	prepared, err := h.Ledger.Prepare(ctx, ledger.TransferIntent{
		Source:      addr,
		Destination: h.ContestReceiver,
		Mint:        h.Mint,
		Amount:      h.ContestFee,
	}, payer)
	if err != nil {
		return h.fail(c, err, nil)
	}

	encoded, err := prepared.Encode()
	if err != nil {
		return h.fail(c, err, nil)
	}

	created := make([]string, 0, len(prepared.CreatedAccounts()))
	for _, pk := range prepared.CreatedAccounts() {
		created = append(created, pk.String())
	}

	return c.JSON(http.StatusOK, PreparedTransactionResponse{
		Transaction:          encoded,
		LastValidBlockHeight: prepared.LastValidBlockHeight,
		Source:               prepared.Plan.SourceAccount.String(),
		Destination:          prepared.Plan.DestinationAccount.String(),
		Amount:               h.ContestFee,
		CreatedAccounts:      created,
	})
}

// SubmitTransaction accepts a fully signed envelope, verifies its signatures,
// sends it and waits for confirmation.
func (h *Handlers) SubmitTransaction(c echo.Context) error {
	var req SubmitTransactionRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if strings.TrimSpace(req.Transaction) == "" {
		return h.err(c, http.StatusBadRequest, "transaction is required", map[string]any{"transaction": "required"})
	}
	if req.Kind != "" && req.Kind != models.RewardContestEntry {
		return h.err(c, http.StatusBadRequest, "invalid kind", map[string]any{"kind": "only contest_entry is accepted"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), orDefault(h.SubmitTimeout, confirmRouteTimeout))
	defer cancel()

	sig, err := h.Ledger.SubmitEncoded(ctx, strings.TrimSpace(req.Transaction))
	if err != nil {
		details := map[string]any{}
		if sig != "" {
			details["signature"] = sig
		}
		if sig != "" && errors.Is(err, ledger.ErrConfirmationTimeout) {
			// The network has it; the client polls the status route.
			return c.JSON(http.StatusAccepted, SubmitTransactionResponse{Signature: sig, Status: ledger.StatusPending.String()})
		}
		return h.fail(c, err, details)
	}

	if req.Kind == models.RewardContestEntry && validAddress(req.Address) {
		h.emit(context.WithoutCancel(ctx), &models.RewardEvent{
			Kind:      models.RewardContestEntry,
			Address:   strings.TrimSpace(req.Address),
			Amount:    h.ContestFee,
			Signature: sig,
		})
	}

	h.Logger.WithFields(logrus.Fields{"signature": sig, "kind": req.Kind}).Info("client transaction confirmed")
	return c.JSON(http.StatusOK, SubmitTransactionResponse{Signature: sig, Status: ledger.StatusConfirmed.String()})
}

// GenerateQuiz proxies quiz generation to the quiz backend.
func (h *Handlers) GenerateQuiz(c echo.Context) error {
	if h.Quizzes == nil {
		return h.err(c, http.StatusNotFound, "quiz backend is not configured", nil)
	}
	var req quiz.GenerateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if strings.TrimSpace(req.Topic) == "" || strings.TrimSpace(req.TaskTitle) == "" {
		return h.err(c, http.StatusBadRequest, "topic and task_title are required", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	out, err := h.Quizzes.GenerateQuiz(ctx, req)
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(http.StatusOK, out)
}

// VerifyQuiz grades answers with the quiz backend and, on a pass, counts
// the task: xp plus the token reward the backend paid.
func (h *Handlers) VerifyQuiz(c echo.Context) error {
	if h.Quizzes == nil {
		return h.err(c, http.StatusNotFound, "quiz backend is not configured", nil)
	}
	var req quiz.VerifyRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.WalletAddress = strings.TrimSpace(req.WalletAddress)
	if !validAddress(req.WalletAddress) {
		return h.err(c, http.StatusBadRequest, "invalid walletAddress", map[string]any{"walletAddress": "must be a base58 public key"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	res, err := h.Quizzes.Verify(ctx, req)
	if err != nil {
		return h.fail(c, err, nil)
	}
	resp := QuizVerifyResponse{Result: res}
	if !res.Success || !res.Passed {
		return c.JSON(http.StatusOK, resp)
	}

	tokens := h.TaskReward
	if res.Reward != nil {
		tokens = decimal.NewFromFloat(*res.Reward)
	}
	out, err := h.Users.RecordTaskReward(context.WithoutCancel(ctx), req.WalletAddress, h.TaskXP, tokens)
	if err != nil {
		// The backend already paid; the counters are best-effort.
		h.Logger.WithError(err).WithFields(logrus.Fields{
			"address": req.WalletAddress,
			"tx_hash": res.TxHash,
		}).Warn("failed to record task reward")
		return c.JSON(http.StatusOK, resp)
	}

	resp.XPAwarded = out.XPAwarded
	resp.Tokens = &tokens
	resp.LeveledUp = out.LeveledUp
	return c.JSON(http.StatusOK, resp)
}

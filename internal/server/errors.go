package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/airdrop"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/flags"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/identity"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/ledger"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/profile"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/quiz"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/rpc"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// NotFoundJSON returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

type errorKind struct {
	target error
	code   int
	msg    string
}

// errorKinds is checked in order; the first match wins.
var errorKinds = []errorKind{
	{ledger.ErrInvalidAddress, http.StatusBadRequest, "invalid address"},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "invalid amount"},
	{ledger.ErrMalformedTransaction, http.StatusBadRequest, "malformed transaction"},
	{ledger.ErrSignatureRejected, http.StatusBadRequest, "signature rejected"},
	{ledger.ErrSignerMismatch, http.StatusBadRequest, "signer does not own the source"},
	{identity.ErrInvalidXP, http.StatusBadRequest, "invalid xp amount"},
	{identity.ErrInvalidUsername, http.StatusBadRequest, "invalid username"},
	{identity.ErrInvalidReward, http.StatusBadRequest, "invalid reward"},
	{flags.ErrInvalidKey, http.StatusBadRequest, "invalid key"},

	{identity.ErrNotAuthenticated, http.StatusUnauthorized, "not authenticated"},
	{identity.ErrWalletRequired, http.StatusForbidden, "ledger account required"},
	{airdrop.ErrNotEligible, http.StatusForbidden, "not eligible for airdrop"},

	{identity.ErrUserNotFound, http.StatusNotFound, "user not found"},
	{session.ErrSessionNotFound, http.StatusNotFound, "session not found"},
	{flags.ErrNotFound, http.StatusNotFound, "flag not found"},
	{ledger.ErrAccountNotFound, http.StatusNotFound, "account not found"},
	{profile.ErrNotFound, http.StatusNotFound, "user not found"},

	{airdrop.ErrDispenseInProgress, http.StatusConflict, "airdrop already in progress"},
	{ledger.ErrTransactionFailed, http.StatusUnprocessableEntity, "transaction failed"},

	{airdrop.ErrNotRecorded, http.StatusInternalServerError, "airdrop sent but not recorded"},

	{quiz.ErrMissingTxHash, http.StatusBadGateway, "quiz verifier returned no transaction"},
	{ledger.ErrSubmissionFailed, http.StatusBadGateway, "transaction submission failed"},

	{identity.ErrProfileStoreUnavailable, http.StatusServiceUnavailable, "profile store unavailable"},
	{profile.ErrUnavailable, http.StatusServiceUnavailable, "profile store unavailable"},
	{airdrop.ErrGuardUnavailable, http.StatusServiceUnavailable, "airdrop guard unavailable"},
	{ledger.ErrLedgerUnavailable, http.StatusServiceUnavailable, "ledger unavailable"},
	{rpc.ErrUnavailable, http.StatusServiceUnavailable, "ledger unavailable"},

	{airdrop.ErrOutcomeUncertain, http.StatusGatewayTimeout, "outcome uncertain, retry later"},
	{ledger.ErrConfirmationTimeout, http.StatusGatewayTimeout, "confirmation timed out, outcome uncertain"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "request timed out"},
}

// statusFor maps a domain error to an HTTP status and public message.
func statusFor(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.code, k.msg
		}
	}
	var qe *quiz.HTTPError
	if errors.As(err, &qe) {
		return http.StatusBadGateway, "quiz backend error"
	}
	return http.StatusInternalServerError, "internal server error"
}

// fail writes err as an ErrorResponse. details is only sent in dev mode.
func (h *Handlers) fail(c echo.Context, err error, details map[string]any) error {
	code, msg := statusFor(err)

	entry := h.Logger.WithError(err).WithFields(logrus.Fields{
		"path":   c.Path(),
		"status": code,
	})
	if code >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	if h.DevMode {
		if details == nil {
			details = map[string]any{}
		}
		details["err"] = err.Error()
	}
	return h.err(c, code, msg, details)
}

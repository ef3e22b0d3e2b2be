package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/airdrop"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/events"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/flags"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/identity"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/ledger"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/models"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/progression"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Users    Users
	Sessions Sessions
	Ledger   Ledger
	Airdrops Airdrops
	Quizzes  Quizzes // optional
	Flags    flags.Store
	Events   events.Sink // optional
	Feed     events.Feed // optional

	Mint            string
	ContestReceiver string
	ContestFee      decimal.Decimal
	TaskXP          int64
	TaskReward      decimal.Decimal

	// AirdropTimeout and SubmitTimeout bound the routes that wait for a
	// ledger confirmation. Zero means 90s.
	AirdropTimeout time.Duration
	SubmitTimeout  time.Duration

	DevMode bool
	Logger  *logrus.Logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// enabled reads a feature switch, defaulting to on.
func (h *Handlers) enabled(ctx context.Context, key string) bool {
	if h.Flags == nil {
		return true
	}
	return h.Flags.Enabled(ctx, key, true)
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// User returns the stored profile with derived progression fields.
func (h *Handlers) User(c echo.Context) error {
	addr := strings.TrimSpace(c.Param("address"))

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	u, err := h.Users.User(ctx, addr)
	if err != nil {
		return h.fail(c, err, nil)
	}

	resp := UserResponse{
		UserRecord:     u,
		XPForNextLevel: progression.XPForLevel(u.Level + 1),
		AirdropState:   airdrop.Eligibility(true, u),
	}
	if stage, at, ok := progression.NextStage(u.Level); ok {
		resp.NextStage = stage
		resp.NextStageLevel = at
	}
	return c.JSON(http.StatusOK, resp)
}

// Balance reads the owner's token balance from the ledger. An owner without
// a token account has a zero balance.
func (h *Handlers) Balance(c echo.Context) error {
	addr := strings.TrimSpace(c.Param("address"))

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	bal, err := h.Ledger.GetBalance(ctx, addr)
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(http.StatusOK, BalanceResponse{Address: addr, Mint: h.Mint, Balance: bal})
}

// GrantXP credits an in-app activity reward.
func (h *Handlers) GrantXP(c echo.Context) error {
	addr := strings.TrimSpace(c.Param("address"))
	var req XPGrantRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if req.Amount <= 0 {
		return h.err(c, http.StatusBadRequest, "invalid xp amount", map[string]any{"amount": "must be positive"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Users.GrantXP(ctx, addr, req.Amount)
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(http.StatusOK, XPGrantResponse{
		User:          out.User,
		XPAwarded:     out.XPAwarded,
		LeveledUp:     out.LeveledUp,
		PreviousLevel: out.PreviousLevel,
	})
}

func (h *Handlers) UpdateUsername(c echo.Context) error {
	addr := strings.TrimSpace(c.Param("address"))
	var req UsernameRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.UpdateUsername(ctx, addr, req.Username)
	if err != nil {
		return h.fail(c, err, map[string]any{"username": "1-32 characters of letters, digits, '.', '_' or '-'"})
	}
	return c.JSON(http.StatusOK, u)
}

// OpenSession starts a session for the reported principal and runs the
// identity sync.
func (h *Handlers) OpenSession(c echo.Context) error {
	var req SessionRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	v, err := h.Sessions.Open(ctx, identity.PrincipalFrom(strings.TrimSpace(req.Subject), strings.TrimSpace(req.Address)))
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(http.StatusCreated, v)
}

// UpdateSession applies a principal change. An empty subject signs out.
func (h *Handlers) UpdateSession(c echo.Context) error {
	var req SessionRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	p := identity.PrincipalFrom(strings.TrimSpace(req.Subject), strings.TrimSpace(req.Address))
	v, err := h.Sessions.Update(ctx, c.Param("id"), p)
	if err != nil {
		return h.fail(c, err, nil)
	}
	if v == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handlers) GetSession(c echo.Context) error {
	v, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handlers) CloseSession(c echo.Context) error {
	if err := h.Sessions.Close(c.Param("id")); err != nil {
		return h.fail(c, err, nil)
	}
	return c.NoContent(http.StatusNoContent)
}

// RecentRewards returns the latest reward events with optional limit parameter
// Accepts limit query parameter (default: 50, range: 1-100)
func (h *Handlers) RecentRewards(c echo.Context) error {
	if h.Feed == nil {
		return h.err(c, http.StatusNotFound, "reward feed is not configured", nil)
	}

	limit := 50
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 100 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 100"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Feed.Recent(ctx, limit)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get rewards", nil)
	}
	if items == nil {
		items = []*models.RewardEvent{}
	}
	return c.JSON(http.StatusOK, RecentRewardsResponse{Items: items, AsOf: time.Now().UTC()})
}

// SignatureStatus reports where a submitted transaction stands.
func (h *Handlers) SignatureStatus(c echo.Context) error {
	sig := strings.TrimSpace(c.Param("signature"))
	if sig == "" {
		return h.err(c, http.StatusBadRequest, "invalid signature", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.Ledger.SignatureStatus(ctx, sig)
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(http.StatusOK, SignatureStatusResponse{Signature: sig, Status: st.String()})
}

func (h *Handlers) emit(ctx context.Context, ev *models.RewardEvent) {
	events.Emit(ctx, h.Events, h.Logger, ev)
}

func validAddress(s string) bool {
	_, err := ledger.ParseAddress(s)
	return err == nil
}

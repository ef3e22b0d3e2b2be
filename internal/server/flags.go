package server

import (
	"net/http"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/flags"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const flagTimeout = 3 * time.Second

// flagParam returns the validated :key path parameter.
func flagParam(c echo.Context) (string, error) {
	key := c.Param("key")
	return key, flags.ValidateKey(key)
}

func (h *Handlers) auditFlag(c echo.Context, action string, f *flags.Flag) {
	h.Logger.WithFields(logrus.Fields{
		"action": action,
		"flag":   f.Key,
		"value":  f.Value,
		"remote": c.RealIP(),
	}).Info("feature flag changed")
}

// FlagsUpsert creates a flag or overwrites its value.
func (h *Handlers) FlagsUpsert(c echo.Context) error {
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), flagTimeout)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, req.Key, req.Value)
	if err != nil {
		return h.fail(c, err, map[string]any{"key": req.Key})
	}
	h.auditFlag(c, "upsert", out)
	return c.JSON(http.StatusOK, out)
}

// FlagsUpdate changes an existing flag. Unknown keys are 404 so a typo
// cannot silently create a flag nobody reads.
func (h *Handlers) FlagsUpdate(c echo.Context) error {
	key, err := flagParam(c)
	if err != nil {
		return h.fail(c, err, map[string]any{"key": key})
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), flagTimeout)
	defer cancel()

	out, err := h.Flags.Update(ctx, key, req.Value)
	if err != nil {
		return h.fail(c, err, map[string]any{"key": key})
	}
	h.auditFlag(c, "update", out)
	return c.JSON(http.StatusOK, out)
}

func (h *Handlers) FlagsGet(c echo.Context) error {
	key, err := flagParam(c)
	if err != nil {
		return h.fail(c, err, map[string]any{"key": key})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), flagTimeout)
	defer cancel()

	out, err := h.Flags.Get(ctx, key)
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsList returns every flag sorted by key.
func (h *Handlers) FlagsList(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *Handlers) FlagsDelete(c echo.Context) error {
	key, err := flagParam(c)
	if err != nil {
		return h.fail(c, err, map[string]any{"key": key})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), flagTimeout)
	defer cancel()

	if err := h.Flags.Delete(ctx, key); err != nil {
		return h.fail(c, err, nil)
	}
	h.Logger.WithField("flag", key).Info("feature flag deleted")
	return c.NoContent(http.StatusNoContent)
}

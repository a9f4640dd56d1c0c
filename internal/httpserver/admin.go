package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/baraholka/storefront/internal/admin"
	"github.com/baraholka/storefront/internal/logging"
	"github.com/baraholka/storefront/internal/remote"
)

type AdminHTTP struct {
	Gate   *admin.Gate
	Remote remote.DataService
}

func (h *AdminHTTP) Unlock(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.unlock")

	var req struct {
		Secret string `json:"secret"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, "invalid body")
	}

	unlocked, err := h.Gate.AttemptUnlock(req.Secret)
	if errors.Is(err, admin.ErrCooldown) {
		l.Warn("unlock_cooldown", "status", 429)
		return c.JSON(http.StatusTooManyRequests, UnlockResponse{ClearInput: true, Message: err.Error()})
	}
	if err != nil {
		l.Error("unlock_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, "internal error")
	}

	if !unlocked {
		// the client clears the input field on every outcome
		return c.JSON(http.StatusUnauthorized, UnlockResponse{ClearInput: true, Message: "incorrect secret"})
	}
	return c.JSON(http.StatusOK, UnlockResponse{Unlocked: true, ClearInput: true})
}

func (h *AdminHTTP) Lock(c echo.Context) error {
	h.Gate.Lock()
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHTTP) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"elevated": h.Gate.Unlocked()})
}

func (h *AdminHTTP) doPrivileged(c echo.Context, action, details string, fn func(ctx echo.Context) error) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin."+action)

	actor := currentSession(c)
	if actor == nil {
		return c.JSON(http.StatusUnauthorized, reasonResponse("sign_in_required", "sign in to continue"))
	}
	err := h.Gate.Do(ctx, actor.UserID, action, details, func(context.Context) error {
		return fn(c)
	})
	switch {
	case errors.Is(err, admin.ErrLocked):
		l.Warn("privileged_refused", "status", 403)
		return c.JSON(http.StatusForbidden, reasonResponse("locked", "unlock admin mode first"))
	case errors.Is(err, admin.ErrDenied):
		l.Warn("privileged_rate_limited", "status", 429)
		return c.JSON(http.StatusTooManyRequests, reasonResponse("rate_limited", "action refused by rate limit"))
	case err != nil:
		l.Error("privileged_error", "status", 503, "error", err)
		return c.JSON(http.StatusServiceUnavailable, reasonResponse("unavailable", "action failed"))
	}

	l.Info("privileged action done", "action", action)
	return c.JSON(http.StatusOK, echo.Map{"action": action, "done": true})
}

func (h *AdminHTTP) GrantQuota(c echo.Context) error {
	var req struct {
		UserID uuid.UUID `json:"user_id"`
		Delta  int       `json:"delta"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == uuid.Nil || req.Delta == 0 {
		return c.JSON(http.StatusBadRequest, "user_id and non-zero delta required")
	}

	details := fmt.Sprintf("user=%s delta=%d", req.UserID, req.Delta)
	return h.doPrivileged(c, "grant_quota", details, func(c echo.Context) error {
		return h.Remote.GrantQuota(c.Request().Context(), req.UserID, req.Delta)
	})
}

func (h *AdminHTTP) GrantUnlimited(c echo.Context) error {
	var req struct {
		UserID uuid.UUID `json:"user_id"`
		Until  time.Time `json:"until"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == uuid.Nil || req.Until.IsZero() {
		return c.JSON(http.StatusBadRequest, "user_id and until required")
	}
	if !req.Until.After(time.Now()) {
		return c.JSON(http.StatusBadRequest, "until must be in the future")
	}

	details := fmt.Sprintf("user=%s until=%s", req.UserID, req.Until.UTC().Format(time.RFC3339))
	return h.doPrivileged(c, "grant_unlimited", details, func(c echo.Context) error {
		return h.Remote.GrantUnlimitedUntil(c.Request().Context(), req.UserID, req.Until)
	})
}

func (h *AdminHTTP) DeleteAccount(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, "invalid id")
	}

	return h.doPrivileged(c, "delete_account", "user="+userID.String(), func(c echo.Context) error {
		return h.Remote.DeleteAccount(c.Request().Context(), userID)
	})
}

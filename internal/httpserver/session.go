package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/baraholka/storefront/internal/identity"
	"github.com/baraholka/storefront/internal/logging"
	"github.com/baraholka/storefront/internal/session"
)

type SessionHTTP struct {
	Identity *identity.Manager
	Sessions *session.Supervisor
}

func (h *SessionHTTP) SignIn(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.signin")

	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil || req.Token == "" {
		l.Warn("signin_error", "status", 400)
		return c.JSON(http.StatusBadRequest, "token required")
	}

	sess, err := h.Identity.SignIn(req.Token)
	if err != nil {
		l.Warn("signin_error", "status", 401, "error", err)
		return c.JSON(http.StatusUnauthorized, reasonResponse("invalid_token", "session token rejected"))
	}

	l.Info("signed in", "user_id", sess.UserID)
	return c.JSON(http.StatusOK, echo.Map{"user_id": sess.UserID, "role": sess.Role})
}

func (h *SessionHTTP) Status(c echo.Context) error {
	sess := h.Identity.Current()
	st := h.Sessions.State()

	resp := SessionStatus{
		SignedIn:      sess != nil,
		State:         string(st),
		ExpiredNotice: h.Sessions.ConsumeNotice(),
	}
	if resp.ExpiredNotice {
		resp.Redirect = "/"
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *SessionHTTP) SignOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.signout")

	if err := h.Identity.SignOut(ctx); err != nil {
		l.Error("signout_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, "internal error")
	}

	l.Info("signed out")
	return c.NoContent(http.StatusNoContent)
}

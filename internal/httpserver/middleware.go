package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/baraholka/storefront/internal/identity"
	"github.com/baraholka/storefront/internal/logging"
	"github.com/baraholka/storefront/internal/session"
)

func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := base.With(
				"method", c.Request().Method,
				"path", c.Path(),
				"remote_ip", c.RealIP(),
			)
			if rid := c.Request().Header.Get(echo.HeaderXRequestID); rid != "" {
				l = l.With("request_id", rid)
				c.Response().Header().Set(echo.HeaderXRequestID, rid)
			}

			req := c.Request().WithContext(logging.IntoContext(c.Request().Context(), l))
			c.SetRequest(req)

			start := time.Now()
			err := next(c)
			dur := time.Since(start)
			status := c.Response().Status

			if err != nil {
				c.Echo().HTTPErrorHandler(err, c)
				status = c.Response().Status
			}

			switch {
			case err != nil || status >= 500:
				l.Error("request completed", "status", status, "duration_ms", dur.Milliseconds(), "error", errStr(err))
			case status >= 400:
				l.Warn("request completed", "status", status, "duration_ms", dur.Milliseconds())
			default:
				l.Info("request completed", "status", status, "duration_ms", dur.Milliseconds())
			}
			return nil
		}
	}
}

func errStr(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%v", err)
}

// Activity treats every authenticated request as a qualifying user signal
// for the idle guard.
func Activity(sessions *session.Supervisor, ident *identity.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if ident.Current() != nil {
				sessions.Touch()
			}
			return next(c)
		}
	}
}

const sessionContextKey = "session"

// currentSession reads the session stashed by RequireSession. Handlers use
// this instead of re-reading the manager, which self-expires on the wall
// clock and could go nil between middleware and handler.
func currentSession(c echo.Context) *identity.Session {
	sess, _ := c.Get(sessionContextKey).(*identity.Session)
	return sess
}

func RequireSession(ident *identity.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := ident.Current()
			if sess == nil {
				return c.JSON(http.StatusUnauthorized, reasonResponse("sign_in_required", "sign in to continue"))
			}
			c.Set(sessionContextKey, sess)
			return next(c)
		}
	}
}

// RequireAdmin gates operator routes on the session role. Runs after
// RequireSession.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !currentSession(c).IsAdmin() {
				return c.JSON(http.StatusForbidden, reasonResponse("admin_only", "you don't have enough rights"))
			}
			return next(c)
		}
	}
}

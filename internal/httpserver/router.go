package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/baraholka/storefront/internal/admin"
	"github.com/baraholka/storefront/internal/entitlement"
	"github.com/baraholka/storefront/internal/identity"
	"github.com/baraholka/storefront/internal/remote"
	"github.com/baraholka/storefront/internal/search"
	"github.com/baraholka/storefront/internal/session"
	"github.com/baraholka/storefront/internal/state"
)

type Deps struct {
	Coordinator *state.Coordinator
	Index       *search.Index
	Entitlement *entitlement.Gate
	Admin       *admin.Gate
	Sessions    *session.Supervisor
	Identity    *identity.Manager
	Remote      remote.DataService
	Log         *slog.Logger
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.Use(RequestLogger(d.Log))
	e.Use(Activity(d.Sessions, d.Identity))

	sessionHTTP := &SessionHTTP{Identity: d.Identity, Sessions: d.Sessions}
	cartHTTP := &CartHTTP{Coordinator: d.Coordinator}
	searchHTTP := &SearchHTTP{Index: d.Index, Coordinator: d.Coordinator}
	listingHTTP := &ListingHTTP{Coordinator: d.Coordinator, Gate: d.Entitlement}
	adminHTTP := &AdminHTTP{Gate: d.Admin, Remote: d.Remote}

	v1 := e.Group("/api/v1")

	v1.POST("/session", sessionHTTP.SignIn)
	v1.GET("/session", sessionHTTP.Status)
	v1.DELETE("/session", sessionHTTP.SignOut)

	v1.GET("/catalog", searchHTTP.Catalog)
	v1.POST("/catalog/refresh", searchHTTP.Refresh)
	v1.PUT("/search/term", searchHTTP.SetTerm)
	v1.PUT("/search/category", searchHTTP.SetCategory)
	v1.GET("/search/results", searchHTTP.Results)

	v1.GET("/cart", cartHTTP.GetCart)
	v1.POST("/cart", cartHTTP.AddToCart)
	v1.DELETE("/cart", cartHTTP.ClearCart)
	v1.DELETE("/cart/items", cartHTTP.RemoveFromCart)

	v1.GET("/favorites", cartHTTP.GetFavorites)
	v1.POST("/favorites/toggle", cartHTTP.ToggleFavorite)

	v1.GET("/last-viewed", cartHTTP.GetLastViewed)
	v1.PUT("/last-viewed", cartHTTP.SetLastViewed)

	v1.GET("/theme", cartHTTP.GetTheme)
	v1.PUT("/theme", cartHTTP.SetTheme)

	authed := v1.Group("", RequireSession(d.Identity))

	authed.GET("/entitlement", listingHTTP.Entitlement)
	authed.POST("/listings", listingHTTP.Create)
	authed.PATCH("/listings/:id", listingHTTP.Update)
	authed.DELETE("/listings/:id", listingHTTP.Delete)
	authed.POST("/listings/:id/sold", listingHTTP.MarkSold)

	adm := authed.Group("/admin", RequireAdmin())

	adm.POST("/unlock", adminHTTP.Unlock)
	adm.POST("/lock", adminHTTP.Lock)
	adm.GET("/status", adminHTTP.Status)
	adm.POST("/grants/quota", adminHTTP.GrantQuota)
	adm.POST("/grants/unlimited", adminHTTP.GrantUnlimited)
	adm.DELETE("/accounts/:id", adminHTTP.DeleteAccount)
}

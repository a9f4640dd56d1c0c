package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/baraholka/storefront/internal/entitlement"
	"github.com/baraholka/storefront/internal/logging"
	"github.com/baraholka/storefront/internal/remote"
	"github.com/baraholka/storefront/internal/search"
	"github.com/baraholka/storefront/internal/state"
)

type SearchHTTP struct {
	Index       *search.Index
	Coordinator *state.Coordinator
}

func (h *SearchHTTP) Catalog(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Coordinator.Catalog())
}

func (h *SearchHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.refresh")

	if err := h.Coordinator.Refresh(ctx); err != nil {
		l.Error("catalog_refresh_error", "status", 503, "error", err)
		return c.JSON(http.StatusServiceUnavailable, reasonResponse("unavailable", "catalog fetch failed"))
	}

	h.Index.SetProducts(h.Coordinator.Catalog())
	return c.JSON(http.StatusOK, echo.Map{"count": len(h.Coordinator.Catalog())})
}

// SetTerm records a keystroke; the filter only commits after the debounce
// window, so this returns immediately.
func (h *SearchHTTP) SetTerm(c echo.Context) error {
	var req struct {
		Term string `json:"term"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, "invalid body")
	}
	h.Index.SetTerm(req.Term)
	return c.NoContent(http.StatusAccepted)
}

func (h *SearchHTTP) SetCategory(c echo.Context) error {
	var req struct {
		Category string `json:"category"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, "invalid body")
	}
	h.Index.SetCategory(req.Category)
	return c.NoContent(http.StatusNoContent)
}

func (h *SearchHTTP) Results(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"term":    h.Index.Term(),
		"results": h.Index.Results(),
	})
}

type ListingHTTP struct {
	Coordinator *state.Coordinator
	Gate *entitlement.Gate
}

// Entitlement reports the display badge; not authoritative for gating.
func (h *ListingHTTP) Entitlement(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "entitlement.badge")

	sess := currentSession(c)
	if sess == nil {
		return c.JSON(http.StatusUnauthorized, reasonResponse("sign_in_required", "sign in to continue"))
	}
	snap, err := h.Gate.Snapshot(ctx, sess.UserID)
	if err != nil {
		l.Warn("entitlement_badge_error", "status", 503, "error", err)
		return c.JSON(http.StatusServiceUnavailable, reasonResponse("unavailable", "profile fetch failed"))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"snapshot": snap,
		"decision": entitlement.Evaluate(snap, time.Now()),
	})
}

// Create gates net-new listings on a live entitlement check and fails closed
// when the check cannot complete.
func (h *ListingHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "listings.create")

	sess := currentSession(c)
	if sess == nil {
		return c.JSON(http.StatusUnauthorized, reasonResponse("sign_in_required", "sign in to continue"))
	}
	decision, err := h.Gate.CheckCreate(ctx, sess.UserID)
	if err != nil {
		l.Warn("entitlement_check_error", "status", 503, "error", err)
		return c.JSON(http.StatusServiceUnavailable, reasonResponse(decision.Reason, "entitlement check failed"))
	}
	if !decision.Allowed {
		l.Info("listing blocked", "reason", decision.Reason)
		return c.JSON(http.StatusForbidden, reasonResponse(decision.Reason, "posting limit reached"))
	}

	var listing remote.Listing
	if err := c.Bind(&listing); err != nil {
		return c.JSON(http.StatusBadRequest, "invalid body")
	}
	if listing.Title == "" || listing.Price < 0 {
		return c.JSON(http.StatusBadRequest, "title required, price must not be negative")
	}

	if err := h.Coordinator.CreateListing(ctx, &listing); err != nil {
		l.Error("create_listing_error", "status", 503, "error", err)
		return c.JSON(http.StatusServiceUnavailable, reasonResponse("unavailable", "listing not saved"))
	}

	l.Info("listing created", "listing_id", listing.ID)
	return c.JSON(http.StatusCreated, listing)
}

// Update bypasses the entitlement gate: edits are not net-new creations.
func (h *ListingHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "listings.update")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, "invalid id")
	}

	var upd remote.ListingUpdate
	if err := c.Bind(&upd); err != nil {
		return c.JSON(http.StatusBadRequest, "invalid body")
	}

	listing, err := h.Coordinator.UpdateListing(ctx, id, upd)
	if errors.Is(err, remote.ErrNotFound) {
		return c.JSON(http.StatusNotFound, "listing not found")
	}
	if err != nil {
		l.Error("update_listing_error", "status", 503, "error", err)
		return c.JSON(http.StatusServiceUnavailable, reasonResponse("unavailable", "listing not updated"))
	}

	return c.JSON(http.StatusOK, listing)
}

func (h *ListingHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "listings.delete")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, "invalid id")
	}

	if err := h.Coordinator.DeleteListing(ctx, id); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return c.JSON(http.StatusNotFound, "listing not found")
		}
		l.Error("delete_listing_error", "status", 503, "error", err)
		return c.JSON(http.StatusServiceUnavailable, reasonResponse("unavailable", "delete not confirmed"))
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *ListingHTTP) MarkSold(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "listings.sold")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, "invalid id")
	}

	if err := h.Coordinator.MarkSold(ctx, id); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return c.JSON(http.StatusNotFound, "listing not found")
		}
		l.Error("mark_sold_error", "status", 503, "error", err)
		return c.JSON(http.StatusServiceUnavailable, reasonResponse("unavailable", "mark sold not confirmed"))
	}

	return c.NoContent(http.StatusNoContent)
}

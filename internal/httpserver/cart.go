package httpserver

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/baraholka/storefront/internal/logging"
	"github.com/baraholka/storefront/internal/models"
	"github.com/baraholka/storefront/internal/state"
)

// CartHTTP exposes the durable user collections: cart, favorites,
// last-viewed, theme. Mutations apply optimistically in the coordinator.
type CartHTTP struct {
	Coordinator *state.Coordinator
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Coordinator.Cart())
}

func (h *CartHTTP) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add")

	var req struct {
		Product  models.Product `json:"product"`
		Quantity uint           `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("add_to_cart_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid body")
	}
	if req.Product.ID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, "product.id required")
	}

	h.Coordinator.AddToCart(req.Product, req.Quantity)

	l.Info("item added to cart", "product_id", req.Product.ID)
	return c.JSON(http.StatusOK, h.Coordinator.Cart())
}

func (h *CartHTTP) RemoveFromCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove")

	var req struct {
		ProductID uuid.UUID `json:"product_id"`
		Quantity  uint      `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("remove_from_cart_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid body")
	}
	if req.ProductID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, "product_id required")
	}

	h.Coordinator.RemoveFromCart(req.ProductID, req.Quantity)
	return c.JSON(http.StatusOK, h.Coordinator.Cart())
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	h.Coordinator.ClearCart()
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) GetFavorites(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Coordinator.Favorites())
}

func (h *CartHTTP) ToggleFavorite(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "favorites.toggle")

	var req struct {
		ProductID uuid.UUID `json:"product_id"`
	}
	if err := c.Bind(&req); err != nil || req.ProductID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, "product_id required")
	}

	nowFavorite, err := h.Coordinator.ToggleFavorite(req.ProductID)
	if errors.Is(err, state.ErrSignInRequired) {
		l.Warn("toggle_favorite_refused", "status", 401)
		return c.JSON(http.StatusUnauthorized, reasonResponse("sign_in_required", "sign in to save favorites"))
	}
	if err != nil {
		l.Error("toggle_favorite_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{"product_id": req.ProductID, "favorite": nowFavorite})
}

func (h *CartHTTP) GetLastViewed(c echo.Context) error {
	p := h.Coordinator.LastViewed()
	if p == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *CartHTTP) SetLastViewed(c echo.Context) error {
	var p models.Product
	if err := c.Bind(&p); err != nil || p.ID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, "product required")
	}
	h.Coordinator.ViewProduct(p)
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) GetTheme(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"theme": h.Coordinator.Theme()})
}

func (h *CartHTTP) SetTheme(c echo.Context) error {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, "invalid body")
	}
	h.Coordinator.SetTheme(req.Theme)
	return c.NoContent(http.StatusNoContent)
}

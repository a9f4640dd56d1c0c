package state

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/baraholka/storefront/internal/identity"
	"github.com/baraholka/storefront/internal/localstore"
	"github.com/baraholka/storefront/internal/models"
	"github.com/baraholka/storefront/internal/remote"
)

// ErrSignInRequired signals the UI to raise an auth prompt instead of
// applying any optimistic change.
var ErrSignInRequired = errors.New("sign in required")

// Saver receives collection snapshots for durable write-behind.
type Saver interface {
	Mark(key string, value any)
}

// Coordinator applies user mutations to the in-memory collections
// immediately, schedules their persistence, and issues the remote calls
// afterwards. On a failed remote write the optimistic state stays as-is; the
// follow-up full catalog refetch reconciles it (documented choice over
// per-mutation rollback). All transitions are serialized under one mutex.
type Coordinator struct {
	remote  remote.DataService
	saver   Saver
	session func() *identity.Session
	log     *slog.Logger

	mu         sync.Mutex
	cart       []models.CartLine
	favorites  map[uuid.UUID]struct{}
	lastViewed *models.Product
	theme      string
	catalog    []models.Product
	fetchGen   uint64
}

// New restores the durable collections from the local store. A missing or
// corrupt payload means empty collections, never an error.
func New(svc remote.DataService, store *localstore.Store, saver Saver, session func() *identity.Session, l *slog.Logger) *Coordinator {
	if l == nil {
		l = slog.Default()
	}
	c := &Coordinator{
		remote:    svc,
		saver:     saver,
		session:   session,
		log:       l,
		favorites: make(map[uuid.UUID]struct{}),
	}

	store.Load(localstore.KeyCart, &c.cart)

	var favs []uuid.UUID
	if store.Load(localstore.KeyFavorites, &favs) {
		for _, id := range favs {
			c.favorites[id] = struct{}{}
		}
	}

	var last models.Product
	if store.Load(localstore.KeyLastViewed, &last) {
		c.lastViewed = &last
	}

	store.Load(localstore.KeyTheme, &c.theme)

	return c
}

// --- cart ---

func (c *Coordinator) Cart() []models.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.cart)
}

// AddToCart merges a duplicate product into its existing line.
func (c *Coordinator) AddToCart(p models.Product, quantity uint) {
	if quantity < 1 {
		quantity = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.cart {
		if c.cart[i].ProductID == p.ID {
			c.cart[i].Quantity += quantity
			c.persistCart()
			return
		}
	}
	c.cart = append(c.cart, models.CartLine{
		ProductID:     p.ID,
		SnapshotTitle: p.Title,
		SnapshotPrice: p.Price,
		SnapshotImage: p.Image,
		Quantity:      quantity,
	})
	c.persistCart()
}

// RemoveFromCart decrements by quantity and drops the line at zero.
func (c *Coordinator) RemoveFromCart(productID uuid.UUID, quantity uint) {
	if quantity < 1 {
		quantity = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.cart {
		if c.cart[i].ProductID != productID {
			continue
		}
		if c.cart[i].Quantity > quantity {
			c.cart[i].Quantity -= quantity
		} else {
			c.cart = slices.Delete(c.cart, i, i+1)
		}
		c.persistCart()
		return
	}
}

// ClearCart is the only way the cart empties; it never auto-expires.
func (c *Coordinator) ClearCart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cart = nil
	c.persistCart()
}

func (c *Coordinator) persistCart() {
	c.saver.Mark(localstore.KeyCart, slices.Clone(c.cart))
}

// --- favorites ---

// ToggleFavorite adds the ID if absent, removes it if present. Without a
// signed-in identity nothing changes.
func (c *Coordinator) ToggleFavorite(productID uuid.UUID) (bool, error) {
	if c.session() == nil {
		return false, ErrSignInRequired
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var nowFavorite bool
	if _, ok := c.favorites[productID]; ok {
		delete(c.favorites, productID)
	} else {
		c.favorites[productID] = struct{}{}
		nowFavorite = true
	}
	c.persistFavorites()
	return nowFavorite, nil
}

func (c *Coordinator) IsFavorite(productID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.favorites[productID]
	return ok
}

// Favorites returns the member IDs. Storage order is irrelevant; rendering
// derives display order from the catalog.
func (c *Coordinator) Favorites() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.favoriteIDs()
}

func (c *Coordinator) favoriteIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.favorites))
	for id := range c.favorites {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return strings.Compare(a.String(), b.String())
	})
	return ids
}

func (c *Coordinator) persistFavorites() {
	c.saver.Mark(localstore.KeyFavorites, c.favoriteIDs())
}

// --- last viewed ---

// ViewProduct overwrites the reload cache; it is never authoritative and is
// replaced once fresh data arrives.
func (c *Coordinator) ViewProduct(p models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastViewed = &p
	c.saver.Mark(localstore.KeyLastViewed, p)
}

func (c *Coordinator) LastViewed() *models.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastViewed == nil {
		return nil
	}
	p := *c.lastViewed
	return &p
}

// --- theme ---

func (c *Coordinator) Theme() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

func (c *Coordinator) SetTheme(theme string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.theme = theme
	c.saver.Mark(localstore.KeyTheme, theme)
}

// --- catalog ---

// Catalog returns a snapshot; readers never share backing memory with
// later in-place mutations.
func (c *Coordinator) Catalog() []models.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.catalog)
}

// Refresh refetches the full catalog. A fetch superseded by a later one has
// its result discarded on arrival instead of being applied to stale state.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.fetchGen++
	gen := c.fetchGen
	c.mu.Unlock()

	items, err := c.remote.FetchCatalog(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.fetchGen {
		c.log.Debug("catalog_refresh_superseded", "gen", gen)
		return nil
	}
	c.catalog = items

	if c.lastViewed != nil {
		for _, p := range items {
			if p.ID == c.lastViewed.ID {
				fresh := p
				c.lastViewed = &fresh
				c.saver.Mark(localstore.KeyLastViewed, fresh)
				break
			}
		}
	}
	return nil
}

// --- listing mutations ---

// CreateListing is not optimistic: the listing has no local identity until
// the remote accepts it. Entitlement gating happens in the caller.
func (c *Coordinator) CreateListing(ctx context.Context, listing *remote.Listing) error {
	sess := c.session()
	if sess == nil {
		return ErrSignInRequired
	}
	listing.SellerID = sess.UserID
	if err := c.remote.CreateListing(ctx, listing); err != nil {
		return err
	}
	c.refreshAfterWrite(ctx)
	return nil
}

func (c *Coordinator) UpdateListing(ctx context.Context, id uuid.UUID, upd remote.ListingUpdate) (*remote.Listing, error) {
	sess := c.session()
	if sess == nil {
		return nil, ErrSignInRequired
	}
	listing, err := c.remote.UpdateListing(ctx, id, sess.UserID, upd)
	if err != nil {
		return nil, err
	}
	c.refreshAfterWrite(ctx)
	return listing, nil
}

// MarkSold flips the cached product immediately, then confirms remotely.
func (c *Coordinator) MarkSold(ctx context.Context, id uuid.UUID) error {
	sess := c.session()
	if sess == nil {
		return ErrSignInRequired
	}

	c.mu.Lock()
	cat := slices.Clone(c.catalog)
	for i := range cat {
		if cat[i].ID == id {
			cat[i].Sold = true
			break
		}
	}
	c.catalog = cat
	c.mu.Unlock()

	if err := c.remote.MarkSold(ctx, id, sess.UserID); err != nil {
		c.log.Warn("mark_sold_remote_failed", "listing", id, "error", err)
		return err
	}
	c.refreshAfterWrite(ctx)
	return nil
}

// DeleteListing removes the cached product immediately, then confirms
// remotely.
func (c *Coordinator) DeleteListing(ctx context.Context, id uuid.UUID) error {
	sess := c.session()
	if sess == nil {
		return ErrSignInRequired
	}

	c.mu.Lock()
	c.catalog = slices.DeleteFunc(slices.Clone(c.catalog), func(p models.Product) bool {
		return p.ID == id
	})
	c.mu.Unlock()

	if err := c.remote.DeleteListing(ctx, id, sess.UserID); err != nil {
		c.log.Warn("delete_listing_remote_failed", "listing", id, "error", err)
		return err
	}
	c.refreshAfterWrite(ctx)
	return nil
}

func (c *Coordinator) refreshAfterWrite(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		c.log.Warn("catalog_refresh_failed", "error", err)
	}
}

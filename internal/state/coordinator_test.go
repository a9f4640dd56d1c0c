package state

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baraholka/storefront/internal/identity"
	"github.com/baraholka/storefront/internal/localstore"
	"github.com/baraholka/storefront/internal/models"
	"github.com/baraholka/storefront/internal/remote"
)

type fakeSaver struct {
	mu    sync.Mutex
	marks map[string]any
}

func newFakeSaver() *fakeSaver { return &fakeSaver{marks: make(map[string]any)} }

func (f *fakeSaver) Mark(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks[key] = value
}

func (f *fakeSaver) get(key string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marks[key]
}

type fakeRemote struct {
	remote.DataService

	mu       sync.Mutex
	catalog  []models.Product
	fetchErr error
	writeErr error
	gates    []chan struct{} // when set, FetchCatalog blocks per call
	fetches  int

	created []*remote.Listing
	sold    []uuid.UUID
	deleted []uuid.UUID
}

func (f *fakeRemote) FetchCatalog(ctx context.Context) ([]models.Product, error) {
	f.mu.Lock()
	n := f.fetches
	f.fetches++
	var gate chan struct{}
	if n < len(f.gates) {
		gate = f.gates[n]
	}
	catalog := f.catalog
	err := f.fetchErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return catalog, err
}

func (f *fakeRemote) CreateListing(ctx context.Context, l *remote.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.created = append(f.created, l)
	return nil
}

func (f *fakeRemote) MarkSold(ctx context.Context, id, sellerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.sold = append(f.sold, id)
	for i := range f.catalog {
		if f.catalog[i].ID == id {
			f.catalog[i].Sold = true
		}
	}
	return nil
}

func (f *fakeRemote) DeleteListing(ctx context.Context, id, sellerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func signedIn() *identity.Session {
	return &identity.Session{UserID: uuid.New(), Role: "user"}
}

func newTestCoordinator(t *testing.T, svc *fakeRemote, sess func() *identity.Session) (*Coordinator, *fakeSaver) {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "state.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	saver := newFakeSaver()
	return New(svc, store, saver, sess, nil), saver
}

func TestCoordinator_ToggleFavoriteParity(t *testing.T) {
	t.Parallel()

	sess := signedIn()
	c, _ := newTestCoordinator(t, &fakeRemote{}, func() *identity.Session { return sess })
	id := uuid.New()

	for toggles := 1; toggles <= 6; toggles++ {
		_, err := c.ToggleFavorite(id)
		require.NoError(t, err)
		assert.Equal(t, toggles%2 == 1, c.IsFavorite(id), "after %d toggles", toggles)
	}
}

func TestCoordinator_ToggleFavoriteRequiresIdentity(t *testing.T) {
	t.Parallel()

	c, saver := newTestCoordinator(t, &fakeRemote{}, func() *identity.Session { return nil })

	_, err := c.ToggleFavorite(uuid.New())
	require.ErrorIs(t, err, ErrSignInRequired)
	assert.Empty(t, c.Favorites(), "no optimistic update without identity")
	assert.Nil(t, saver.get(localstore.KeyFavorites))
}

func TestCoordinator_AddToCartMergesDuplicates(t *testing.T) {
	t.Parallel()

	sess := signedIn()
	c, _ := newTestCoordinator(t, &fakeRemote{}, func() *identity.Session { return sess })

	p := models.Product{ID: uuid.New(), Title: "bike", Price: 100}
	c.AddToCart(p, 1)
	c.AddToCart(p, 1)

	cart := c.Cart()
	require.Len(t, cart, 1, "duplicate adds must merge, never duplicate lines")
	assert.Equal(t, uint(2), cart[0].Quantity)
	assert.Equal(t, "bike", cart[0].SnapshotTitle)
}

func TestCoordinator_RemoveFromCartDecrementsThenDrops(t *testing.T) {
	t.Parallel()

	sess := signedIn()
	c, _ := newTestCoordinator(t, &fakeRemote{}, func() *identity.Session { return sess })

	p := models.Product{ID: uuid.New(), Title: "lamp"}
	c.AddToCart(p, 3)

	c.RemoveFromCart(p.ID, 2)
	cart := c.Cart()
	require.Len(t, cart, 1)
	assert.Equal(t, uint(1), cart[0].Quantity)

	c.RemoveFromCart(p.ID, 1)
	assert.Empty(t, c.Cart())
}

func TestCoordinator_CartSurvivesRestart(t *testing.T) {
	t.Parallel()

	store, err := localstore.Open(filepath.Join(t.TempDir(), "state.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	sess := signedIn()
	sessFn := func() *identity.Session { return sess }
	saver := localstore.NewDebouncedSaver(store, time.Millisecond)

	c := New(&fakeRemote{}, store, saver, sessFn, nil)
	p := models.Product{ID: uuid.New(), Title: "sofa", Price: 40}
	c.AddToCart(p, 2)
	_, err = c.ToggleFavorite(p.ID)
	require.NoError(t, err)
	c.ViewProduct(p)
	saver.Flush()

	// fresh coordinator over the same store = process restart
	restarted := New(&fakeRemote{}, store, newFakeSaver(), sessFn, nil)
	cart := restarted.Cart()
	require.Len(t, cart, 1)
	assert.Equal(t, uint(2), cart[0].Quantity)
	assert.True(t, restarted.IsFavorite(p.ID))
	require.NotNil(t, restarted.LastViewed())
	assert.Equal(t, p.ID, restarted.LastViewed().ID)
}

func TestCoordinator_RefreshDiscardsSupersededFetch(t *testing.T) {
	t.Parallel()

	stale := []models.Product{{ID: uuid.New(), Title: "stale"}}
	fresh := []models.Product{{ID: uuid.New(), Title: "fresh"}}

	gate := make(chan struct{})
	svc := &fakeRemote{catalog: stale, gates: []chan struct{}{gate}}

	sess := signedIn()
	c, _ := newTestCoordinator(t, svc, func() *identity.Session { return sess })

	done := make(chan error, 1)
	go func() { done <- c.Refresh(context.Background()) }()

	// second fetch supersedes the blocked first one and lands first
	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return svc.fetches == 1
	}, time.Second, time.Millisecond)

	svc.mu.Lock()
	svc.catalog = fresh
	svc.mu.Unlock()
	require.NoError(t, c.Refresh(context.Background()))

	close(gate)
	require.NoError(t, <-done)

	catalog := c.Catalog()
	require.Len(t, catalog, 1)
	assert.Equal(t, "fresh", catalog[0].Title, "stale arrival must be discarded")
}

func TestCoordinator_MarkSoldOptimisticThenRemote(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &fakeRemote{catalog: []models.Product{{ID: id, Title: "bike"}}}
	sess := signedIn()
	c, _ := newTestCoordinator(t, svc, func() *identity.Session { return sess })
	require.NoError(t, c.Refresh(context.Background()))

	require.NoError(t, c.MarkSold(context.Background(), id))
	assert.Contains(t, svc.sold, id)
}

func TestCoordinator_CatalogSnapshotIsolatedFromWrites(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &fakeRemote{catalog: []models.Product{{ID: id, Title: "bike"}}}
	sess := signedIn()
	c, _ := newTestCoordinator(t, svc, func() *identity.Session { return sess })
	require.NoError(t, c.Refresh(context.Background()))

	before := c.Catalog()
	require.NoError(t, c.MarkSold(context.Background(), id))

	assert.False(t, before[0].Sold, "an earlier snapshot must not observe later writes")
	assert.True(t, c.Catalog()[0].Sold)

	// mutating a snapshot must not leak back into the coordinator
	after := c.Catalog()
	after[0].Title = "scribbled"
	assert.Equal(t, "bike", c.Catalog()[0].Title)
}

func TestCoordinator_FailedWriteKeepsOptimisticState(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &fakeRemote{catalog: []models.Product{{ID: id, Title: "bike"}}}
	sess := signedIn()
	c, _ := newTestCoordinator(t, svc, func() *identity.Session { return sess })
	require.NoError(t, c.Refresh(context.Background()))

	svc.mu.Lock()
	svc.writeErr = errors.New("remote down")
	svc.mu.Unlock()

	err := c.DeleteListing(context.Background(), id)
	require.Error(t, err)
	// optimistic removal stands until the next successful refetch reconciles
	assert.Empty(t, c.Catalog())
}

func TestCoordinator_CreateListingStampsSeller(t *testing.T) {
	t.Parallel()

	svc := &fakeRemote{}
	sess := signedIn()
	c, _ := newTestCoordinator(t, svc, func() *identity.Session { return sess })

	require.NoError(t, c.CreateListing(context.Background(), &remote.Listing{Title: "chair", Price: 5}))
	require.Len(t, svc.created, 1)
	assert.Equal(t, sess.UserID, svc.created[0].SellerID)
}

func TestCoordinator_LastViewedRevalidatedOnRefresh(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &fakeRemote{catalog: []models.Product{{ID: id, Title: "bike", Price: 90}}}
	sess := signedIn()
	c, _ := newTestCoordinator(t, svc, func() *identity.Session { return sess })

	c.ViewProduct(models.Product{ID: id, Title: "bike", Price: 120})
	require.NoError(t, c.Refresh(context.Background()))

	require.NotNil(t, c.LastViewed())
	assert.Equal(t, 90.0, c.LastViewed().Price, "stale cache must be replaced by fresh data")
}

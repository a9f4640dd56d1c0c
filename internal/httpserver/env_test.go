package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/baraholka/storefront/internal/admin"
	"github.com/baraholka/storefront/internal/entitlement"
	"github.com/baraholka/storefront/internal/identity"
	"github.com/baraholka/storefront/internal/localstore"
	"github.com/baraholka/storefront/internal/models"
	"github.com/baraholka/storefront/internal/remote"
	"github.com/baraholka/storefront/internal/search"
	"github.com/baraholka/storefront/internal/session"
	"github.com/baraholka/storefront/internal/state"
)

const (
	testJWTSecret   = "test-jwt-secret"
	testAdminSecret = "operator phrase"
)

type fakeRemote struct {
	mu sync.Mutex

	catalog  []models.Product
	fetchErr error

	snap     models.EntitlementSnapshot
	snapErr  error
	count    int
	countErr error

	created  []*remote.Listing
	sold     []uuid.UUID
	deleted  []uuid.UUID
	quota    map[uuid.UUID]int
	granted  map[uuid.UUID]time.Time
	removed  []uuid.UUID
	writeErr error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		snap:    models.EntitlementSnapshot{PostLimit: 6},
		quota:   make(map[uuid.UUID]int),
		granted: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeRemote) FetchProfile(ctx context.Context, userID uuid.UUID) (models.EntitlementSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.snapErr
}

func (f *fakeRemote) CountListings(ctx context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, f.countErr
}

func (f *fakeRemote) FetchCatalog(ctx context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.catalog, f.fetchErr
}

func (f *fakeRemote) CreateListing(ctx context.Context, l *remote.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	f.created = append(f.created, l)
	return nil
}

func (f *fakeRemote) UpdateListing(ctx context.Context, id, sellerID uuid.UUID, upd remote.ListingUpdate) (*remote.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	l := &remote.Listing{ID: id, SellerID: sellerID}
	if upd.Title != nil {
		l.Title = *upd.Title
	}
	if upd.Price != nil {
		l.Price = *upd.Price
	}
	return l, nil
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

func (f *fakeRemote) MarkSold(ctx context.Context, id, sellerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.sold = append(f.sold, id)
	return nil
}

func (f *fakeRemote) GrantQuota(ctx context.Context, userID uuid.UUID, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.quota[userID] += delta
	return nil
}

func (f *fakeRemote) GrantUnlimitedUntil(ctx context.Context, userID uuid.UUID, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.granted[userID] = until
	return nil
}

func (f *fakeRemote) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, userID)
	return nil
}

type fakeOracle struct {
	mu    sync.Mutex
	allow bool
	err   error
}

func (f *fakeOracle) Allow(ctx context.Context, identity, action string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allow, f.err
}

type fakeAudit struct {
	recs chan models.AuditRecord
}

func (f *fakeAudit) Emit(ctx context.Context, rec models.AuditRecord) error {
	f.recs <- rec
	return nil
}

type testEnv struct {
	e      *echo.Echo
	remote *fakeRemote
	oracle *fakeOracle
	audit  *fakeAudit
	ident  *identity.Manager
	saver  *localstore.DebouncedSaver
	index  *search.Index
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	discard := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := localstore.Open(filepath.Join(t.TempDir(), "env.db"), discard)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	saver := localstore.NewDebouncedSaver(store, time.Millisecond)
	t.Cleanup(saver.Close)

	rem := newFakeRemote()
	oracle := &fakeOracle{allow: true}
	audit := &fakeAudit{recs: make(chan models.AuditRecord, 8)}
	ident := identity.NewManager([]byte(testJWTSecret))
	sessions := session.NewSupervisor(time.Hour, nil, discard)
	t.Cleanup(sessions.Close)

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminSecret), bcrypt.MinCost)
	require.NoError(t, err)

	coordinator := state.New(rem, store, saver, ident.Current, discard)
	index := search.New(15 * time.Millisecond)
	t.Cleanup(index.Close)

	e := echo.New()
	Register(e, &Deps{
		Coordinator: coordinator,
		Index:       index,
		Entitlement: &entitlement.Gate{Remote: rem},
		Admin:       admin.NewGate(string(hash), oracle, audit, discard),
		Sessions:    sessions,
		Identity:    ident,
		Remote:      rem,
		Log:         discard,
	})

	return &testEnv{e: e, remote: rem, oracle: oracle, audit: audit, ident: ident, saver: saver, index: index}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) signIn(t *testing.T, role string) uuid.UUID {
	t.Helper()

	userID := uuid.New()
	claims := &identity.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/v1/session", echo.Map{"token": token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return userID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

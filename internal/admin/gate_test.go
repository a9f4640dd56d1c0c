package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/baraholka/storefront/internal/models"
)

const testSecret = "open sesame"

type fakeOracle struct {
	allow bool
	err   error
	calls int
}

func (f *fakeOracle) Allow(ctx context.Context, identity, action string) (bool, error) {
	f.calls++
	return f.allow, f.err
}

type fakeAudit struct {
	err  error
	recs chan models.AuditRecord
}

func newFakeAudit() *fakeAudit {
	return &fakeAudit{recs: make(chan models.AuditRecord, 8)}
}

func (f *fakeAudit) Emit(ctx context.Context, rec models.AuditRecord) error {
	f.recs <- rec
	return f.err
}

func newTestGate(t *testing.T, oracle *fakeOracle, audit *fakeAudit) *Gate {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testSecret), bcrypt.MinCost)
	require.NoError(t, err)
	return NewGate(string(hash), oracle, audit, nil)
}

func TestGate_AttemptUnlock(t *testing.T) {
	t.Parallel()

	g := newTestGate(t, &fakeOracle{allow: true}, newFakeAudit())

	ok, err := g.AttemptUnlock("wrong")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, g.Unlocked())

	// exact match only, case-sensitive
	ok, err = g.AttemptUnlock("Open Sesame")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.AttemptUnlock(testSecret)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, g.Unlocked())

	g.Lock()
	assert.False(t, g.Unlocked())
}

func TestGate_CooldownAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	g := newTestGate(t, &fakeOracle{allow: true}, newFakeAudit())
	frozen := time.Now()
	g.now = func() time.Time { return frozen }

	for i := 0; i < defaultMaxAttempts; i++ {
		ok, err := g.AttemptUnlock("nope")
		require.NoError(t, err)
		assert.False(t, ok)
	}

	// even the correct secret is refused during cooldown
	_, err := g.AttemptUnlock(testSecret)
	require.ErrorIs(t, err, ErrCooldown)
	assert.ErrorContains(t, err, "retry after 1m0s", "remainder follows the gate clock")

	g.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	ok, err := g.AttemptUnlock(testSecret)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGate_DoRefusedWhileLocked(t *testing.T) {
	t.Parallel()

	oracle := &fakeOracle{allow: true}
	g := newTestGate(t, oracle, newFakeAudit())

	ran := false
	err := g.Do(context.Background(), uuid.New(), "grant_quota", "", func(context.Context) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, ErrLocked)
	assert.False(t, ran)
	assert.Zero(t, oracle.calls, "oracle must not be consulted while locked")
}

func TestGate_DoDeniedByOracle(t *testing.T) {
	t.Parallel()

	g := newTestGate(t, &fakeOracle{allow: false}, newFakeAudit())
	_, err := g.AttemptUnlock(testSecret)
	require.NoError(t, err)

	ran := false
	err = g.Do(context.Background(), uuid.New(), "grant_quota", "", func(context.Context) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, ErrDenied)
	assert.False(t, ran)
}

func TestGate_DoFailsClosedOnOracleError(t *testing.T) {
	t.Parallel()

	g := newTestGate(t, &fakeOracle{err: errors.New("redis down")}, newFakeAudit())
	_, err := g.AttemptUnlock(testSecret)
	require.NoError(t, err)

	err = g.Do(context.Background(), uuid.New(), "grant_quota", "", func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrDenied)
}

func TestGate_DoEmitsAuditRecord(t *testing.T) {
	t.Parallel()

	audit := newFakeAudit()
	g := newTestGate(t, &fakeOracle{allow: true}, audit)
	_, err := g.AttemptUnlock(testSecret)
	require.NoError(t, err)

	actor := uuid.New()
	require.NoError(t, g.Do(context.Background(), actor, "grant_quota", "delta=2", func(context.Context) error { return nil }))

	select {
	case rec := <-audit.recs:
		assert.Equal(t, "grant_quota", rec.Action)
		assert.Equal(t, "delta=2", rec.Details)
		assert.Equal(t, actor.String(), rec.Actor)
		assert.False(t, rec.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("audit record never emitted")
	}
}

func TestGate_AuditFailureDoesNotFailAction(t *testing.T) {
	t.Parallel()

	audit := newFakeAudit()
	audit.err = errors.New("kafka down")
	g := newTestGate(t, &fakeOracle{allow: true}, audit)
	_, err := g.AttemptUnlock(testSecret)
	require.NoError(t, err)

	ran := false
	err = g.Do(context.Background(), uuid.New(), "delete_account", "", func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestGate_DoPropagatesActionError(t *testing.T) {
	t.Parallel()

	audit := newFakeAudit()
	g := newTestGate(t, &fakeOracle{allow: true}, audit)
	_, err := g.AttemptUnlock(testSecret)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = g.Do(context.Background(), uuid.New(), "grant_quota", "", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	select {
	case <-audit.recs:
		t.Fatal("failed action must not be audited as performed")
	case <-time.After(50 * time.Millisecond):
	}
}

package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/baraholka/storefront/internal/models"
)

var (
	ErrLocked   = errors.New("admin mode locked")
	ErrCooldown = errors.New("too many unlock attempts")
	ErrDenied   = errors.New("action rate limited")
)

const (
	defaultMaxAttempts = 5
	defaultCooldown    = time.Minute
	auditTimeout       = 5 * time.Second
)

// Oracle answers whether an operator action may proceed. The gate holds no
// local counters; an unreachable oracle reads as deny.
type Oracle interface {
	Allow(ctx context.Context, identity, action string) (bool, error)
}

// AuditSink receives records of performed privileged actions.
type AuditSink interface {
	Emit(ctx context.Context, rec models.AuditRecord) error
}

// Gate is the LOCKED/UNLOCKED elevated-mode state machine. The secret is
// held only as a bcrypt hash; comparison is exact and case-sensitive.
// Consecutive failures arm a cooldown during which attempts are refused.
type Gate struct {
	secretHash  []byte
	oracle      Oracle
	audit       AuditSink
	log         *slog.Logger
	now         func() time.Time
	maxAttempts int
	cooldown    time.Duration

	mu            sync.Mutex
	unlocked      bool
	failures      int
	cooldownUntil time.Time
}

func NewGate(secretHash string, oracle Oracle, audit AuditSink, l *slog.Logger) *Gate {
	if l == nil {
		l = slog.Default()
	}
	return &Gate{
		secretHash:  []byte(secretHash),
		oracle:      oracle,
		audit:       audit,
		log:         l,
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
		cooldown:    defaultCooldown,
	}
}

// AttemptUnlock compares the candidate against the configured secret.
// Returns ErrCooldown while attempts are refused; otherwise the bool says
// whether the gate is now unlocked. The caller clears its input either way.
func (g *Gate) AttemptUnlock(candidate string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.now().Before(g.cooldownUntil) {
		return false, fmt.Errorf("%w: retry after %s", ErrCooldown, g.cooldownUntil.Sub(g.now()).Round(time.Second))
	}

	if bcrypt.CompareHashAndPassword(g.secretHash, []byte(candidate)) != nil {
		g.failures++
		g.log.Warn("admin_unlock_failed", "failures", g.failures)
		if g.failures >= g.maxAttempts {
			g.cooldownUntil = g.now().Add(g.cooldown)
			g.failures = 0
		}
		return false, nil
	}

	g.unlocked = true
	g.failures = 0
	g.log.Info("admin_unlocked")
	return true, nil
}

// Lock drops elevated mode, explicitly or via session-guard expiry.
func (g *Gate) Lock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unlocked = false
}

func (g *Gate) Unlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlocked
}

// Do runs a privileged mutation: refused while locked, refused when the
// oracle denies or cannot be reached. On success an audit record is emitted
// best-effort; audit failure never blocks or rolls back the action.
func (g *Gate) Do(ctx context.Context, actor uuid.UUID, action, details string, fn func(context.Context) error) error {
	if !g.Unlocked() {
		return ErrLocked
	}

	allowed, err := g.oracle.Allow(ctx, actor.String(), action)
	if err != nil {
		return fmt.Errorf("%w: oracle unreachable: %v", ErrDenied, err)
	}
	if !allowed {
		return fmt.Errorf("%w: %s", ErrDenied, action)
	}

	if err := fn(ctx); err != nil {
		return err
	}

	g.emit(models.AuditRecord{
		Action:    action,
		Details:   details,
		Timestamp: g.now().UTC(),
		Actor:     actor.String(),
	})
	return nil
}

func (g *Gate) emit(rec models.AuditRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := g.audit.Emit(ctx, rec); err != nil {
			g.log.Warn("audit_emit_failed", "action", rec.Action, "error", err)
		}
	}()
}

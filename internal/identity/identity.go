package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid session token")

type Session struct {
	UserID    uuid.UUID
	Role      string
	ExpiresAt time.Time
}

func (s *Session) IsAdmin() bool { return s != nil && s.Role == "admin" }

type EventType string

const (
	SignedIn  EventType = "signed_in"
	SignedOut EventType = "signed_out"
)

type Event struct {
	Type    EventType
	Session *Session
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Manager adapts the identity provider: it validates session tokens, tracks
// the current signed-in session, and streams session-change events so the
// wiring can start and stop the idle guard.
type Manager struct {
	secret []byte

	mu      sync.Mutex
	current *Session
	events  chan Event
}

func NewManager(secret []byte) *Manager {
	return &Manager{
		secret: secret,
		events: make(chan Event, 8),
	}
}

// SignIn validates the token and installs the session it carries.
func (m *Manager) SignIn(token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	sess := &Session{UserID: userID, Role: claims.Role}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}

	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()

	m.notify(Event{Type: SignedIn, Session: sess})
	return sess, nil
}

// Current returns the signed-in session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && !m.current.ExpiresAt.IsZero() && m.current.ExpiresAt.Before(time.Now()) {
		m.current = nil
	}
	return m.current
}

func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	was := m.current
	m.current = nil
	m.mu.Unlock()

	if was != nil {
		m.notify(Event{Type: SignedOut})
	}
	return nil
}

// Changes streams session lifecycle events. Slow consumers drop events
// rather than block sign-in/out.
func (m *Manager) Changes() <-chan Event {
	return m.events
}

func (m *Manager) notify(e Event) {
	select {
	case m.events <- e:
	default:
	}
}

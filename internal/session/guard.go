package session

import (
	"log/slog"
	"sync"
	"time"
)

type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
)

// Guard forcibly ends a privileged session after an idle timeout. Qualifying
// user signals call Touch, which resets (never stacks) the single deadline.
// Expiry fires OnExpire exactly once; the instance is then terminal and a
// fresh sign-in gets a fresh Guard.
type Guard struct {
	timeout  time.Duration
	onExpire func()
	log      *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	state   State
	stopped bool
}

func NewGuard(timeout time.Duration, onExpire func(), l *slog.Logger) *Guard {
	if l == nil {
		l = slog.Default()
	}
	return &Guard{
		timeout:  timeout,
		onExpire: onExpire,
		log:      l,
		state:    StateActive,
	}
}

// Start arms the idle deadline. Calling Start on a started guard resets it.
func (g *Guard) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped || g.state == StateExpired {
		return
	}
	if g.timer == nil {
		g.timer = time.AfterFunc(g.timeout, g.expire)
	} else {
		g.timer.Reset(g.timeout)
	}
}

// Touch resets the deadline while active. After expiry or Stop it is a no-op:
// a dead timer instance is never resurrected.
func (g *Guard) Touch() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped || g.state == StateExpired || g.timer == nil {
		return
	}
	g.timer.Reset(g.timeout)
}

func (g *Guard) expire() {
	g.mu.Lock()
	if g.stopped || g.state == StateExpired {
		g.mu.Unlock()
		return
	}
	g.state = StateExpired
	g.timer = nil
	g.mu.Unlock()

	g.log.Info("session_idle_expired", "timeout", g.timeout.String())
	if g.onExpire != nil {
		g.onExpire()
	}
}

func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Stop tears the timer down without firing. Required on scope disposal so
// repeated mount/unmount cycles do not leak pending expirations.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = true
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

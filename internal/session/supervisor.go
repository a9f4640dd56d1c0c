package session

import (
	"log/slog"
	"sync"
	"time"
)

// Supervisor owns the guard instance for the current sign-in. Each sign-in
// gets a fresh Guard; the previous one is torn down so repeated sign-in/out
// cycles never leak pending expirations.
type Supervisor struct {
	timeout  time.Duration
	onExpire func()
	log      *slog.Logger

	mu     sync.Mutex
	guard  *Guard
	notice bool
}

func NewSupervisor(timeout time.Duration, onExpire func(), l *slog.Logger) *Supervisor {
	if l == nil {
		l = slog.Default()
	}
	return &Supervisor{timeout: timeout, onExpire: onExpire, log: l}
}

func (s *Supervisor) OnSignIn() {
	s.mu.Lock()
	if s.guard != nil {
		s.guard.Stop()
	}
	s.notice = false
	g := NewGuard(s.timeout, s.expired, s.log)
	s.guard = g
	s.mu.Unlock()

	g.Start()
}

func (s *Supervisor) OnSignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guard != nil {
		s.guard.Stop()
		s.guard = nil
	}
}

func (s *Supervisor) expired() {
	s.mu.Lock()
	s.notice = true
	s.mu.Unlock()
	if s.onExpire != nil {
		s.onExpire()
	}
}

// Touch forwards a qualifying user signal to the current guard, if any.
func (s *Supervisor) Touch() {
	s.mu.Lock()
	g := s.guard
	s.mu.Unlock()
	if g != nil {
		g.Touch()
	}
}

// State reports the current guard's state; with no sign-in it reads active.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guard == nil {
		return StateActive
	}
	return s.guard.State()
}

// ConsumeNotice returns whether an expiry notice is pending and clears it,
// so the UI shows it once.
func (s *Supervisor) ConsumeNotice() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.notice
	s.notice = false
	return n
}

func (s *Supervisor) Close() {
	s.OnSignOut()
}

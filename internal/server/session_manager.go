package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	defaultSessionTimeout  = 24 * time.Hour
	sessionCleanupInterval = 10 * time.Minute
)

// ErrNoAuthorizationHeader is returned when a request carries no bearer token.
var ErrNoAuthorizationHeader = errors.New("no authorization header provided")

// ActiveSessionRecorder records session lifecycle metrics.
// *instrumentation.Metrics satisfies this interface.
type ActiveSessionRecorder interface {
	IncrementActiveSessions(ctx context.Context)
	DecrementActiveSessions(ctx context.Context)
}

type sessionInfo struct {
	account    string
	lastAccess time.Time
}

// SessionIDManager maps bearer tokens to Google accounts so several accounts
// can share one MCP server. Each token hashes to a stable session ID and the
// OAuth middleware records the authenticated account against it. Sessions
// idle past the timeout are evicted in the background.
type SessionIDManager struct {
	mu       sync.Mutex
	sessions map[string]*sessionInfo
	metrics  ActiveSessionRecorder

	timeout time.Duration
	logger  *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionIDManager creates a session manager with the default idle timeout.
func NewSessionIDManager() *SessionIDManager {
	return NewSessionIDManagerWithTimeout(defaultSessionTimeout)
}

// NewSessionIDManagerWithTimeout creates a session manager evicting sessions
// idle longer than timeout.
func NewSessionIDManagerWithTimeout(timeout time.Duration) *SessionIDManager {
	m := &SessionIDManager{
		sessions: make(map[string]*sessionInfo),
		timeout:  timeout,
		logger:   slog.Default(),
		stop:     make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// SetMetrics sets the recorder for the active session gauge.
func (m *SessionIDManager) SetMetrics(rec ActiveSessionRecorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = rec
}

// ResolveSessionID derives the session ID for an HTTP request from its
// bearer token. The same token always resolves to the same session.
func (m *SessionIDManager) ResolveSessionID(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrNoAuthorizationHeader
	}
	sum := sha256.Sum256([]byte(authHeader))
	return hex.EncodeToString(sum[:]), nil
}

// GetAccountForSession returns the account recorded for a session, or
// "default" for unknown sessions. Touches the session's last access time.
func (m *SessionIDManager) GetAccountForSession(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.sessions[sessionID]
	if !ok {
		return "default"
	}
	info.lastAccess = time.Now()
	return info.account
}

// SetAccountForSession records the authenticated account for a session.
func (m *SessionIDManager) SetAccountForSession(sessionID, account string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; !exists && m.metrics != nil {
		m.metrics.IncrementActiveSessions(context.Background())
	}
	m.sessions[sessionID] = &sessionInfo{account: account, lastAccess: time.Now()}
}

// RemoveSession drops a session. Unknown IDs are ignored.
func (m *SessionIDManager) RemoveSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; !exists {
		return
	}
	if m.metrics != nil {
		m.metrics.DecrementActiveSessions(context.Background())
	}
	delete(m.sessions, sessionID)
}

// ListSessions returns the IDs of all live sessions.
func (m *SessionIDManager) ListSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Stop terminates the session expiry loop. Safe to call more than once.
func (m *SessionIDManager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *SessionIDManager) cleanupLoop() {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if n := m.evictExpired(time.Now()); n > 0 {
				m.logger.Info("Cleaned up expired sessions", "count", n)
			}
		}
	}
}

func (m *SessionIDManager) evictExpired(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	expired := 0
	for id, info := range m.sessions {
		if now.Sub(info.lastAccess) > m.timeout {
			delete(m.sessions, id)
			expired++
		}
	}
	if m.metrics != nil {
		for i := 0; i < expired; i++ {
			m.metrics.DecrementActiveSessions(context.Background())
		}
	}
	return expired
}

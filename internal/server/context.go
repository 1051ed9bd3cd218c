package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gokturkhatay/smartinbox/internal/classify"
	"github.com/gokturkhatay/smartinbox/internal/gmail"
	"github.com/gokturkhatay/smartinbox/internal/google"
	"github.com/gokturkhatay/smartinbox/internal/instrumentation"
	"github.com/gokturkhatay/smartinbox/internal/store"
)

// ServerContext holds the shared dependencies for the MCP server:
// the classification engine, the local message store, and per-account
// Gmail clients. Tool handlers receive it at registration time.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	engine *classify.Engine
	store  *store.Store

	gmailClients  map[string]*gmail.Client // Maps account name to Gmail client
	tokenProvider google.TokenProvider

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context using file-based tokens.
// The classification engine and store may be nil; tools that need them
// report an error instead of failing server startup.
func NewServerContext(ctx context.Context, engine *classify.Engine, st *store.Store) (*ServerContext, error) {
	shutdownCtx, cancel := context.WithCancel(ctx)

	gmailClients := make(map[string]*gmail.Client)

	// Try to create default Gmail client, but don't fail if token is missing
	// Clients will be lazily initialized when first needed
	if gmail.HasToken() {
		gmailClient, err := gmail.NewClient(shutdownCtx)
		if err != nil {
			// Log but don't fail - will be re-attempted on first use
			slog.Warn("Failed to create Gmail client for default account", "error", err)
		} else {
			gmailClients["default"] = gmailClient
		}
	}

	return &ServerContext{
		ctx:          shutdownCtx,
		cancel:       cancel,
		engine:       engine,
		store:        st,
		gmailClients: gmailClients,
		shutdown:     false,
	}, nil
}

// NewServerContextWithProvider creates a new server context that obtains
// Google tokens from the given provider instead of the file cache. This is
// used by the HTTP transport, where tokens come from OAuth authentication.
func NewServerContextWithProvider(ctx context.Context, engine *classify.Engine, st *store.Store, tokenProvider google.TokenProvider) (*ServerContext, error) {
	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:           shutdownCtx,
		cancel:        cancel,
		engine:        engine,
		store:         st,
		gmailClients:  make(map[string]*gmail.Client),
		tokenProvider: tokenProvider,
		shutdown:      false,
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Engine returns the classification engine, or nil if none is configured
func (sc *ServerContext) Engine() *classify.Engine {
	return sc.engine
}

// Store returns the local message store, or nil if none is configured
func (sc *ServerContext) Store() *store.Store {
	return sc.store
}

// TokenProvider returns the configured token provider, or nil for file-based tokens
func (sc *ServerContext) TokenProvider() google.TokenProvider {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.tokenProvider
}

// GmailClientForAccount returns the Gmail client for a specific account
// Creates and caches the client if it doesn't exist yet
// Returns nil if no token is available for the account
func (sc *ServerContext) GmailClientForAccount(account string) *gmail.Client {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	// Check if client already exists
	if client, ok := sc.gmailClients[account]; ok {
		return client
	}

	// Prefer the token provider when configured (HTTP transport:
	// tokens come from OAuth authentication, keyed by user email)
	if sc.tokenProvider != nil {
		token, err := sc.tokenProvider.GetTokenForAccount(sc.ctx, account)
		if err != nil {
			slog.Warn("No OAuth token for account", "account", account, "error", err)
			return nil
		}

		client, err := gmail.NewClientForToken(sc.ctx, account, token)
		if err != nil {
			slog.Warn("Failed to create Gmail client from OAuth token", "account", account, "error", err)
			return nil
		}

		sc.gmailClients[account] = client
		return client
	}

	// Fall back to the file token cache (stdio transport)
	if !gmail.HasTokenForAccount(account) {
		return nil
	}

	client, err := gmail.NewClientForAccount(sc.ctx, account)
	if err != nil {
		slog.Warn("Failed to create Gmail client", "account", account, "error", err)
		return nil
	}

	sc.gmailClients[account] = client
	return client
}

// GmailClient returns the Gmail client for the default account
func (sc *ServerContext) GmailClient() *gmail.Client {
	return sc.GmailClientForAccount("default")
}

// SetGmailClientForAccount sets the Gmail client for a specific account
func (sc *ServerContext) SetGmailClientForAccount(account string, client *gmail.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.gmailClients[account] = client
}

// SetGmailClient sets the Gmail client for the default account
func (sc *ServerContext) SetGmailClient(client *gmail.Client) {
	sc.SetGmailClientForAccount("default", client)
}

// SetMetrics sets the metrics recorder for tool instrumentation
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder, or nil if instrumentation is disabled
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger sets the audit logger for tool invocations
func (sc *ServerContext) SetAuditLogger(l *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = l
}

// AuditLogger returns the audit logger, or nil if audit logging is disabled
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}

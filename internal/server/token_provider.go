package server

import (
	"context"
	"fmt"
	"time"

	"github.com/giantswarm/mcp-oauth/storage"
	"golang.org/x/oauth2"

	"github.com/gokturkhatay/smartinbox/internal/instrumentation"
)

// TokenProvider implements google.TokenProvider using the OAuth token store.
// When a user authenticates over HTTP, the middleware stores their Google
// token keyed by email; Gmail clients for that account are built from it.
type TokenProvider struct {
	store   storage.TokenStore
	metrics *instrumentation.Metrics
}

// NewTokenProvider creates a new token provider from an OAuth token store.
func NewTokenProvider(store storage.TokenStore) *TokenProvider {
	return &TokenProvider{
		store: store,
	}
}

// NewTokenProviderWithMetrics creates a token provider that reports expired
// stored tokens for observability.
func NewTokenProviderWithMetrics(store storage.TokenStore, metrics *instrumentation.Metrics) *TokenProvider {
	return &TokenProvider{
		store:   store,
		metrics: metrics,
	}
}

// GetTokenForAccount retrieves a Google OAuth token for the specified account.
// First checks if there's an authenticated user in the context (from the OAuth
// middleware); falls back to looking up by account name for stdio callers.
func (p *TokenProvider) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	// First, check if there's an authenticated user in the context
	// This is set by the OAuth middleware after validating the Bearer token
	if userInfo, ok := GetUserFromContext(ctx); ok && userInfo != nil && userInfo.Email != "" {
		token, err := p.store.GetToken(ctx, userInfo.Email)
		if err == nil {
			p.checkExpiry(ctx, token)
			return token, nil
		}
		// If token not found by email, try the account name as fallback
	}

	token, err := p.store.GetToken(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("no Google OAuth token found for account %s. Please authenticate with Google through your MCP client", account)
	}

	p.checkExpiry(ctx, token)
	return token, nil
}

// HasTokenForAccount checks if a token exists for the specified account.
func (p *TokenProvider) HasTokenForAccount(account string) bool {
	_, err := p.store.GetToken(context.Background(), account)
	return err == nil
}

// checkExpiry reports stored tokens that have expired. The resource server
// cannot refresh opaque access tokens itself, so an expired token means the
// MCP client has to re-authenticate.
func (p *TokenProvider) checkExpiry(ctx context.Context, token *oauth2.Token) {
	if p.metrics == nil || token == nil {
		return
	}
	if !token.Expiry.IsZero() && time.Now().After(token.Expiry) {
		p.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultExpired)
	}
}

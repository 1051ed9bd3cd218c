package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/giantswarm/mcp-oauth/storage"
	"github.com/giantswarm/mcp-oauth/storage/memory"
	"golang.org/x/oauth2"

	"github.com/gokturkhatay/smartinbox/internal/google"
	"github.com/gokturkhatay/smartinbox/internal/logging"
)

// contextKey is the type for context keys
type contextKey string

const (
	// userContextKey is the key for storing the user info in the request context
	userContextKey contextKey = "oauth_user"

	// tokenContextKey is the key for storing the Google token in the request context
	tokenContextKey contextKey = "google_token"

	// googleUserinfoEndpoint is Google's OpenID Connect userinfo endpoint,
	// used to validate bearer tokens presented by MCP clients.
	googleUserinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

	// googleAuthorizationServer is advertised in the protected resource
	// metadata so MCP clients know where to obtain tokens.
	googleAuthorizationServer = "https://accounts.google.com"

	// tokenStoreTimeout is the timeout for storing tokens in the token store.
	tokenStoreTimeout = 5 * time.Second
)

// OAuthConfig holds configuration for the OAuth-protected HTTP transport.
type OAuthConfig struct {
	// BaseURL is the public URL where this server is reachable, e.g.
	// https://smartinbox.example.com. HTTP is only accepted for loopback
	// addresses (OAuth 2.1 requirement).
	BaseURL string

	// GoogleClientID and GoogleClientSecret identify the Google OAuth
	// application. They are optional for the resource server itself
	// (bearer tokens are validated against Google's userinfo endpoint)
	// but clients need a matching registration to obtain tokens.
	GoogleClientID     string
	GoogleClientSecret string

	// SupportedScopes lists the Google scopes advertised in the protected
	// resource metadata. Defaults to google.DefaultOAuthScopes.
	SupportedScopes []string

	// RateLimitRate is the per-IP request rate (requests per second) for
	// the OAuth and MCP endpoints. Zero disables rate limiting.
	RateLimitRate  int
	RateLimitBurst int

	// TrustProxy controls whether X-Forwarded-For / X-Real-IP headers are
	// trusted for rate limiting. Enable only behind a trusted proxy.
	TrustProxy bool

	// DisableStreaming disables SSE streaming on the MCP endpoint, forcing
	// plain JSON responses. Needed for some proxies and aggregators.
	DisableStreaming bool

	// Logger is used for OAuth-related logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// GoogleUserInfo represents the user information from Google's userinfo endpoint
type GoogleUserInfo struct {
	// Sub is the unique Google user ID
	Sub string `json:"sub"`

	// Email is the user's email address
	Email string `json:"email"`

	// EmailVerified indicates if the email is verified
	EmailVerified bool `json:"email_verified"`

	// Name is the user's full name
	Name string `json:"name"`

	// Picture is the URL of the user's profile picture
	Picture string `json:"picture"`

	// GivenName is the user's first name
	GivenName string `json:"given_name"`

	// FamilyName is the user's last name
	FamilyName string `json:"family_name"`

	// Locale is the user's preferred locale
	Locale string `json:"locale"`
}

// ProtectedResourceMetadata represents OAuth 2.0 Protected Resource Metadata (RFC 9728)
type ProtectedResourceMetadata struct {
	// Resource is the identifier for the protected resource
	Resource string `json:"resource"`

	// AuthorizationServers lists the authorization servers that can issue tokens for this resource
	AuthorizationServers []string `json:"authorization_servers"`

	// BearerMethodsSupported lists the ways Bearer tokens can be sent (RFC 6750)
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`

	// ScopesSupported lists the scopes understood by this resource
	ScopesSupported []string `json:"scopes_supported,omitempty"`
}

// ErrorResponse represents an OAuth error response
type ErrorResponse struct {
	// Error is the error code
	Error string `json:"error"`

	// ErrorDescription provides additional information
	ErrorDescription string `json:"error_description,omitempty"`
}

// OAuthHandler validates Google bearer tokens for the MCP HTTP transport.
// Validated tokens are cached in the token store, keyed by the user's email,
// so Google API clients can be built for the authenticated account.
type OAuthHandler struct {
	config      OAuthConfig
	store       storage.TokenStore
	rateLimiter *RateLimiter
	sessions    *SessionIDManager
	logger      *slog.Logger
	stopOnce    sync.Once

	// userinfoEndpoint is overridable for tests
	userinfoEndpoint string
}

// CreateOAuthHandler creates an OAuth handler for the HTTP transport.
// Creating the handler separately from the server allows the token provider
// to be built from its store before the server starts.
func CreateOAuthHandler(config OAuthConfig) (*OAuthHandler, error) {
	if err := validateHTTPSRequirement(config.BaseURL); err != nil {
		return nil, err
	}

	// Set default scopes if none provided
	if len(config.SupportedScopes) == 0 {
		config.SupportedScopes = google.DefaultOAuthScopes
	}

	// Set default logger if not provided
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Create IP-based rate limiter if configured
	var rateLimiter *RateLimiter
	if config.RateLimitRate > 0 {
		burst := config.RateLimitBurst
		if burst == 0 {
			burst = config.RateLimitRate * 2 // Default burst is 2x rate
		}
		rateLimiter = NewRateLimiter(config.RateLimitRate, burst, config.TrustProxy)
		logger.Info("IP-based rate limiting enabled",
			"rate", config.RateLimitRate,
			"burst", burst)
	}

	return &OAuthHandler{
		config:           config,
		store:            memory.New(),
		rateLimiter:      rateLimiter,
		logger:           logger,
		userinfoEndpoint: googleUserinfoEndpoint,
	}, nil
}

// GetStore returns the underlying token store (for building token providers)
func (h *OAuthHandler) GetStore() storage.TokenStore {
	return h.store
}

// GetConfig returns the OAuth configuration
func (h *OAuthHandler) GetConfig() OAuthConfig {
	return h.config
}

// SetSessionManager sets the session manager that tracks which account each
// bearer token belongs to. Optional; set by the OAuth HTTP server.
func (h *OAuthHandler) SetSessionManager(m *SessionIDManager) {
	h.sessions = m
}

// Stop stops the handler's background services (rate limiter eviction and
// token store cleanup). Safe to call more than once.
func (h *OAuthHandler) Stop() {
	h.stopOnce.Do(func() {
		if h.rateLimiter != nil {
			h.rateLimiter.Stop()
		}
		if s, ok := h.store.(interface{ Stop() }); ok {
			s.Stop()
		}
	})
}

// ServeProtectedResourceMetadata serves the OAuth 2.0 Protected Resource Metadata (RFC 9728)
//
// The MCP client will:
//  1. Make an unauthenticated request to the MCP server
//  2. Receive a 401 with WWW-Authenticate header pointing to this endpoint
//  3. Fetch this metadata to discover the authorization server (Google)
//  4. Obtain an access token from Google with the advertised scopes
//  5. Include the token in subsequent requests to the MCP server
func (h *OAuthHandler) ServeProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metadata := ProtectedResourceMetadata{
		Resource: h.config.BaseURL,
		AuthorizationServers: []string{
			googleAuthorizationServer,
		},
		BearerMethodsSupported: []string{
			"header", // Authorization: Bearer <token>
		},
		ScopesSupported: h.config.SupportedScopes,
	}

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		h.logger.Error("Failed to encode metadata", "error", err)
		http.Error(w, "Failed to encode metadata", http.StatusInternalServerError)
	}
}

// ValidateGoogleToken is middleware that validates Google OAuth tokens.
// It validates the token with Google's userinfo endpoint, stores user info
// in the request context, and caches the token for Google API clients.
func (h *OAuthHandler) ValidateGoogleToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			// Return 401 with WWW-Authenticate header pointing to resource metadata
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource"`,
				h.config.BaseURL,
			))
			h.writeUnauthorizedError(w, "missing_token", "Missing Authorization header")
			return
		}

		// Check for Bearer token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource", error="invalid_token", error_description="Invalid Authorization header format"`,
				h.config.BaseURL,
			))
			h.writeUnauthorizedError(w, "invalid_token", "Invalid Authorization header format")
			return
		}

		accessToken := parts[1]

		// Create OAuth2 token
		token := &oauth2.Token{
			AccessToken: accessToken,
			TokenType:   "Bearer",
		}

		// Validate token by calling Google's userinfo endpoint
		userInfo, err := h.getUserInfoFromGoogle(r.Context(), token)
		if err != nil {
			// Provide more actionable error messages based on error type
			errorDesc := getActionableErrorMessage(err)

			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource", error="invalid_token", error_description="%s"`,
				h.config.BaseURL,
				errorDesc,
			))
			h.writeUnauthorizedError(w, "invalid_token", errorDesc)
			return
		}

		// Store user info and token in context
		ctx := ContextWithUserInfo(r.Context(), userInfo)
		ctx = context.WithValue(ctx, tokenContextKey, token)

		// Save the token for this user so Google API clients can use it.
		// The user's email is the account identifier.
		storeCtx, cancel := context.WithTimeout(ctx, tokenStoreTimeout)
		if err := h.store.SaveToken(storeCtx, userInfo.Email, token); err != nil {
			// Log but don't fail - we can still process the request
			h.logger.Warn("Failed to save Google token", logging.UserHash(userInfo.Email), logging.Err(err))
		}
		cancel()

		// Record the bearer token to account mapping for this session
		if h.sessions != nil {
			if sessionID, err := h.sessions.ResolveSessionID(r); err == nil {
				h.sessions.SetAccountForSession(sessionID, userInfo.Email)
			}
		}

		// Call next handler
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getUserInfoFromGoogle validates a token by calling Google's userinfo endpoint
func (h *OAuthHandler) getUserInfoFromGoogle(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	// Create HTTP client with the token
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	// Call Google's userinfo endpoint
	resp, err := client.Get(h.userinfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	// Parse user info
	var userInfo GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &userInfo, nil
}

// ContextWithUserInfo returns a context carrying the authenticated user info.
// Set by the OAuth middleware; exported so other transports and tests can
// inject an authenticated user.
func ContextWithUserInfo(ctx context.Context, userInfo *GoogleUserInfo) context.Context {
	return context.WithValue(ctx, userContextKey, userInfo)
}

// GetUserFromContext retrieves the Google user info from the request context
func GetUserFromContext(ctx context.Context) (*GoogleUserInfo, bool) {
	userInfo, ok := ctx.Value(userContextKey).(*GoogleUserInfo)
	return userInfo, ok
}

// GetGoogleTokenFromContext retrieves the Google token from the request context
func GetGoogleTokenFromContext(ctx context.Context) (*oauth2.Token, bool) {
	token, ok := ctx.Value(tokenContextKey).(*oauth2.Token)
	return token, ok
}

// setSecurityHeaders sets security headers on HTTP responses
func (h *OAuthHandler) setSecurityHeaders(w http.ResponseWriter) {
	// Prevent clickjacking attacks
	w.Header().Set("X-Frame-Options", "DENY")

	// Prevent MIME type sniffing
	w.Header().Set("X-Content-Type-Options", "nosniff")

	// Content Security Policy - restrict resource loading
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

	// Referrer policy - don't leak referrer information
	w.Header().Set("Referrer-Policy", "no-referrer")

	// For HTTPS resources, enforce HTTPS for 1 year
	if u, err := url.Parse(h.config.BaseURL); err == nil && u.Scheme == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}

// writeError is a helper to write OAuth error responses
func (h *OAuthHandler) writeError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	h.logger.Debug("OAuth error", "code", errorCode, "description", description, "status", statusCode)
	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}

// writeUnauthorizedError writes an OAuth error response with 401 status
func (h *OAuthHandler) writeUnauthorizedError(w http.ResponseWriter, errorCode, description string) {
	h.writeError(w, errorCode, description, http.StatusUnauthorized)
}

// getActionableErrorMessage converts technical errors into user-friendly, actionable messages
func getActionableErrorMessage(err error) string {
	errStr := err.Error()

	// Check for common error patterns and provide actionable guidance
	if strings.Contains(errStr, "401") || strings.Contains(errStr, "Unauthorized") {
		return "Google token is invalid or expired. Please re-authenticate through your MCP client to continue."
	}

	if strings.Contains(errStr, "403") || strings.Contains(errStr, "Forbidden") {
		return "Access denied by Google. Please ensure your token has the required scopes and re-authenticate through your MCP client."
	}

	if strings.Contains(errStr, "network") || strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") || strings.Contains(errStr, "dial") {
		return "Unable to verify token with Google due to network issues. Please try again in a moment."
	}

	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return "Google API rate limit exceeded. Please wait a moment and try again."
	}

	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") {
		return "Google authentication service is temporarily unavailable. Please try again in a few minutes."
	}

	// Default message with error details
	return fmt.Sprintf("Token validation failed: %v. Please re-authenticate through your MCP client.", err)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCreateOAuthHandler(t *testing.T) {
	handler, err := CreateOAuthHandler(OAuthConfig{
		BaseURL: "https://smartinbox.example.com",
	})
	if err != nil {
		t.Fatalf("CreateOAuthHandler() error = %v", err)
	}
	defer handler.Stop()

	if handler.GetStore() == nil {
		t.Error("CreateOAuthHandler() should create a token store")
	}
	if len(handler.GetConfig().SupportedScopes) == 0 {
		t.Error("CreateOAuthHandler() should apply default scopes")
	}
	if handler.rateLimiter != nil {
		t.Error("CreateOAuthHandler() should not create a rate limiter when rate is zero")
	}
}

func TestCreateOAuthHandler_RequiresHTTPS(t *testing.T) {
	_, err := CreateOAuthHandler(OAuthConfig{
		BaseURL: "http://smartinbox.example.com",
	})
	if err == nil {
		t.Error("CreateOAuthHandler() should reject http URLs for non-localhost hosts")
	}
}

func TestCreateOAuthHandler_AllowsLocalhostHTTP(t *testing.T) {
	handler, err := CreateOAuthHandler(OAuthConfig{
		BaseURL: "http://localhost:8080",
	})
	if err != nil {
		t.Fatalf("CreateOAuthHandler() error = %v", err)
	}
	handler.Stop()
}

func TestCreateOAuthHandler_DefaultBurst(t *testing.T) {
	handler, err := CreateOAuthHandler(OAuthConfig{
		BaseURL:       "https://smartinbox.example.com",
		RateLimitRate: 10,
	})
	if err != nil {
		t.Fatalf("CreateOAuthHandler() error = %v", err)
	}
	defer handler.Stop()

	if handler.rateLimiter == nil {
		t.Fatal("CreateOAuthHandler() should create a rate limiter when rate is set")
	}
	if handler.rateLimiter.burst != 20 {
		t.Errorf("default burst = %v, want %d (2x rate)", handler.rateLimiter.burst, 20)
	}
}

func TestServeProtectedResourceMetadata(t *testing.T) {
	handler, err := CreateOAuthHandler(OAuthConfig{
		BaseURL:         "https://smartinbox.example.com",
		SupportedScopes: []string{"openid", "https://www.googleapis.com/auth/gmail.readonly"},
	})
	if err != nil {
		t.Fatalf("CreateOAuthHandler() error = %v", err)
	}
	defer handler.Stop()

	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil)
	w := httptest.NewRecorder()

	handler.ServeProtectedResourceMetadata(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ServeProtectedResourceMetadata() status = %d, want %d", w.Code, http.StatusOK)
	}

	var metadata ProtectedResourceMetadata
	if err := json.NewDecoder(w.Body).Decode(&metadata); err != nil {
		t.Fatalf("Failed to decode metadata: %v", err)
	}

	if metadata.Resource != "https://smartinbox.example.com" {
		t.Errorf("Resource = %s, want https://smartinbox.example.com", metadata.Resource)
	}
	if len(metadata.AuthorizationServers) != 1 || metadata.AuthorizationServers[0] != "https://accounts.google.com" {
		t.Errorf("AuthorizationServers = %v, want [https://accounts.google.com]", metadata.AuthorizationServers)
	}
	if len(metadata.BearerMethodsSupported) != 1 || metadata.BearerMethodsSupported[0] != "header" {
		t.Errorf("BearerMethodsSupported = %v, want [header]", metadata.BearerMethodsSupported)
	}
	if len(metadata.ScopesSupported) != 2 {
		t.Errorf("ScopesSupported = %v, want the configured scopes", metadata.ScopesSupported)
	}

	// Security headers should be set
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("ServeProtectedResourceMetadata() should set X-Frame-Options")
	}
	if w.Header().Get("Strict-Transport-Security") == "" {
		t.Error("ServeProtectedResourceMetadata() should set HSTS for https resources")
	}
}

func TestServeProtectedResourceMetadata_MethodNotAllowed(t *testing.T) {
	handler, err := CreateOAuthHandler(OAuthConfig{
		BaseURL: "https://smartinbox.example.com",
	})
	if err != nil {
		t.Fatalf("CreateOAuthHandler() error = %v", err)
	}
	defer handler.Stop()

	req := httptest.NewRequest(http.MethodPost, "/.well-known/oauth-protected-resource", nil)
	w := httptest.NewRecorder()

	handler.ServeProtectedResourceMetadata(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("ServeProtectedResourceMetadata() status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestValidateGoogleToken_MissingHeader(t *testing.T) {
	handler, err := CreateOAuthHandler(OAuthConfig{
		BaseURL: "https://smartinbox.example.com",
	})
	if err != nil {
		t.Fatalf("CreateOAuthHandler() error = %v", err)
	}
	defer handler.Stop()

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called")
	})

	wrappedHandler := handler.ValidateGoogleToken(testHandler)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("ValidateGoogleToken() status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	// The WWW-Authenticate header must point clients at the resource metadata
	wwwAuth := w.Header().Get("WWW-Authenticate")
	if wwwAuth == "" {
		t.Fatal("ValidateGoogleToken() should set WWW-Authenticate header")
	}
	if !strings.Contains(wwwAuth, "resource_metadata=") {
		t.Errorf("WWW-Authenticate = %q, want resource_metadata hint", wwwAuth)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp.Error != "missing_token" {
		t.Errorf("error = %s, want missing_token", errResp.Error)
	}
}

func TestValidateGoogleToken_InvalidFormat(t *testing.T) {
	handler, err := CreateOAuthHandler(OAuthConfig{
		BaseURL: "https://smartinbox.example.com",
	})
	if err != nil {
		t.Fatalf("CreateOAuthHandler() error = %v", err)
	}
	defer handler.Stop()

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called")
	})

	wrappedHandler := handler.ValidateGoogleToken(testHandler)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "InvalidFormat")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("ValidateGoogleToken() status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp.Error != "invalid_token" {
		t.Errorf("error = %s, want invalid_token", errResp.Error)
	}
}

func TestValidateGoogleToken_ValidToken(t *testing.T) {
	// Stand in for Google's userinfo endpoint
	userinfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-access-token" {
			t.Errorf("userinfo Authorization = %q, want Bearer test-access-token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sub":"12345","email":"user@example.com","email_verified":true,"name":"Test User"}`))
	}))
	defer userinfo.Close()

	handler, err := CreateOAuthHandler(OAuthConfig{
		BaseURL: "https://smartinbox.example.com",
	})
	if err != nil {
		t.Fatalf("CreateOAuthHandler() error = %v", err)
	}
	defer handler.Stop()
	handler.userinfoEndpoint = userinfo.URL

	sessions := NewSessionIDManagerWithTimeout(time.Hour)
	defer sessions.Stop()
	handler.SetSessionManager(sessions)

	var gotUser *GoogleUserInfo
	nextCalled := false
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		gotUser, _ = GetUserFromContext(r.Context())
		token, ok := GetGoogleTokenFromContext(r.Context())
		if !ok || token.AccessToken != "test-access-token" {
			t.Errorf("context token = %+v, want access token test-access-token", token)
		}
		w.WriteHeader(http.StatusOK)
	})

	wrappedHandler := handler.ValidateGoogleToken(testHandler)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer test-access-token")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ValidateGoogleToken() status = %d, want %d", w.Code, http.StatusOK)
	}
	if !nextCalled {
		t.Fatal("ValidateGoogleToken() should call the next handler for a valid token")
	}
	if gotUser == nil || gotUser.Email != "user@example.com" {
		t.Errorf("context user = %+v, want email user@example.com", gotUser)
	}

	// The validated token is cached so Gmail clients can be built for the account
	stored, err := handler.GetStore().GetToken(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("GetToken() after validation error = %v", err)
	}
	if stored.AccessToken != "test-access-token" {
		t.Errorf("stored AccessToken = %s, want test-access-token", stored.AccessToken)
	}

	// The session is mapped to the authenticated account
	sessionID, err := sessions.ResolveSessionID(req)
	if err != nil {
		t.Fatalf("ResolveSessionID() error = %v", err)
	}
	if got := sessions.GetAccountForSession(sessionID); got != "user@example.com" {
		t.Errorf("GetAccountForSession() = %s, want user@example.com", got)
	}
}

func TestValidateGoogleToken_RejectedToken(t *testing.T) {
	userinfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer userinfo.Close()

	handler, err := CreateOAuthHandler(OAuthConfig{
		BaseURL: "https://smartinbox.example.com",
	})
	if err != nil {
		t.Fatalf("CreateOAuthHandler() error = %v", err)
	}
	defer handler.Stop()
	handler.userinfoEndpoint = userinfo.URL

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called with a rejected token")
	})

	wrappedHandler := handler.ValidateGoogleToken(testHandler)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer revoked-token")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("ValidateGoogleToken() status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp.Error != "invalid_token" {
		t.Errorf("error = %s, want invalid_token", errResp.Error)
	}
	if !strings.Contains(errResp.ErrorDescription, "re-authenticate") {
		t.Errorf("error_description = %q, want re-authentication guidance", errResp.ErrorDescription)
	}
}

func TestGetUserFromContext(t *testing.T) {
	// Test with empty context (should not panic)
	ctx := context.Background()
	user, ok := GetUserFromContext(ctx)
	if ok {
		t.Error("GetUserFromContext() should return false for empty context")
	}
	if user != nil {
		t.Error("GetUserFromContext() should return nil user for empty context")
	}
}

func TestGetGoogleTokenFromContext(t *testing.T) {
	// Test with empty context (should not panic)
	ctx := context.Background()
	token, ok := GetGoogleTokenFromContext(ctx)
	if ok {
		t.Error("GetGoogleTokenFromContext() should return false for empty context")
	}
	if token != nil {
		t.Error("GetGoogleTokenFromContext() should return nil token for empty context")
	}
}

func TestGetActionableErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "unauthorized",
			err:  errors.New("userinfo request failed with status 401"),
			want: "invalid or expired",
		},
		{
			name: "forbidden",
			err:  errors.New("userinfo request failed with status 403"),
			want: "Access denied",
		},
		{
			name: "network failure",
			err:  errors.New("failed to get user info: dial tcp: connection refused"),
			want: "network issues",
		},
		{
			name: "rate limited",
			err:  errors.New("userinfo request failed with status 429"),
			want: "rate limit",
		},
		{
			name: "server error",
			err:  errors.New("userinfo request failed with status 503"),
			want: "temporarily unavailable",
		},
		{
			name: "unknown error",
			err:  errors.New("unexpected response payload"),
			want: "Token validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := getActionableErrorMessage(tt.err)
			if !strings.Contains(got, tt.want) {
				t.Errorf("getActionableErrorMessage() = %q, want substring %q", got, tt.want)
			}
		})
	}
}

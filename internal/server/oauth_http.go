package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/gokturkhatay/smartinbox/internal/instrumentation"
)

// OAuthHTTPServer wraps an MCP server with OAuth 2.1 authentication.
// It implements RFC 9728 Protected Resource Metadata so MCP clients can
// discover Google as the authorization server, and validates Google bearer
// tokens on the MCP endpoint.
type OAuthHTTPServer struct {
	mcpServer        *mcpserver.MCPServer
	oauthHandler     *OAuthHandler
	httpServer       *http.Server
	serverType       string // "streamable-http"
	disableStreaming bool
	certFile         string
	keyFile          string

	sessions      *SessionIDManager
	healthChecker *HealthChecker
	metrics       *instrumentation.Metrics
}

// NewOAuthHTTPServer creates a new OAuth-enabled HTTP server for MCP,
// creating its own OAuth handler from the given configuration.
func NewOAuthHTTPServer(mcpServer *mcpserver.MCPServer, serverType string, config OAuthConfig) (*OAuthHTTPServer, error) {
	oauthHandler, err := CreateOAuthHandler(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth handler: %w", err)
	}

	return NewOAuthHTTPServerWithHandler(mcpServer, serverType, oauthHandler, config.DisableStreaming)
}

// NewOAuthHTTPServerWithHandler creates a new OAuth-enabled HTTP server with
// an existing handler. This allows the token provider to be created from the
// handler's store before the server starts.
func NewOAuthHTTPServerWithHandler(mcpServer *mcpserver.MCPServer, serverType string, oauthHandler *OAuthHandler, disableStreaming bool) (*OAuthHTTPServer, error) {
	return NewOAuthHTTPServerWithHandlerAndTLS(mcpServer, serverType, oauthHandler, disableStreaming, "", "")
}

// NewOAuthHTTPServerWithHandlerAndTLS creates a new OAuth-enabled HTTP server
// that serves TLS with the given certificate and key files. Empty cert and
// key fall back to plain HTTP (loopback only, per OAuth 2.1).
func NewOAuthHTTPServerWithHandlerAndTLS(mcpServer *mcpserver.MCPServer, serverType string, oauthHandler *OAuthHandler, disableStreaming bool, certFile, keyFile string) (*OAuthHTTPServer, error) {
	if oauthHandler == nil {
		return nil, fmt.Errorf("OAuth handler is required")
	}

	return &OAuthHTTPServer{
		mcpServer:        mcpServer,
		oauthHandler:     oauthHandler,
		serverType:       serverType,
		disableStreaming: disableStreaming,
		certFile:         certFile,
		keyFile:          keyFile,
		sessions:         NewSessionIDManager(),
	}, nil
}

// SetHealthChecker sets the health checker whose endpoints are exposed by
// this server (/healthz, /readyz, /healthz/detailed).
func (s *OAuthHTTPServer) SetHealthChecker(h *HealthChecker) {
	s.healthChecker = h
}

// SetMetrics enables HTTP and OAuth metrics recording for this server.
func (s *OAuthHTTPServer) SetMetrics(m *instrumentation.Metrics) {
	s.metrics = m
	if s.sessions != nil {
		s.sessions.SetMetrics(m)
	}
}

// Start starts the OAuth-enabled HTTP server
func (s *OAuthHTTPServer) Start(addr string) error {
	// Validate HTTPS requirement for OAuth 2.1
	// Exception: localhost is allowed to use HTTP for development
	baseURL := s.oauthHandler.GetConfig().BaseURL
	if err := validateHTTPSRequirement(baseURL); err != nil {
		return err
	}

	// Let the OAuth middleware record which account each bearer token maps to
	s.oauthHandler.SetSessionManager(s.sessions)

	mux := http.NewServeMux()

	// Protected Resource Metadata endpoint (RFC 9728)
	// This tells MCP clients where to find the authorization server (Google)
	metadataHandler := http.HandlerFunc(s.oauthHandler.ServeProtectedResourceMetadata)
	mux.Handle("/.well-known/oauth-protected-resource", s.oauthHandler.RateLimitMiddleware(
		s.instrumentationMiddleware(metadataHandler)))

	// Health endpoints are served unauthenticated for Kubernetes probes
	if s.healthChecker != nil {
		s.healthChecker.RegisterHealthEndpoints(mux)
	}

	// Register MCP endpoints based on server type
	switch s.serverType {
	case "streamable-http":
		// Create Streamable HTTP server
		var httpServer http.Handler
		if s.disableStreaming {
			httpServer = mcpserver.NewStreamableHTTPServer(s.mcpServer,
				mcpserver.WithEndpointPath("/mcp"),
				mcpserver.WithDisableStreaming(true),
			)
		} else {
			httpServer = mcpserver.NewStreamableHTTPServer(s.mcpServer,
				mcpserver.WithEndpointPath("/mcp"),
			)
		}

		// Wrap MCP endpoint with rate limiting, instrumentation, and OAuth middleware
		mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpServer.ServeHTTP(w, r)
		})
		mux.Handle("/mcp", s.oauthHandler.RateLimitMiddleware(
			s.instrumentationMiddleware(
				s.oauthInstrumentationWrapper(
					s.oauthHandler.ValidateGoogleToken(mcpHandler)))))

	default:
		return fmt.Errorf("unsupported server type: %s", s.serverType)
	}

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server
	if s.certFile != "" && s.keyFile != "" {
		return s.httpServer.ListenAndServeTLS(s.certFile, s.keyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server. The OAuth handler itself is
// owned by the caller that created it and is stopped separately.
func (s *OAuthHTTPServer) Shutdown(ctx context.Context) error {
	if s.sessions != nil {
		s.sessions.Stop()
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// GetOAuthHandler returns the OAuth handler for testing or direct access
func (s *OAuthHTTPServer) GetOAuthHandler() *OAuthHandler {
	return s.oauthHandler
}

// responseWriter wraps http.ResponseWriter to capture the status code
// written by downstream handlers.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through to the underlying writer so SSE streaming keeps
// working behind the instrumentation middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// instrumentationMiddleware records HTTP request metrics (method, path,
// status, duration). Passes through unchanged when metrics are not set.
func (s *OAuthHTTPServer) instrumentationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}

// oauthInstrumentationWrapper records authentication outcomes for requests
// passing through the OAuth validation middleware. Passes through unchanged
// when metrics are not set.
func (s *OAuthHTTPServer) oauthInstrumentationWrapper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		result := instrumentation.OAuthResultSuccess
		if rw.statusCode == http.StatusUnauthorized {
			result = instrumentation.OAuthResultFailure
		}
		s.metrics.RecordOAuthAuth(r.Context(), result)
	})
}

// validateHTTPSRequirement ensures OAuth 2.1 HTTPS compliance
// Allows HTTP only for loopback addresses (localhost, 127.0.0.1, ::1)
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	// Parse URL to properly validate scheme and host
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	// Allow HTTP only for loopback addresses
	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth 2.1 requires HTTPS for production (got: %s). Use HTTPS or localhost for development", baseURL)
		}
	} else if u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}

	return nil
}

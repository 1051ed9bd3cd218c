package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/gokturkhatay/smartinbox/internal/classify"
	"github.com/gokturkhatay/smartinbox/internal/embeddings"
	"github.com/gokturkhatay/smartinbox/internal/instrumentation"
	"github.com/gokturkhatay/smartinbox/internal/logging"
	"github.com/gokturkhatay/smartinbox/internal/resources"
	"github.com/gokturkhatay/smartinbox/internal/server"
	"github.com/gokturkhatay/smartinbox/internal/store"
	"github.com/gokturkhatay/smartinbox/internal/tools/classify_tools"
	"github.com/gokturkhatay/smartinbox/internal/tools/google_tools"
	"github.com/gokturkhatay/smartinbox/internal/tools/inbox_tools"
)

// OAuthSettings holds OAuth resource-server settings for the HTTP transport
type OAuthSettings struct {
	// RateLimitRate is the per-IP request rate (requests per second). Zero disables rate limiting.
	RateLimitRate int

	// RateLimitBurst is the per-IP burst size. Zero means 2x the rate.
	RateLimitBurst int

	// TrustProxy controls whether X-Forwarded-For / X-Real-IP headers are trusted
	TrustProxy bool

	// TLS/HTTPS support
	TLSCertFile string
	TLSKeyFile  string
}

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode          bool
		transport          string
		addr               string
		googleClientID     string
		googleClientSecret string
		disableStreaming   bool
		baseURL            string
		dbPath             string
		// Embedding provider settings
		embedderName   string
		embeddingModel string
		ollamaURL      string
		// OAuth resource server settings (HTTP transport only)
		rateLimitRate  int
		rateLimitBurst int
		trustProxy     bool
		// TLS/HTTPS support
		tlsCertFile string
		tlsKeyFile  string
		// Metrics server configuration
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server to provide email
classification tools for AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport

OAuth Configuration:
  HTTP Transport:
    Base URL (required for deployed instances):
      --base-url https://your-domain.com OR MCP_BASE_URL env var
      Auto-detected for localhost (development only)

    Clients authenticate with Google bearer tokens. The server validates
    each token against Google's userinfo endpoint and advertises Google
    as the authorization server via RFC 9728 resource metadata.

  STDIO Transport:
    Google tokens come from the local file cache.
    Run 'smartinbox auth' before starting the server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load TLS paths from environment if not provided via flags
			if tlsCertFile == "" {
				tlsCertFile = os.Getenv("TLS_CERT_FILE")
			}
			if tlsKeyFile == "" {
				tlsKeyFile = os.Getenv("TLS_KEY_FILE")
			}

			oauthSettings := OAuthSettings{
				RateLimitRate:  rateLimitRate,
				RateLimitBurst: rateLimitBurst,
				TrustProxy:     trustProxy,
				TLSCertFile:    tlsCertFile,
				TLSKeyFile:     tlsKeyFile,
			}
			loadOAuthEnvVars(cmd, &oauthSettings)

			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}
			loadMetricsEnvVars(cmd, &metricsConfig)

			if dbPath == "" {
				dbPath = os.Getenv("SMARTINBOX_DB")
			}

			embedderConfig := resolveEmbedderConfig(cmd, embedderName, embeddingModel, ollamaURL)

			return runServe(transport, debugMode, addr, googleClientID, googleClientSecret, disableStreaming, baseURL, dbPath, embedderConfig, oauthSettings, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().StringVar(&googleClientID, "google-client-id", "", "Google OAuth Client ID advertised to MCP clients (HTTP transport only). Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&googleClientSecret, "google-client-secret", "", "Google OAuth Client Secret (HTTP transport only). Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().BoolVar(&disableStreaming, "disable-streaming", false, "Disable streaming for HTTP transport (for compatibility with certain clients)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Public base URL for OAuth (HTTP transport only). Required for deployed instances. Can also use MCP_BASE_URL env var. Example: https://mcp.example.com")
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to the local SQLite database. Can also use SMARTINBOX_DB env var. Default: ~/.cache/smartinbox/smartinbox.db")
	addEmbedderFlags(cmd, &embedderName, &embeddingModel, &ollamaURL)

	// OAuth resource server settings (HTTP transport only)
	cmd.Flags().IntVar(&rateLimitRate, "rate-limit", 10, "Per-IP request rate limit in requests per second for the HTTP transport (0 disables). Can also use MCP_RATE_LIMIT env var.")
	cmd.Flags().IntVar(&rateLimitBurst, "rate-limit-burst", 0, "Per-IP burst size for rate limiting (0 means 2x the rate). Can also use MCP_RATE_LIMIT_BURST env var.")
	cmd.Flags().BoolVar(&trustProxy, "trust-proxy", false, "Trust X-Forwarded-For / X-Real-IP headers for rate limiting. Enable only behind a trusted proxy. Can also use MCP_TRUST_PROXY env var.")

	// TLS flags for HTTPS support
	cmd.Flags().StringVar(&tlsCertFile, "tls-cert-file", "", "Path to TLS certificate file (PEM format). If provided with --tls-key-file, enables HTTPS. Can also use TLS_CERT_FILE env var.")
	cmd.Flags().StringVar(&tlsKeyFile, "tls-key-file", "", "Path to TLS private key file (PEM format). If provided with --tls-cert-file, enables HTTPS. Can also use TLS_KEY_FILE env var.")

	// Metrics server flags
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(transport string, debugMode bool, addr string, googleClientID, googleClientSecret string, disableStreaming bool, baseURL string, dbPath string, embedderConfig embeddings.Config, oauthSettings OAuthSettings, metricsConfig MetricsConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			if transport != "stdio" {
				log.Printf("Error during instrumentation shutdown: %v", err)
			}
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if transport != "stdio" && metricsConfig.Enabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		// Wait for metrics server to be ready or fail
		select {
		case <-metricsReady:
			log.Printf("Metrics server started on %s", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	// Build the embedding provider and classification engine
	embedder, err := embeddings.NewEmbedder(embedderConfig)
	if err != nil {
		return err
	}
	if provider.Enabled() {
		embedder = embeddings.NewInstrumentedEmbedder(embedder, embedderConfig.Provider, provider.Metrics())
	}
	defer embedder.Close()

	engine := classify.NewEngine(embedder)
	if transport != "stdio" {
		slog.Info("embedding provider configured",
			logging.Provider(embedderConfig.Provider),
			logging.Model(embedder.ModelVersion()))
	}

	// Warm the category registry ahead of the first tool call. Failure is
	// not fatal; initialization is retried on the first classification.
	go func() {
		if err := engine.Warmup(shutdownCtx); err != nil && transport != "stdio" {
			log.Printf("Warning: category registry warmup failed: %v", err)
		}
	}()

	// Open the local message store
	if dbPath == "" {
		dbPath, err = store.DefaultPath()
		if err != nil {
			return fmt.Errorf("failed to resolve database path: %w", err)
		}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open store at %s: %w", dbPath, err)
	}
	defer st.Close()

	// Get Google OAuth credentials from environment if not provided via flags
	if googleClientID == "" {
		googleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if googleClientSecret == "" {
		googleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}

	// Create server context (will be recreated for HTTP with OAuth token provider)
	serverContext, err := server.NewServerContext(shutdownCtx, engine, st)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}

	// Set metrics and audit logger on server context for tool instrumentation
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(nil, provider.AuditConfig()))
	}
	defer func() {
		// Shutdown metrics server first
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			if transport != "stdio" {
				log.Printf("Error during server context shutdown: %v", err)
			}
		}
	}()

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("smartinbox", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)

	// Register all tools and resources
	if err := registerAllTools(mcpSrv, serverContext); err != nil {
		return err
	}

	// Start the appropriate server based on transport type
	switch transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "streamable-http":
		fmt.Printf("Starting smartinbox MCP server with %s transport...\n", transport)
		return runStreamableHTTPServer(mcpSrv, serverContext, addr, shutdownCtx, debugMode, googleClientID, googleClientSecret, disableStreaming, baseURL, oauthSettings, metricsConfig, provider)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// registerAllTools registers all MCP tools and resources
// Extracted to avoid duplication in serve.go
func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext) error {
	// Define all tool registrations
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Classification",
			register: func() error {
				return classify_tools.RegisterClassifyTools(mcpSrv, ctx)
			},
		},
		{
			name: "Inbox",
			register: func() error {
				return inbox_tools.RegisterInboxTools(mcpSrv, ctx)
			},
		},
		{
			name: "Google OAuth",
			register: func() error {
				return google_tools.RegisterGoogleTools(mcpSrv, ctx)
			},
		},
		{
			name: "Category Resources",
			register: func() error {
				return resources.RegisterCategoryResources(mcpSrv, ctx)
			},
		},
	}

	// Register all tools
	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}

func runStreamableHTTPServer(mcpSrv *mcpserver.MCPServer, oldServerContext *server.ServerContext, addr string, ctx context.Context, debugMode bool, googleClientID, googleClientSecret string, disableStreaming bool, baseURL string, oauthSettings OAuthSettings, metricsConfig MetricsConfig, instrProvider *instrumentation.Provider) error {
	// Determine base URL from flag, environment variable, or auto-detection
	if baseURL == "" {
		baseURL = os.Getenv("MCP_BASE_URL")
	}
	if baseURL == "" {
		// Fall back to auto-detection for local development
		baseURL = fmt.Sprintf("http://%s", addr)
		if addr[0] == ':' {
			baseURL = fmt.Sprintf("http://localhost%s", addr)
		}
		log.Printf("No base URL configured, using auto-detected: %s", baseURL)
		log.Printf("For deployed instances, set --base-url flag or MCP_BASE_URL env var")
	} else {
		log.Printf("Using configured base URL: %s", baseURL)
	}

	// Create OAuth handler
	oauthConfig := server.OAuthConfig{
		BaseURL:            baseURL,
		GoogleClientID:     googleClientID,
		GoogleClientSecret: googleClientSecret,
		RateLimitRate:      oauthSettings.RateLimitRate,
		RateLimitBurst:     oauthSettings.RateLimitBurst,
		TrustProxy:         oauthSettings.TrustProxy,
		DisableStreaming:   disableStreaming,
	}
	if debugMode {
		oauthConfig.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	oauthHandler, err := server.CreateOAuthHandler(oauthConfig)
	if err != nil {
		return fmt.Errorf("failed to create OAuth handler: %w", err)
	}
	defer oauthHandler.Stop() // Ensure cleanup

	// Create token provider from OAuth store with metrics for observability
	var tokenProvider *server.TokenProvider
	if instrProvider != nil && instrProvider.Enabled() {
		tokenProvider = server.NewTokenProviderWithMetrics(oauthHandler.GetStore(), instrProvider.Metrics())
	} else {
		tokenProvider = server.NewTokenProvider(oauthHandler.GetStore())
	}

	// Recreate server context with OAuth token provider
	// This ensures Gmail clients use tokens from OAuth authentication
	engine := oldServerContext.Engine()
	st := oldServerContext.Store()

	// Shutdown old context and create new one with OAuth token provider
	if err := oldServerContext.Shutdown(); err != nil {
		log.Printf("Warning: failed to shutdown old server context: %v", err)
	}

	serverContext, err := server.NewServerContextWithProvider(ctx, engine, st, tokenProvider)
	if err != nil {
		return fmt.Errorf("failed to create server context with OAuth token provider: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			log.Printf("Error during server context shutdown: %v", err)
		}
	}()

	// Set metrics and audit logger on server context for tool instrumentation
	if instrProvider != nil && instrProvider.Enabled() {
		serverContext.SetMetrics(instrProvider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(nil, instrProvider.AuditConfig()))
	}

	// Re-register all tools with the new context
	if err := registerAllTools(mcpSrv, serverContext); err != nil {
		return err
	}

	// Create OAuth server with existing handler
	oauthServer, err := server.NewOAuthHTTPServerWithHandlerAndTLS(mcpSrv, "streamable-http", oauthHandler, disableStreaming, oauthSettings.TLSCertFile, oauthSettings.TLSKeyFile)
	if err != nil {
		return fmt.Errorf("failed to create OAuth HTTP server: %w", err)
	}

	// Set up health checker for health check endpoints
	healthChecker := server.NewHealthChecker(serverContext)
	oauthServer.SetHealthChecker(healthChecker)

	// Set up HTTP instrumentation for metrics
	if instrProvider != nil && instrProvider.Enabled() {
		oauthServer.SetMetrics(instrProvider.Metrics())
	}

	fmt.Printf("Streamable HTTP server with Google OAuth authentication starting on %s\n", addr)
	fmt.Printf("  HTTP endpoint: /mcp\n")
	fmt.Printf("  Health endpoints: /healthz, /readyz\n")
	fmt.Printf("  OAuth metadata: /.well-known/oauth-protected-resource\n")
	fmt.Printf("  Authorization Server: https://accounts.google.com\n")
	if metricsConfig.Enabled {
		fmt.Printf("  Metrics endpoint: %s/metrics\n", metricsConfig.Addr)
	}

	fmt.Println("\nClients must authenticate with Google OAuth to access this server.")
	fmt.Println("The MCP client will handle the OAuth flow automatically.")

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := oauthServer.Start(addr); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("Shutdown signal received, stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := oauthServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		fmt.Println("HTTP server stopped normally")
	}

	fmt.Println("HTTP server gracefully stopped")
	return nil
}

// loadOAuthEnvVars loads OAuth resource-server settings from environment
// variables. Environment variables only override flag values when the flag
// was not explicitly set.
func loadOAuthEnvVars(cmd *cobra.Command, settings *OAuthSettings) {
	if !cmd.Flags().Changed("rate-limit") {
		if rateStr := os.Getenv("MCP_RATE_LIMIT"); rateStr != "" {
			if rate, err := strconv.Atoi(rateStr); err == nil && rate >= 0 {
				settings.RateLimitRate = rate
			}
		}
	}

	if !cmd.Flags().Changed("rate-limit-burst") {
		if burstStr := os.Getenv("MCP_RATE_LIMIT_BURST"); burstStr != "" {
			if burst, err := strconv.Atoi(burstStr); err == nil && burst >= 0 {
				settings.RateLimitBurst = burst
			}
		}
	}

	if !cmd.Flags().Changed("trust-proxy") {
		if os.Getenv("MCP_TRUST_PROXY") == "true" {
			settings.TrustProxy = true
		}
	}
}

// loadMetricsEnvVars loads metrics server settings from environment
// variables. Environment variables only override flag values when the flag
// was not explicitly set.
func loadMetricsEnvVars(cmd *cobra.Command, config *MetricsConfig) {
	if !cmd.Flags().Changed("metrics-enabled") {
		if enabledStr := os.Getenv("METRICS_ENABLED"); enabledStr != "" {
			if enabled, err := strconv.ParseBool(enabledStr); err == nil {
				config.Enabled = enabled
			}
		}
	}

	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			config.Addr = addr
		}
	}
}

package instrumentation

import (
	"fmt"
	"os"
	"strconv"
)

// Config controls the OpenTelemetry setup: which exporters run, how traces
// are sampled, and how the service identifies itself in telemetry.
type Config struct {
	// ServiceName identifies this service in telemetry (default "smartinbox").
	ServiceName string

	// ServiceVersion is stamped on all telemetry.
	ServiceVersion string

	// ServiceInstanceID distinguishes instances; defaults to the hostname.
	ServiceInstanceID string

	// K8sNamespace and K8sPodName are added as resource attributes when
	// running in Kubernetes.
	K8sNamespace string
	K8sPodName   string

	// Enabled turns instrumentation on or off entirely.
	Enabled bool

	// MetricsExporter is one of ExporterPrometheus (default), ExporterOTLP
	// or ExporterStdout.
	MetricsExporter string

	// TracingExporter is one of ExporterNone (default), ExporterOTLP or
	// ExporterStdout.
	TracingExporter string

	// OTLPEndpoint is the collector endpoint, host:port without a scheme.
	// Required when either exporter is ExporterOTLP.
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP export. Only for local collectors;
	// spans carry mailbox metadata that should be encrypted in transit.
	OTLPInsecure bool

	// TraceSamplingRate is the parent-based sampling ratio, 0.0 to 1.0.
	TraceSamplingRate float64

	// DetailedLabels adds high-cardinality metric labels such as account
	// names. Keep off in production.
	DetailedLabels bool

	// AuditLogging configures the tool invocation audit trail.
	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig controls the audit trail of MCP tool invocations.
type AuditLoggingConfig struct {
	// Enabled turns audit logging on or off (default on).
	Enabled bool

	// IncludePII logs full email addresses instead of domains. Only
	// enable when the audit stream goes to access-controlled storage.
	IncludePII bool
}

// DefaultConfig builds a Config from the environment:
//
//	OTEL_SERVICE_NAME               service name (default "smartinbox")
//	OTEL_SERVICE_INSTANCE_ID        instance id (default hostname)
//	K8S_NAMESPACE / POD_NAMESPACE   Kubernetes namespace
//	K8S_POD_NAME / HOSTNAME         Kubernetes pod name
//	INSTRUMENTATION_ENABLED         master switch (default true)
//	METRICS_EXPORTER                prometheus, otlp or stdout
//	TRACING_EXPORTER                none, otlp or stdout
//	OTEL_EXPORTER_OTLP_ENDPOINT     OTLP collector endpoint
//	OTEL_EXPORTER_OTLP_INSECURE     disable TLS for OTLP (default false)
//	OTEL_TRACES_SAMPLER_ARG         sampling ratio (default 0.1)
//	METRICS_DETAILED_LABELS         high-cardinality labels (default false)
//	AUDIT_LOGGING_ENABLED           audit trail (default true)
//	AUDIT_LOGGING_INCLUDE_PII       full emails in audit logs (default false)
func DefaultConfig() Config {
	return Config{
		ServiceName:       envString("OTEL_SERVICE_NAME", "smartinbox"),
		ServiceVersion:    "unknown",
		ServiceInstanceID: envString("OTEL_SERVICE_INSTANCE_ID", ""),
		K8sNamespace:      envString("K8S_NAMESPACE", envString("POD_NAMESPACE", "")),
		K8sPodName:        envString("K8S_POD_NAME", envString("HOSTNAME", "")),
		Enabled:           envBool("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:   envString("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:   envString("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:      envString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:      envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate: envFloat("OTEL_TRACES_SAMPLER_ARG", 0.1),
		DetailedLabels:    envBool("METRICS_DETAILED_LABELS", false),
		AuditLogging: AuditLoggingConfig{
			Enabled:    envBool("AUDIT_LOGGING_ENABLED", true),
			IncludePII: envBool("AUDIT_LOGGING_INCLUDE_PII", false),
		},
	}
}

// Validate reports configuration errors before the provider is built.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterStdout:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
		}
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	switch c.TracingExporter {
	case "", ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
		}
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// Label values shared between metrics and audit logging.
const (
	// Request status
	StatusSuccess = "success"
	StatusError   = "error"

	// OAuth results
	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"
	OAuthResultExpired = "expired"

	// Backing services
	ServiceGmail = "gmail"

	// Embedding providers
	ProviderOllama = "ollama"
	ProviderVoyage = "voyage"

	// Feedback outcomes
	FeedbackConfirmed = "confirmed"
	FeedbackCorrected = "corrected"

	// Per-message sync outcomes
	SyncResultClassified = "classified"
	SyncResultSkipped    = "skipped"
	SyncResultLabeled    = "labeled"

	// Exporter kinds
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

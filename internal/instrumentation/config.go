package instrumentation

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the OpenTelemetry instrumentation settings.
type Config struct {
	// ServiceName identifies the service in exported telemetry
	// (default: obsidian-remote-mcp).
	ServiceName string

	// ServiceVersion is stamped on the telemetry resource.
	ServiceVersion string

	// ServiceInstanceID uniquely identifies this instance. Defaults to
	// the hostname, which under Kubernetes is the pod name.
	ServiceInstanceID string

	// K8sNamespace is attached as a resource attribute when set.
	K8sNamespace string

	// K8sPodName is attached as a resource attribute when set.
	K8sPodName string

	// Enabled turns instrumentation on (default: true). Set
	// INSTRUMENTATION_ENABLED=false to disable metrics and tracing.
	Enabled bool

	// MetricsExporter selects the metrics exporter: "prometheus",
	// "otlp", or "stdout" (default: "prometheus").
	MetricsExporter string

	// TracingExporter selects the tracing exporter: "otlp", "stdout",
	// or "none" (default: "none").
	TracingExporter string

	// OTLPEndpoint is the OTLP collector host:port, no protocol prefix
	// (e.g. "localhost:4318").
	OTLPEndpoint string

	// OTLPInsecure allows plaintext HTTP to the OTLP collector. Leave
	// false outside local development; spans carry hashed client IDs
	// and folder names that should stay encrypted in transit.
	OTLPInsecure bool

	// TraceSamplingRate is the head sampling ratio, 0.0 to 1.0
	// (default: 0.1).
	TraceSamplingRate float64

	// PrometheusEndpoint is the metrics scrape path (default: "/metrics").
	PrometheusEndpoint string

	// DetailedLabels opts into high-cardinality metric labels such as
	// per-client hashes. Keep disabled in production.
	DetailedLabels bool

	// AuditLogging configures the security audit log.
	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig holds the security audit log settings.
type AuditLoggingConfig struct {
	// Enabled turns audit logging on (default: true).
	Enabled bool

	// IncludeIdentifiers logs raw client IDs instead of hashes. Only
	// enable when the log destination is access-controlled.
	IncludeIdentifiers bool

	// LogLevel is the slog level audit entries are emitted at
	// (default: "info"). Audit events are emitted regardless of the
	// logger's own level filter.
	LogLevel string
}

// DefaultConfig builds a Config from environment variables, applying
// defaults for anything unset.
func DefaultConfig() Config {
	return Config{
		ServiceName:        getEnvOrDefault("OTEL_SERVICE_NAME", "obsidian-remote-mcp"),
		ServiceVersion:     "unknown",
		ServiceInstanceID:  getEnvOrDefault("OTEL_SERVICE_INSTANCE_ID", ""),
		K8sNamespace:       getEnvOrDefault("K8S_NAMESPACE", getEnvOrDefault("POD_NAMESPACE", "")),
		K8sPodName:         getEnvOrDefault("K8S_POD_NAME", getEnvOrDefault("HOSTNAME", "")),
		Enabled:            getEnvBoolOrDefault("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:    getEnvOrDefault("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:    getEnvOrDefault("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:       getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate:  getEnvFloatOrDefault("OTEL_TRACES_SAMPLER_ARG", 0.1),
		PrometheusEndpoint: getEnvOrDefault("PROMETHEUS_ENDPOINT", "/metrics"),
		DetailedLabels:     getEnvBoolOrDefault("METRICS_DETAILED_LABELS", false),
		AuditLogging: AuditLoggingConfig{
			Enabled:            getEnvBoolOrDefault("AUDIT_LOGGING_ENABLED", true),
			IncludeIdentifiers: getEnvBoolOrDefault("AUDIT_LOGGING_INCLUDE_IDENTIFIERS", false),
			LogLevel:           getEnvOrDefault("AUDIT_LOGGING_LEVEL", "info"),
		},
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	validMetricsExporters := map[string]bool{ExporterPrometheus: true, ExporterOTLP: true, ExporterStdout: true}
	if c.MetricsExporter != "" && !validMetricsExporters[c.MetricsExporter] {
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	validTracingExporters := map[string]bool{ExporterOTLP: true, ExporterStdout: true, ExporterNone: true}
	if c.TracingExporter != "" && !validTracingExporters[c.TracingExporter] {
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if c.TracingExporter == ExporterOTLP && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
	}
	if c.MetricsExporter == ExporterOTLP && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// Metric label values shared across recorders.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusUnknown = "unknown"

	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"
	OAuthResultExpired = "expired"

	// Vault error kinds used in metric labels
	ErrorKindNotFound     = "not_found"
	ErrorKindAccessDenied = "access_denied"
	ErrorKindTransient    = "transient"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	DefaultMetricInterval = 10 * time.Second
)

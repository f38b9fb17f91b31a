package config

// TelemetryConfig holds OpenTelemetry trace export configuration.
//
// Traces go to a local OTLP HTTP collector (default localhost:4318);
// see internal/observability for setup.
type TelemetryConfig struct {
	// Enabled turns trace export on. Off by default; the CLI is usable
	// without any collector running.
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Endpoint is the OTLP HTTP collector endpoint (default: localhost:4318)
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name on exported spans (default: nigel)
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

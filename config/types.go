package config

// Config is the entry point node configuration.
type Config struct {
	// rpc configs
	Port int    `mapstructure:"port" toml:"port"`
	Host string `mapstructure:"host" toml:"host"`

	// CORS configs
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`

	// rate limiting configs
	RatePerMinute         int `mapstructure:"rate_per_minute" toml:"rate_per_minute"`
	MaxConcurrentRequests int `mapstructure:"max_concurrent_requests" toml:"max_concurrent_requests"`

	// chain configs
	Bech32Prefix  string `mapstructure:"bech32_prefix" toml:"bech32_prefix"`
	ChainID       string `mapstructure:"chain_id" toml:"chain_id"`
	DataDir       string `mapstructure:"data_dir" toml:"data_dir"` // empty keeps state in memory
	GenesisSource string `mapstructure:"genesis_source" toml:"genesis_source"`

	// logging configs
	LogLevel string `mapstructure:"log_level" toml:"log_level"`
	LogFile  string `mapstructure:"log_file" toml:"log_file"`

	// OpenTelemetry configs
	ServiceName    string `mapstructure:"service_name" toml:"service_name"`
	ServiceVersion string `mapstructure:"service_version" toml:"service_version"`
	Environment    string `mapstructure:"environment" toml:"environment"` // PROD, DEV, TEST, LOCAL
	EnableTracing  bool   `mapstructure:"enable_tracing" toml:"enable_tracing"`
	UseOTLPTraces  bool   `mapstructure:"use_otlp_traces" toml:"use_otlp_traces"`
	OTLPTracesURL  string `mapstructure:"otlp_traces_url" toml:"otlp_traces_url"`
	EnableMetrics  bool   `mapstructure:"enable_metrics" toml:"enable_metrics"`
	UsePrometheus  bool   `mapstructure:"use_prometheus" toml:"use_prometheus"`
	UseOTLPMetrics bool   `mapstructure:"use_otlp_metrics" toml:"use_otlp_metrics"`
	OTLPMetricsURL string `mapstructure:"otlp_metrics_url" toml:"otlp_metrics_url"`
	EnableLogs     bool   `mapstructure:"enable_logs" toml:"enable_logs"`
	UseOTLPLogs    bool   `mapstructure:"use_otlp_logs" toml:"use_otlp_logs"`
	OTLPLogsURL    string `mapstructure:"otlp_logs_url" toml:"otlp_logs_url"`

	InsecureOTLP bool `mapstructure:"insecure_otlp" toml:"insecure_otlp"`

	// Development mode uses stdout exporters
	DevelopmentMode bool `mapstructure:"development_mode" toml:"development_mode"`

	// Osmosis SQS config, used by the memo command
	SqsURLs []string `mapstructure:"sqs_urls" toml:"sqs_urls"`
}

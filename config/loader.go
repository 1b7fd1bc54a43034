package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
)

// LoadConfig loads the node config from the given toml file, or from
// ENTRYPOINT_* environment variables when path is nil.
func LoadConfig(configPath *string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == nil {
		config, err := loadEnv(v)
		if err != nil {
			return nil, fmt.Errorf("failed to load env config: %w", err)
		}
		return config, nil
	}
	config, err := loadFile(v, *configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load file config: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("rate_per_minute", 600)
	v.SetDefault("max_concurrent_requests", 100)
	v.SetDefault("bech32_prefix", "osmo")
	v.SetDefault("chain_id", "localnet-1")
	v.SetDefault("log_level", "info")
	v.SetDefault("service_name", "spectra-entry-point")
}

func loadEnv(v *viper.Viper) (*Config, error) {
	// the .env file is optional, the environment can come from docker or systemd
	_ = godotenv.Load()
	v.SetEnvPrefix("ENTRYPOINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal env config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

// bindEnvKeys binds each config key to its env var so Unmarshal sees env values
// when no config file is loaded.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"port", "host", "allowed_origins",
		"rate_per_minute", "max_concurrent_requests",
		"bech32_prefix", "chain_id", "data_dir", "genesis_source",
		"log_level", "log_file",
		"service_name", "service_version", "environment",
		"enable_tracing", "use_otlp_traces", "otlp_traces_url",
		"enable_metrics", "use_prometheus", "use_otlp_metrics", "otlp_metrics_url",
		"enable_logs", "use_otlp_logs", "otlp_logs_url",
		"insecure_otlp", "development_mode", "sqs_urls",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func loadFile(v *viper.Viper, configPath string) (*Config, error) {
	if !strings.HasSuffix(configPath, ".toml") {
		return nil, fmt.Errorf("config file must be a toml file")
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

func verifyConfig(config *Config) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if config.Host == "" {
		return fmt.Errorf("host is required")
	}

	if len(config.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins is required")
	}

	if config.Bech32Prefix == "" {
		return fmt.Errorf("bech32_prefix is required")
	}
	codec := chain.NewAddressCodec(config.Bech32Prefix)
	if err := codec.Validate(codec.Account("probe")); err != nil {
		return fmt.Errorf("bech32_prefix %q is unusable: %w", config.Bech32Prefix, err)
	}

	if config.RatePerMinute < 0 || config.MaxConcurrentRequests < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}

	for _, url := range config.SqsURLs {
		if url == "" {
			return fmt.Errorf("sqs_urls must not be empty")
		}
	}

	return nil
}

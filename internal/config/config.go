// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	PostgresURL        string   `mapstructure:"postgres_url"`
	SrcBankAccount     string   `mapstructure:"src_bank_account"`
	DispatchIntervalMs int      `mapstructure:"dispatch_interval_ms"`
	Workers            int      `mapstructure:"workers"`
	ProcessorURL       string   `mapstructure:"processor_url"`
	ProcessorAPIKey    string   `mapstructure:"processor_api_key"`
	ProcessorTimeoutMs int      `mapstructure:"processor_timeout_ms"`
	KafkaBrokers       []string `mapstructure:"kafka_brokers"`
	IntakeFile         string   `mapstructure:"intake_file"`
	DebugLogging       bool     `mapstructure:"debug_logging"`
	LogFile            string   `mapstructure:"log_file"`
}

const (
	DefaultDispatchIntervalMs = 5000
	DefaultWorkers            = 5
	DefaultProcessorTimeoutMs = 10000
	DefaultLogFile            = "dispatcher.log"
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"dispatch_interval_ms": DefaultDispatchIntervalMs,
		"workers":              DefaultWorkers,
		"processor_timeout_ms": DefaultProcessorTimeoutMs,
		"log_file":             DefaultLogFile,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.SrcBankAccount == "" {
		return errors.New("missing src_bank_account in configuration")
	}
	if cfg.ProcessorURL == "" {
		return errors.New("missing processor_url in configuration")
	}
	if err := validateURL(cfg.ProcessorURL, "http"); err != nil {
		return errors.New("invalid processor URL protocol")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.DispatchIntervalMs <= 0 {
		return errors.New("invalid dispatch_interval_ms")
	}
	if cfg.Workers < 0 {
		return errors.New("invalid workers count")
	}
	if cfg.ProcessorTimeoutMs <= 0 {
		return errors.New("invalid processor_timeout_ms")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if envURL := v.GetString("POSTGRES_URL"); envURL != "" {
		cfg.PostgresURL = envURL
	}

	if envKey := v.GetString("PROCESSOR_API_KEY"); envKey != "" {
		cfg.ProcessorAPIKey = envKey
	}

	if envBrokers := v.GetString("KAFKA_BROKERS"); envBrokers != "" {
		brokers := strings.Split(envBrokers, ",")
		var cleanBrokers []string
		for _, broker := range brokers {
			clean := strings.TrimSpace(broker)
			if clean != "" {
				cleanBrokers = append(cleanBrokers, clean)
			}
		}
		if len(cleanBrokers) > 0 {
			cfg.KafkaBrokers = cleanBrokers
		}
	}
	return nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	AWS         AWSConfig      `mapstructure:"aws"`
	Scanner     ScannerConfig  `mapstructure:"scanner"`
	Executor    ExecutorConfig `mapstructure:"executor"`
	Exchange    ExchangeConfig `mapstructure:"exchange"`
	Events      EventsConfig   `mapstructure:"events"`
	Secrets     SecretsConfig  `mapstructure:"secrets"`
	Tracing     TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
}

type ScannerConfig struct {
	// Interval between scans; the deployment tunes this per stage
	Interval time.Duration `mapstructure:"interval"`
	// BatchSize caps how many due plans one scan picks up
	BatchSize int `mapstructure:"batch_size"`
	// RunTimeout bounds a single scan invocation
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

type ExecutorConfig struct {
	QueueURL string `mapstructure:"queue_url"`
	// MaxRetries bounds purchase attempts per execution before the task is
	// terminated instead of redelivered
	MaxRetries int `mapstructure:"max_retries"`
	// VisibilityTimeout is how long a received task stays invisible before
	// the transport redelivers it
	VisibilityTimeout int `mapstructure:"visibility_timeout"`
	BatchSize         int `mapstructure:"batch_size"`
}

type ExchangeConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// CredentialsSecret names the secret holding the API key pair
	CredentialsSecret string        `mapstructure:"credentials_secret"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type EventsConfig struct {
	TopicARN string `mapstructure:"topic_arn"`
}

type SecretsConfig struct {
	Prefix   string        `mapstructure:"prefix"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// Load reads configuration from configs/config.yaml (optional) and the
// environment, applies defaults, and validates required settings.
func Load() (*Config, error) {
	// Load .env if present; ignore errors for missing files
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")

	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	viper.SetDefault("aws.region", "us-east-1")

	viper.SetDefault("scanner.interval", "5m")
	viper.SetDefault("scanner.batch_size", 25)
	viper.SetDefault("scanner.run_timeout", "4m")

	viper.SetDefault("executor.max_retries", 3)
	viper.SetDefault("executor.visibility_timeout", 60)
	viper.SetDefault("executor.batch_size", 10)

	viper.SetDefault("exchange.timeout", "30s")
	viper.SetDefault("exchange.credentials_secret", "exchange/api-credentials")

	viper.SetDefault("secrets.prefix", "satstack/")
	viper.SetDefault("secrets.cache_ttl", "5m")

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.sample_rate", 0.1)
}

// Validate rejects missing required settings. Misconfiguration is fatal
// at startup rather than at first use.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Executor.QueueURL == "" {
		return fmt.Errorf("executor.queue_url is required")
	}
	if c.Events.TopicARN == "" {
		return fmt.Errorf("events.topic_arn is required")
	}
	if c.Environment == "production" && c.Exchange.BaseURL == "" {
		return fmt.Errorf("exchange.base_url is required in production")
	}
	if c.Scanner.BatchSize <= 0 {
		return fmt.Errorf("scanner.batch_size must be positive")
	}
	if c.Executor.MaxRetries <= 0 {
		return fmt.Errorf("executor.max_retries must be positive")
	}
	return nil
}

// IsProduction reports whether the deployment stage is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TransportHTTP = "http"
	TransportWS   = "ws"

	PriceSourceServer       = "price_server"
	PriceSourceDeribitIndex = "deribit_index"
	PriceSourceBinance      = "binance"
	PriceSourceBybit        = "bybit"
)

type Config struct {
	Hedgeflow HedgeflowConfig `yaml:"hedgeflow"`
	Logging   LoggingConfig   `yaml:"logging"`
	Deribit   DeribitConfig   `yaml:"deribit"`
	PriceFeed PriceFeedConfig `yaml:"price_feed"`
	Hedge     HedgeConfig     `yaml:"hedge"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
}

type HedgeflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type DeribitConfig struct {
	URL          string          `yaml:"url"`
	WSURL        string          `yaml:"ws_url"`
	Transport    string          `yaml:"transport"`
	Timeout      time.Duration   `yaml:"timeout"`
	LocalIP      string          `yaml:"local_ip"`
	UserAgent    string          `yaml:"user_agent"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
	ClientID     string          `yaml:"client_id"`
	ClientSecret string          `yaml:"client_secret"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

// PriceFeedConfig selects the spot reference. URL is the price_server
// endpoint; BaseURL overrides the REST host of the binance and bybit SDKs and
// is left empty to use their production hosts.
type PriceFeedConfig struct {
	Source  string        `yaml:"source"`
	URL     string        `yaml:"url"`
	BaseURL string        `yaml:"base_url"`
	Symbol  string        `yaml:"symbol"`
	Timeout time.Duration `yaml:"timeout"`
}

// HedgeConfig controls strike selection and sizing. DiscountFactor is the
// factor applied to spot; DocumentedDiscountFactor is the value the product
// description claims. The two disagree until product clarifies.
type HedgeConfig struct {
	Asset                    string  `yaml:"asset"`
	QuoteCurrency            string  `yaml:"quote_currency"`
	DiscountFactor           float64 `yaml:"discount_factor"`
	DocumentedDiscountFactor float64 `yaml:"documented_discount_factor"`
	ExpiryWeekday            string  `yaml:"expiry_weekday"`
	MinQuantity              string  `yaml:"min_quantity"`
	OrderLabelPrefix         string  `yaml:"order_label_prefix"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
	Prometheus bool             `yaml:"prometheus"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

type StorageConfig struct {
	S3    S3Config    `yaml:"s3"`
	Kafka KafkaConfig `yaml:"kafka"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type ServerConfig struct {
	Address        string        `yaml:"address"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stderr"},
		Deribit: DeribitConfig{
			URL:       "https://test.deribit.com",
			WSURL:     "wss://test.deribit.com/ws/api/v2",
			Transport: TransportHTTP,
			Timeout:   10 * time.Second,
			UserAgent: "hedgeflow/1.0",
			RateLimit: RateLimitConfig{RequestsPerSecond: 5, BurstSize: 1},
		},
		PriceFeed: PriceFeedConfig{
			Source:  PriceSourceServer,
			URL:     "https://priceserver-qrwzxck8.b4a.run/coins/price-convert",
			Timeout: 10 * time.Second,
		},
		Hedge: HedgeConfig{
			Asset:                    "BTC",
			QuoteCurrency:            "USD",
			DiscountFactor:           0.9,
			DocumentedDiscountFactor: 0.85,
			ExpiryWeekday:            "friday",
			MinQuantity:              "0.1",
			OrderLabelPrefix:         "hedgeflow",
		},
		Metrics: MetricsConfig{
			CloudWatch: CloudWatchConfig{Namespace: "Hedgeflow", Dashboard: "Hedgeflow"},
			Prometheus: true,
		},
		Storage: StorageConfig{S3: S3Config{Prefix: "outcomes"}},
		Server:  ServerConfig{Address: "0.0.0.0:8080", RequestTimeout: 60 * time.Second},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides replaces secrets with values supplied out-of-band.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("DERIBIT_CLIENT_ID"); v != "" {
		config.Deribit.ClientID = strings.TrimSpace(v)
	}
	if v := os.Getenv("DERIBIT_CLIENT_SECRET"); v != "" {
		config.Deribit.ClientSecret = strings.TrimSpace(v)
	}

	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		config.Storage.Kafka.Brokers = strings.Split(v, ",")
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Hedgeflow.Name == "" {
		return fmt.Errorf("hedgeflow.name is required")
	}

	if cfg.Hedgeflow.Version == "" {
		return fmt.Errorf("hedgeflow.version is required")
	}

	if cfg.Deribit.URL == "" {
		return fmt.Errorf("deribit.url is required")
	}
	switch cfg.Deribit.Transport {
	case TransportHTTP:
	case TransportWS:
		if cfg.Deribit.WSURL == "" {
			return fmt.Errorf("deribit.ws_url is required when deribit.transport is ws")
		}
	default:
		return fmt.Errorf("deribit.transport '%s' is invalid", cfg.Deribit.Transport)
	}
	if cfg.Deribit.Timeout <= 0 {
		return fmt.Errorf("deribit.timeout must be greater than 0")
	}

	switch cfg.PriceFeed.Source {
	case PriceSourceServer:
		if cfg.PriceFeed.URL == "" {
			return fmt.Errorf("price_feed.url is required for price_server source")
		}
	case PriceSourceDeribitIndex, PriceSourceBinance, PriceSourceBybit:
	default:
		return fmt.Errorf("price_feed.source '%s' is invalid", cfg.PriceFeed.Source)
	}

	if cfg.Hedge.Asset == "" {
		return fmt.Errorf("hedge.asset is required")
	}
	if cfg.Hedge.DiscountFactor <= 0 || cfg.Hedge.DiscountFactor >= 1 {
		return fmt.Errorf("hedge.discount_factor must be between 0 and 1")
	}
	if cfg.Hedge.DocumentedDiscountFactor <= 0 || cfg.Hedge.DocumentedDiscountFactor >= 1 {
		return fmt.Errorf("hedge.documented_discount_factor must be between 0 and 1")
	}
	if _, err := ParseWeekday(cfg.Hedge.ExpiryWeekday); err != nil {
		return fmt.Errorf("hedge.expiry_weekday: %w", err)
	}
	if cfg.Hedge.MinQuantity == "" {
		return fmt.Errorf("hedge.min_quantity is required")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	if cfg.Storage.Kafka.Enabled {
		if len(cfg.Storage.Kafka.Brokers) == 0 {
			return fmt.Errorf("storage.kafka.brokers is required when kafka is enabled")
		}
		if cfg.Storage.Kafka.Topic == "" {
			return fmt.Errorf("storage.kafka.topic is required when kafka is enabled")
		}
	}

	return nil
}

// ParseWeekday maps a lower or mixed case English weekday name.
func ParseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(strings.TrimSpace(name), d.String()) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday '%s'", name)
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}

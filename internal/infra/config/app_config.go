// Package config manages application configuration loading and validation.
package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/coachpo/swapgate/errs"
)

// Environment identifies the deployment environment the service runs in.
type Environment string

const (
	EnvDev     Environment = "dev"
	EnvStaging Environment = "staging"
	EnvProd    Environment = "prod"
)

// APIServerConfig configures the quote service's HTTP surface.
type APIServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

func (c *APIServerConfig) applyDefaults() {
	c.Addr = strings.TrimSpace(c.Addr)
	if c.Addr == "" {
		c.Addr = ":8880"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 15 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// ExchangeConfig holds Currency.com connectivity and credentials.
type ExchangeConfig struct {
	BaseURL           string        `yaml:"baseUrl"`
	APIKey            string        `yaml:"apiKey"`
	APISecret         string        `yaml:"apiSecret"`
	HTTPTimeout       time.Duration `yaml:"httpTimeout"`
	RecvWindow        time.Duration `yaml:"recvWindow"`
	DepthLimit        int           `yaml:"depthLimit"`
	FetchAttempts     int           `yaml:"fetchAttempts"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
}

func (c *ExchangeConfig) applyDefaults() {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.BaseURL == "" {
		c.BaseURL = "https://api-adapter.backend.currency.com"
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.RecvWindow <= 0 {
		c.RecvWindow = 5 * time.Second
	}
	if c.DepthLimit <= 0 {
		c.DepthLimit = 100
	}
	if c.FetchAttempts <= 0 {
		c.FetchAttempts = 3
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 10
	}
}

func (c ExchangeConfig) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("baseUrl required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("apiKey required")
	}
	if strings.TrimSpace(c.APISecret) == "" {
		return fmt.Errorf("apiSecret required")
	}
	return nil
}

// QuotesConfig sets pricing fees and the quote validity window.
type QuotesConfig struct {
	BuyFeePercent  string        `yaml:"buyFeePercent"`
	SellFeePercent string        `yaml:"sellFeePercent"`
	ValidityWindow time.Duration `yaml:"validityWindow"`
	Pairs          []string      `yaml:"pairs"`
}

func (c *QuotesConfig) applyDefaults() {
	c.BuyFeePercent = strings.TrimSpace(c.BuyFeePercent)
	c.SellFeePercent = strings.TrimSpace(c.SellFeePercent)
	if c.ValidityWindow <= 0 {
		c.ValidityWindow = 30 * time.Second
	}
	if len(c.Pairs) > 0 {
		normalized := make([]string, 0, len(c.Pairs))
		seen := make(map[string]struct{}, len(c.Pairs))
		for _, pair := range c.Pairs {
			trimmed := strings.TrimSpace(pair)
			if trimmed == "" {
				continue
			}
			key := strings.ToUpper(trimmed)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			normalized = append(normalized, trimmed)
		}
		c.Pairs = normalized
	}
}

func (c QuotesConfig) validate() error {
	for name, raw := range map[string]string{
		"buyFeePercent":  c.BuyFeePercent,
		"sellFeePercent": c.SellFeePercent,
	} {
		fee, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("%s: invalid decimal %q", name, raw)
		}
		if fee.IsNegative() {
			return fmt.Errorf("%s must be >= 0", name)
		}
		if fee.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%s must be <= 100", name)
		}
	}
	if c.ValidityWindow <= 0 {
		return fmt.Errorf("validityWindow must be > 0")
	}
	return nil
}

// BuyFee returns the parsed buy-side fee percentage.
func (c QuotesConfig) BuyFee() decimal.Decimal {
	return decimal.RequireFromString(c.BuyFeePercent)
}

// SellFee returns the parsed sell-side fee percentage.
func (c QuotesConfig) SellFee() decimal.Decimal {
	return decimal.RequireFromString(c.SellFeePercent)
}

// TelemetryConfig configures OTLP exporters (metrics only).
type TelemetryConfig struct {
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	ServiceName   string `yaml:"serviceName"`
	OTLPInsecure  bool   `yaml:"otlpInsecure"`
	EnableMetrics bool   `yaml:"enableMetrics"`
}

// DatabaseConfig controls PostgreSQL connectivity and migration behaviour.
type DatabaseConfig struct {
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	RunMigrations     bool          `yaml:"runMigrations"`
}

func (c *DatabaseConfig) applyDefaults() {
	c.DSN = strings.TrimSpace(c.DSN)
	if c.DSN == "" {
		c.DSN = "postgresql://localhost:5432/swapgate"
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 16
	}
	if c.MinConns <= 0 {
		c.MinConns = 1
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	if c.MaxConnLifetime <= 0 {
		c.MaxConnLifetime = 30 * time.Minute
	}
	if c.MaxConnIdleTime <= 0 {
		c.MaxConnIdleTime = 5 * time.Minute
	}
	if c.HealthCheckPeriod <= 0 {
		c.HealthCheckPeriod = 30 * time.Second
	}
}

func (c DatabaseConfig) validate() error {
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("dsn required")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("minConns must be <= maxConns")
	}
	return nil
}

// AppConfig is the unified swapgate application configuration sourced from YAML.
type AppConfig struct {
	Environment Environment     `yaml:"environment"`
	APIServer   APIServerConfig `yaml:"apiServer"`
	Exchange    ExchangeConfig  `yaml:"exchange"`
	Quotes      QuotesConfig    `yaml:"quotes"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Database    DatabaseConfig  `yaml:"database"`
}

// Load reads and validates an AppConfig from the provided YAML file.
func Load(ctx context.Context, configPath string) (AppConfig, error) {
	_ = ctx

	reader, closer, err := openConfigFile(configPath)
	if err != nil {
		return AppConfig{}, err
	}
	defer closer()

	bytes, err := io.ReadAll(reader)
	if err != nil {
		return AppConfig{}, errs.New(errs.CodeConfig, errs.WithMessage("read config"), errs.WithCause(err))
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return AppConfig{}, errs.New(errs.CodeConfig, errs.WithMessage("unmarshal config"), errs.WithCause(err))
	}

	cfg.normalise()

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c *AppConfig) normalise() {
	c.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)

	c.APIServer.applyDefaults()
	c.Exchange.applyDefaults()
	c.Quotes.applyDefaults()
	c.Database.applyDefaults()
}

// Validate performs semantic validation on the configuration.
func (c AppConfig) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return errs.New(errs.CodeConfig, errs.WithMessage("environment must be one of dev, staging, prod"))
	}

	if err := c.Exchange.validate(); err != nil {
		return errs.New(errs.CodeConfig, errs.WithMessage("exchange"), errs.WithCause(err))
	}
	if err := c.Quotes.validate(); err != nil {
		return errs.New(errs.CodeConfig, errs.WithMessage("quotes"), errs.WithCause(err))
	}
	if c.Telemetry.EnableMetrics && strings.TrimSpace(c.Telemetry.ServiceName) == "" {
		return errs.New(errs.CodeConfig, errs.WithMessage("telemetry serviceName required when metrics enabled"))
	}
	if err := c.Database.validate(); err != nil {
		return errs.New(errs.CodeConfig, errs.WithMessage("database"), errs.WithCause(err))
	}

	return nil
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := strings.TrimSpace(path)
	candidate = filepath.Clean(candidate)

	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, errs.New(errs.CodeConfig, errs.WithMessage("open app config"), errs.WithCause(err))
	}
	return file, func() { _ = file.Close() }, nil
}

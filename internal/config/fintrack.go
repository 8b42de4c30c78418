package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/STTM-NSU/fintrack/internal/logger"
	"gopkg.in/yaml.v3"
)

type StorageDriver string

const (
	Postgres StorageDriver = "postgres"
	Memory   StorageDriver = "memory"
)

type EquityProvider string

const (
	Yahoo   EquityProvider = "yahoo"
	TInvest EquityProvider = "tinvest"
)

type HTTPConfig struct {
	Port string `yaml:"port"`
}

type StorageConfig struct {
	Driver StorageDriver `yaml:"driver"`
}

// MarketHoursConfig is the UTC trading window of the equity exchange,
// "15:04" formatted. Weekends are always closed.
type MarketHoursConfig struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

type RefreshConfig struct {
	Interval       time.Duration     `yaml:"interval"`
	RequestTimeout time.Duration     `yaml:"request_timeout"`
	MarketHours    MarketHoursConfig `yaml:"market_hours"`
}

type BackfillConfig struct {
	Interval    time.Duration `yaml:"interval"`
	CryptoDelay time.Duration `yaml:"crypto_delay"`
}

type ProviderConfig struct {
	Address string        `yaml:"address"`
	Timeout time.Duration `yaml:"timeout"`
}

type QuotesConfig struct {
	CoinGecko      ProviderConfig `yaml:"coingecko"`
	Yahoo          ProviderConfig `yaml:"yahoo"`
	EquityProvider EquityProvider `yaml:"equity_provider"`
	TInvestConfig  string         `yaml:"tinvest_config"` // investgo yaml, token comes from env
	StocksFile     string         `yaml:"stocks_file"`    // optional, embedded list is used when empty
}

type Config struct {
	LogLevel string         `yaml:"log_level"`
	HTTP     HTTPConfig     `yaml:"http"`
	Storage  StorageConfig  `yaml:"storage"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Backfill BackfillConfig `yaml:"backfill"`
	Quotes   QuotesConfig   `yaml:"quotes"`
}

const (
	_portDefault           = "8080"
	_driverDefault         = Postgres
	_refreshDefault        = 20 * time.Second
	_requestTimeoutDefault = 10 * time.Second
	_marketOpenDefault     = "13:30"
	_marketCloseDefault    = "20:00"
	_backfillDefault       = time.Hour
	_cryptoDelayDefault    = 1200 * time.Millisecond
	_coinGeckoDefault      = "https://api.coingecko.com/api/v3"
	_yahooDefault          = "https://query2.finance.yahoo.com"
	_providerTimeout       = 10 * time.Second
	_equityProviderDefault = Yahoo
	_tinvestConfigDefault  = "./configs/invest.yaml"
)

func (c *MarketHoursConfig) Setup() error {
	if c.Open == "" {
		c.Open = _marketOpenDefault
	}
	if c.Close == "" {
		c.Close = _marketCloseDefault
	}
	open, err := time.Parse("15:04", c.Open)
	if err != nil {
		return fmt.Errorf("%w: bad market open time", err)
	}
	closing, err := time.Parse("15:04", c.Close)
	if err != nil {
		return fmt.Errorf("%w: bad market close time", err)
	}
	if !open.Before(closing) {
		return fmt.Errorf("market opens at %s after it closes at %s", c.Open, c.Close)
	}
	return nil
}

func (c *ProviderConfig) Setup(address string) error {
	if c.Address == "" {
		c.Address = address
	}
	if _, err := url.Parse(c.Address); err != nil {
		return err
	}
	c.Address = strings.TrimRight(c.Address, "/")
	if c.Timeout <= 0 {
		c.Timeout = _providerTimeout
	}
	return nil
}

func (c *Config) ValidateAndSetup() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.HTTP.Port == "" {
		c.HTTP.Port = _portDefault
	}

	switch c.Storage.Driver {
	case "":
		c.Storage.Driver = _driverDefault
	case Postgres, Memory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Refresh.Interval <= 0 {
		c.Refresh.Interval = _refreshDefault
	}
	if c.Refresh.RequestTimeout <= 0 {
		c.Refresh.RequestTimeout = _requestTimeoutDefault
	}
	if err := c.Refresh.MarketHours.Setup(); err != nil {
		return fmt.Errorf("%w: can't setup market hours", err)
	}

	if c.Backfill.Interval <= 0 {
		c.Backfill.Interval = _backfillDefault
	}
	if c.Backfill.CryptoDelay <= 0 {
		c.Backfill.CryptoDelay = _cryptoDelayDefault
	}

	if err := c.Quotes.CoinGecko.Setup(_coinGeckoDefault); err != nil {
		return fmt.Errorf("%w: can't setup coingecko", err)
	}
	if err := c.Quotes.Yahoo.Setup(_yahooDefault); err != nil {
		return fmt.Errorf("%w: can't setup yahoo", err)
	}
	switch c.Quotes.EquityProvider {
	case "":
		c.Quotes.EquityProvider = _equityProviderDefault
	case Yahoo, TInvest:
	default:
		return fmt.Errorf("unknown equity provider %q", c.Quotes.EquityProvider)
	}
	if c.Quotes.TInvestConfig == "" {
		c.Quotes.TInvestConfig = _tinvestConfigDefault
	}

	return nil
}

// Default is the configuration used when no file is given.
func Default() Config {
	var cfg Config
	if err := cfg.ValidateAndSetup(); err != nil {
		panic(err)
	}
	return cfg
}

func Load(filename string) (Config, error) {
	var cfg Config
	input, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("%w: can't read file", err)
	}

	if err := yaml.Unmarshal(input, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: can't unmarshal config", err)
	}

	if err := cfg.ValidateAndSetup(); err != nil {
		return cfg, fmt.Errorf("%w: can't setup cfg", err)
	}

	return cfg, nil
}
